// Package settings persists the WoT adapter configuration in SQLite.
//
// Two tables hold it (see migrations/):
//
//	adapter_settings  one row: the device poll interval in seconds
//	thing_urls        Thing description URLs added by hand, in order
//
// Repository implements wot.ConfigStore for the adapter and offers the URL
// list operations used by the things command.
package settings
