// Package discovery finds Web Things on the local network with mDNS and
// feeds their description URLs to the adapter.
//
// Three service types are browsed:
//
//	_webthing._tcp          URL is http://{host}:{port}{txt path}
//	_http._tcp,_webthing    legacy subtype; URL is txt url
//	_http._tcp              only entries with a webthing txt key; URL is txt url
//
// A service appearing loads its URL; a service leaving unloads it.
package discovery
