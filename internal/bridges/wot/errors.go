package wot

import "errors"

// Domain errors for the WoT bridge.
var (
	// ErrDuplicateDevice is returned when adding a device whose id is
	// already registered. Nothing is changed.
	ErrDuplicateDevice = errors.New("wot: device already exists")

	// ErrDeviceNotFound is returned for an unknown device id.
	ErrDeviceNotFound = errors.New("wot: device not found")

	// ErrPropertyNotFound is returned for a property the device does not declare.
	ErrPropertyNotFound = errors.New("wot: property not found")

	// ErrActionNotFound is returned for an unknown action name or record id.
	ErrActionNotFound = errors.New("wot: action not found")

	// ErrAdapterClosed is returned by an Adapter after Close.
	ErrAdapterClosed = errors.New("wot: adapter closed")
)
