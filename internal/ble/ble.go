// Package ble is the transport boundary for Wattcycle battery monitors: a
// byte-in/byte-out GATT link behind a small interface, with the real radio
// backend in central.go and an in-memory device for tests in mock.go.
package ble

import (
	"context"
	"time"
)

// GATT characteristic assignment on the FFF0 service.
const (
	ServiceUUID16 = 0xFFF0
	NotifyUUID16  = 0xFFF1 // device -> host fragments
	WriteUUID16   = 0xFFF2 // host -> device commands
	AuthUUID16    = 0xFFFA // one-shot authentication write
)

// DeviceNamePrefixes match the advertised names of supported monitors.
var DeviceNamePrefixes = []string{"XDZN", "WT"}

// Device is an open link to a battery monitor. Writes go to the command
// characteristic; the device pushes response fragments as notifications.
type Device interface {
	// WriteCommand sends one complete frame to the command characteristic.
	WriteCommand(ctx context.Context, frame []byte) error

	// Authenticate writes the auth key to the authentication
	// characteristic. Required once per connection, before any command.
	Authenticate(ctx context.Context, key []byte) error

	// Notifications returns the stream of raw fragments pushed by the
	// device. The channel is closed when the connection goes away.
	Notifications() <-chan []byte

	Close() error
}

// Info describes a discovered device.
type Info struct {
	Name    string
	Address string
	RSSI    int
}

// Scanner discovers and opens battery monitors.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]Info, error)
	Connect(ctx context.Context, address string) (Device, error)
}
