package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// notifyBuffer bounds how many fragments can queue between device pushes
// and the reader. Fragments beyond it are dropped with a warning.
const notifyBuffer = 64

// Adapter opens battery monitors through the host's BLE radio.
type Adapter struct {
	adapter *bluetooth.Adapter
}

var (
	enableOnce sync.Once
	enableErr  error
)

// NewAdapter enables the default BLE adapter.
func NewAdapter() (*Adapter, error) {
	enableOnce.Do(func() {
		enableErr = bluetooth.DefaultAdapter.Enable()
	})
	if enableErr != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", enableErr)
	}
	return &Adapter{adapter: bluetooth.DefaultAdapter}, nil
}

// Scan advertises-listens for up to timeout and returns the monitors seen,
// filtered by the known name prefixes.
func (a *Adapter) Scan(ctx context.Context, timeout time.Duration) ([]Info, error) {
	seen := make(map[string]Info)
	var mu sync.Mutex

	done := make(chan error, 1)
	go func() {
		done <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if !matchesPrefix(name) {
				return
			}
			mu.Lock()
			seen[result.Address.String()] = Info{
				Name:    name,
				Address: result.Address.String(),
				RSSI:    int(result.RSSI),
			}
			mu.Unlock()
		})
	}()

	select {
	case <-ctx.Done():
		_ = a.adapter.StopScan()
		<-done
		return nil, ctx.Err()
	case <-time.After(timeout):
		_ = a.adapter.StopScan()
		if err := <-done; err != nil {
			return nil, fmt.Errorf("ble: scan: %w", err)
		}
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("ble: scan: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Info, 0, len(seen))
	for _, info := range seen {
		out = append(out, info)
	}
	return out, nil
}

func matchesPrefix(name string) bool {
	for _, p := range DeviceNamePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Connect scans for the monitor with the given address and opens it. Going
// through the scanner keeps the address handling portable across OS BLE
// stacks, which disagree on how to dial a bare MAC.
func (a *Adapter) Connect(ctx context.Context, address string) (Device, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if strings.EqualFold(result.Address.String(), address) {
				select {
				case found <- result:
				default:
				}
			}
		})
	}()

	var target bluetooth.ScanResult
	select {
	case <-ctx.Done():
		_ = a.adapter.StopScan()
		<-scanErr
		return nil, ctx.Err()
	case err := <-scanErr:
		if err != nil {
			return nil, fmt.Errorf("ble: scan for %s: %w", address, err)
		}
		return nil, fmt.Errorf("ble: scan ended without finding %s", address)
	case target = <-found:
		_ = a.adapter.StopScan()
		<-scanErr
	}

	dev, err := a.adapter.Connect(target.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("ble: connect %s: %w", address, err)
	}
	slog.Debug("connected", slog.String("address", address))

	link, err := newLink(dev)
	if err != nil {
		_ = dev.Disconnect()
		return nil, err
	}
	return link, nil
}

type link struct {
	dev        bluetooth.Device
	notifyChar bluetooth.DeviceCharacteristic
	writeChar  bluetooth.DeviceCharacteristic
	authChar   bluetooth.DeviceCharacteristic
	notify     chan []byte
	closeOnce  sync.Once
}

func newLink(dev bluetooth.Device) (*link, error) {
	svcs, err := dev.DiscoverServices([]bluetooth.UUID{bluetooth.New16BitUUID(ServiceUUID16)})
	if err != nil || len(svcs) == 0 {
		return nil, fmt.Errorf("ble: discover service %04X: %w", ServiceUUID16, err)
	}
	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{
		bluetooth.New16BitUUID(NotifyUUID16),
		bluetooth.New16BitUUID(WriteUUID16),
		bluetooth.New16BitUUID(AuthUUID16),
	})
	if err != nil || len(chars) != 3 {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}

	l := &link{
		dev:        dev,
		notifyChar: chars[0],
		writeChar:  chars[1],
		authChar:   chars[2],
		notify:     make(chan []byte, notifyBuffer),
	}

	err = l.notifyChar.EnableNotifications(func(buf []byte) {
		fragment := make([]byte, len(buf))
		copy(fragment, buf)
		select {
		case l.notify <- fragment:
		default:
			slog.Warn("notification buffer full, dropping fragment", slog.Int("len", len(fragment)))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ble: enable notifications: %w", err)
	}
	return l, nil
}

func (l *link) WriteCommand(_ context.Context, frame []byte) error {
	if _, err := l.writeChar.WriteWithoutResponse(frame); err != nil {
		return fmt.Errorf("ble: write command: %w", err)
	}
	return nil
}

func (l *link) Authenticate(_ context.Context, key []byte) error {
	if _, err := l.authChar.WriteWithoutResponse(key); err != nil {
		return fmt.Errorf("ble: write auth key: %w", err)
	}
	return nil
}

func (l *link) Notifications() <-chan []byte { return l.notify }

func (l *link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		// Stop the push stream before tearing the link down so the
		// notification callback cannot race the channel close.
		_ = l.notifyChar.EnableNotifications(nil)
		err = l.dev.Disconnect()
		close(l.notify)
	})
	return err
}
