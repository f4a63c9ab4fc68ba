// Package wattcycle is the session layer over a connected battery monitor:
// authentication, head-byte detection, and serialized request/response
// exchanges decoded into typed data points.
package wattcycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/graywatt/wattcycle-ble/internal/ble"
	"github.com/graywatt/wattcycle-ble/pkg/wattproto"
)

// Client drives one connected device. Responses carry no correlation id,
// so the client keeps at most one request in flight; concurrent callers
// serialize on an internal mutex.
type Client struct {
	dev ble.Device
	cfg config
	log *slog.Logger

	mu       sync.Mutex // one exchange at a time
	reasm    wattproto.Reassembler
	head     byte
	headSet  bool
	newProto bool
}

// New wraps an open device link. The caller owns the connection; Close
// closes it.
func New(dev ble.Device, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Client{dev: dev, cfg: cfg, log: cfg.logger}
	if cfg.frameHead != 0 {
		c.head = cfg.frameHead
		c.headSet = true
	}
	return c
}

// Authenticate writes the auth key and waits for the device to settle.
// Must be called once per connection before any command.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := c.dev.Authenticate(ctx, wattproto.AuthKey); err != nil {
		return err
	}
	c.log.Debug("auth key sent")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.settleDelay):
	}
	return nil
}

// DetectFrameHead negotiates which head byte the device speaks by trying
// each known candidate with a minimal product info read. The first
// candidate that yields a valid frame wins and is cached for the session.
func (c *Client) DetectFrameHead(ctx context.Context) (byte, error) {
	candidates := []byte{wattproto.FrameHead, wattproto.FrameHeadAlt}
	for _, head := range candidates {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		cmd, err := wattproto.BuildReadFrame(head, wattproto.VersionOld, wattproto.DeviceAddr, wattproto.DPProductInfo, 0, nil)
		if err != nil {
			return 0, err
		}
		c.log.Debug("trying frame head", slog.String("head", wattproto.HexString([]byte{head})))
		frame, err := c.exchangeParsed(ctx, cmd, c.cfg.detectTimeout)
		if err != nil {
			c.log.Debug("frame head candidate failed", slog.String("head", wattproto.HexString([]byte{head})), slog.Any("error", err))
			continue
		}
		c.mu.Lock()
		c.head = head
		c.headSet = true
		c.noteVersion(frame)
		c.mu.Unlock()
		c.log.Info("frame head detected", slog.String("head", wattproto.HexString([]byte{head})))
		return head, nil
	}
	return 0, &wattproto.TimeoutError{Op: "frame head detection", After: time.Duration(len(candidates)) * c.cfg.detectTimeout}
}

// FrameHead returns the session's head byte. The primary head is assumed
// until detection or WithFrameHead says otherwise.
func (c *Client) FrameHead() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.headSet {
		return wattproto.FrameHead
	}
	return c.head
}

// NewProtocol reports whether the device has self-reported a new-protocol
// version byte on any response so far.
func (c *Client) NewProtocol() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newProto
}

// ReadAnalogQuantity reads the main battery data point.
func (c *Client) ReadAnalogQuantity(ctx context.Context) (wattproto.AnalogQuantity, error) {
	frame, err := c.readDP(ctx, wattproto.DPAnalogQuantity)
	if err != nil {
		return wattproto.AnalogQuantity{}, err
	}
	return wattproto.DecodeAnalogQuantity(frame.Data)
}

// ReadWarningInfo reads the warning/status data point.
func (c *Client) ReadWarningInfo(ctx context.Context) (wattproto.WarningInfo, error) {
	frame, err := c.readDP(ctx, wattproto.DPWarningInfo)
	if err != nil {
		return wattproto.WarningInfo{}, err
	}
	return wattproto.DecodeWarningInfo(frame.Data)
}

// ReadProductInfo reads the device identity data point.
func (c *Client) ReadProductInfo(ctx context.Context) (wattproto.ProductInfo, error) {
	frame, err := c.readDP(ctx, wattproto.DPProductInfo)
	if err != nil {
		return wattproto.ProductInfo{}, err
	}
	return wattproto.DecodeProductInfo(frame.Data)
}

// ReadDataPoint reads any data point and decodes it through the registered
// decoder map, returning one of the wattproto payload types.
func (c *Client) ReadDataPoint(ctx context.Context, dpAddress uint16) (any, error) {
	frame, err := c.readDP(ctx, dpAddress)
	if err != nil {
		return nil, err
	}
	return wattproto.DecodePayload(frame)
}

// Write sends a write command to a data-point address and returns the
// device's (validated) response frame. Used for control operations this
// package does not decode.
func (c *Client) Write(ctx context.Context, dpAddress uint16, data []byte) (wattproto.Frame, error) {
	cmd, err := wattproto.BuildWriteFrame(c.FrameHead(), wattproto.DeviceAddr, dpAddress, data)
	if err != nil {
		return wattproto.Frame{}, err
	}
	frame, err := c.exchangeParsed(ctx, cmd, c.cfg.responseTimeout)
	if err != nil {
		return wattproto.Frame{}, err
	}
	if frame.IsError() {
		return wattproto.Frame{}, &wattproto.RemoteError{FunctionCode: frame.FunctionCode, StartAddress: frame.StartAddress}
	}
	return frame, nil
}

func (c *Client) Close() error { return c.dev.Close() }

// readDP builds a read for dpAddress using the negotiated head and
// protocol version and returns the parsed, non-error response frame.
func (c *Client) readDP(ctx context.Context, dpAddress uint16) (wattproto.Frame, error) {
	version := byte(wattproto.VersionOld)
	var info *wattproto.InfoData
	if c.NewProtocol() {
		version = wattproto.VersionNew
		if dpAddress == wattproto.DPAnalogQuantity {
			block := wattproto.AnalogInfoData
			info = &block
		}
	}
	cmd, err := wattproto.BuildReadFrame(c.FrameHead(), version, wattproto.DeviceAddr, dpAddress, 0, info)
	if err != nil {
		return wattproto.Frame{}, err
	}
	frame, err := c.exchangeParsed(ctx, cmd, c.cfg.responseTimeout)
	if err != nil {
		return wattproto.Frame{}, err
	}
	if frame.IsError() {
		return wattproto.Frame{}, &wattproto.RemoteError{FunctionCode: frame.FunctionCode, StartAddress: frame.StartAddress}
	}
	return frame, nil
}

func (c *Client) exchangeParsed(ctx context.Context, cmd []byte, timeout time.Duration) (wattproto.Frame, error) {
	raw, err := c.exchange(ctx, cmd, timeout)
	if err != nil {
		return wattproto.Frame{}, err
	}
	frame, err := wattproto.ParseFrame(raw)
	if err != nil {
		return wattproto.Frame{}, err
	}
	c.mu.Lock()
	c.noteVersion(frame)
	c.mu.Unlock()
	return frame, nil
}

// noteVersion records a new-protocol version byte. Callers hold c.mu.
func (c *Client) noteVersion(frame wattproto.Frame) {
	if frame.NewProtocol() && !c.newProto {
		c.newProto = true
		c.log.Info("device reports new protocol", slog.Int("version", int(frame.Version)))
	}
}

// exchange performs one serialized request/response round trip: write the
// command, then accumulate notification fragments until a complete frame
// arrives or the timeout expires.
func (c *Client) exchange(ctx context.Context, cmd []byte, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Stale fragments from an earlier timed-out exchange would be
	// misattributed to this one.
	c.drainNotifications()
	c.reasm.Reset()

	c.log.Debug("TX", slog.String("frame", wattproto.HexString(cmd)))
	if err := c.dev.WriteCommand(ctx, cmd); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.reasm.Reset()
			return nil, ctx.Err()
		case <-timer.C:
			buffered := c.reasm.Buffered()
			c.reasm.Reset()
			return nil, &wattproto.TimeoutError{Op: "response", After: timeout, Buffered: buffered}
		case fragment, ok := <-c.dev.Notifications():
			if !ok {
				c.reasm.Reset()
				return nil, errors.New("wattcycle: notification stream closed")
			}
			done, err := c.reasm.Push(fragment)
			if err != nil {
				c.reasm.Reset()
				return nil, err
			}
			if done {
				raw := c.reasm.Bytes()
				c.reasm.Reset()
				c.log.Debug("RX", slog.String("frame", wattproto.HexString(raw)))
				return raw, nil
			}
		}
	}
}

func (c *Client) drainNotifications() {
	for {
		select {
		case _, ok := <-c.dev.Notifications():
			if !ok {
				return
			}
		default:
			return
		}
	}
}
