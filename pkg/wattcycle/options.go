package wattcycle

import (
	"log/slog"
	"time"
)

type config struct {
	responseTimeout time.Duration
	detectTimeout   time.Duration
	settleDelay     time.Duration
	frameHead       byte
	logger          *slog.Logger
}

func defaultConfig() config {
	return config{
		responseTimeout: 5 * time.Second,
		detectTimeout:   3 * time.Second,
		settleDelay:     500 * time.Millisecond,
		logger:          slog.Default(),
	}
}

// Option configures a Client.
type Option func(*config)

// WithResponseTimeout bounds how long a single command waits for its
// complete response. Default 5s.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *config) { c.responseTimeout = d }
}

// WithDetectTimeout bounds each head-byte candidate during detection.
// Default 3s.
func WithDetectTimeout(d time.Duration) Option {
	return func(c *config) { c.detectTimeout = d }
}

// WithSettleDelay sets the pause after the authentication write before the
// device will accept commands. Default 500ms.
func WithSettleDelay(d time.Duration) Option {
	return func(c *config) { c.settleDelay = d }
}

// WithFrameHead pins the session's head byte, skipping detection.
func WithFrameHead(head byte) Option {
	return func(c *config) { c.frameHead = head }
}

// WithLogger routes the client's debug logging. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
