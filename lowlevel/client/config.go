// File: lowlevel/client/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import "github.com/momentics/hioload-tcp/api"

// Config holds writer construction parameters beyond the required
// positional ones.
type Config struct {
	// Logger receives writer diagnostics. Defaults to slog.
	Logger api.Logger

	// ExecutorWorkers sizes the completion worker pool asynchronous
	// operations run on. <= 0 selects one worker per CPU.
	ExecutorWorkers int

	// WorkerAffinity pins each completion worker's OS thread to a CPU core
	// on platforms that support it.
	WorkerAffinity bool

	// InlineContinuationCap bounds how many partial-transfer continuations
	// run back-to-back on one worker before the remainder of the frame is
	// escalated to a fresh task.
	InlineContinuationCap int
}

// DefaultConfig returns the writer defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger:                api.DefaultLogger(),
		ExecutorWorkers:       0,
		WorkerAffinity:        false,
		InlineContinuationCap: 16,
	}
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithLogger redirects writer diagnostics.
func WithLogger(l api.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithExecutorWorkers sizes the completion worker pool.
func WithExecutorWorkers(n int) Option {
	return func(c *Config) { c.ExecutorWorkers = n }
}

// WithWorkerAffinity toggles CPU pinning of completion workers.
func WithWorkerAffinity(enabled bool) Option {
	return func(c *Config) { c.WorkerAffinity = enabled }
}

// WithInlineContinuationCap overrides the inline continuation depth limit.
func WithInlineContinuationCap(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.InlineContinuationCap = n
		}
	}
}
