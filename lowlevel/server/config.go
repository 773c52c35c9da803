// File: lowlevel/server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-tcp/api"

// Config holds reader construction parameters beyond the required
// positional ones.
type Config struct {
	// Logger receives accept-loop and per-connection diagnostics.
	Logger api.Logger

	// MaxConnections caps simultaneously served connections; 0 means
	// unlimited. Hot-reloadable through the control surface under the
	// "max_connections" key.
	MaxConnections int

	// ExecutorWorkers sizes the worker pool that long-running connection
	// continuations are escalated onto. <= 0 selects one per CPU.
	ExecutorWorkers int

	// WorkerAffinity pins each executor worker's OS thread to a CPU core
	// on platforms that support it.
	WorkerAffinity bool

	// InlineFrameBudget bounds how many request/response exchanges a
	// connection runs back-to-back on one goroutine before yielding the
	// continuation to the executor, so a firehosing peer cannot starve
	// its siblings.
	InlineFrameBudget int
}

// DefaultConfig returns the reader defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger:            api.DefaultLogger(),
		MaxConnections:    0,
		ExecutorWorkers:   0,
		WorkerAffinity:    false,
		InlineFrameBudget: 16,
	}
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithLogger redirects reader diagnostics.
func WithLogger(l api.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMaxConnections caps simultaneously served connections.
func WithMaxConnections(n int) Option {
	return func(c *Config) { c.MaxConnections = n }
}

// WithExecutorWorkers sizes the continuation worker pool.
func WithExecutorWorkers(n int) Option {
	return func(c *Config) { c.ExecutorWorkers = n }
}

// WithWorkerAffinity toggles CPU pinning of executor workers.
func WithWorkerAffinity(enabled bool) Option {
	return func(c *Config) { c.WorkerAffinity = enabled }
}

// WithInlineFrameBudget overrides the per-connection inline exchange
// budget.
func WithInlineFrameBudget(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.InlineFrameBudget = n
		}
	}
}
