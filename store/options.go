package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/wavescope/metric"
)

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client) error

// WithBucket sets the KV bucket bound on connect.
func WithBucket(name string) ClientOption {
	return func(c *Client) error {
		if name == "" {
			return fmt.Errorf("bucket name cannot be empty")
		}
		c.bucketName = name
		return nil
	}
}

// WithStreamPrefix sets the prefix used for stream names and subjects.
func WithStreamPrefix(prefix string) ClientOption {
	return func(c *Client) error {
		if prefix == "" {
			return fmt.Errorf("stream prefix cannot be empty")
		}
		c.streamPrefix = prefix
		return nil
	}
}

// WithMaxReconnects sets the maximum number of reconnection attempts
// (-1 for infinite).
func WithMaxReconnects(max int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout sets the timeout for draining on close.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		c.drainTimeout = d
		return nil
	}
}

// WithName sets the client name reported to the server.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		if name != "" {
			c.clientName = name
		}
		return nil
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger.With("component", "store")
		}
		return nil
	}
}

// WithMetrics wires the client to the core platform metrics.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
		return nil
	}
}
