// Package store provides the data store client backing wavescope: values
// live in a NATS JetStream key-value bucket, append-only entries in
// JetStream streams. Background tasks consume the narrow ValueStore and
// EntryStream interfaces rather than the concrete client.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/wavescope/errors"
	"github.com/c360/wavescope/metric"
)

// ConnectionStatus represents the state of the store connection.
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ValueStore is the key-value surface consumed by the orchestrator.
type ValueStore interface {
	GetValue(ctx context.Context, key string) ([]byte, error)
	SetValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
	RenameValue(ctx context.Context, oldKey, newKey string) error
	ListKeys(ctx context.Context) ([]string, error)
	KeyInfo(ctx context.Context, key string) (*KeyMeta, error)
}

// EntryStream is the append-only stream surface consumed by the listener and
// generator tasks.
type EntryStream interface {
	StreamAppend(ctx context.Context, key string, fields map[string][]byte) (uint64, error)
	StreamReadBlocking(ctx context.Context, key string, afterID uint64, timeout time.Duration) ([]Entry, error)
}

// Client manages the NATS connection, the KV bucket, and JetStream streams.
type Client struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream
	kv   jetstream.KeyValue

	bucketName   string
	streamPrefix string

	// Consumer cache for resumable stream reads.
	consumers   map[string]*streamCursor
	consumersMu sync.Mutex

	// Streams known to exist, to skip repeated CreateOrUpdate calls.
	knownStreams   map[string]bool
	knownStreamsMu sync.Mutex

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	metrics *metric.Metrics

	mu     sync.RWMutex
	closed atomic.Bool
}

var (
	_ ValueStore  = (*Client)(nil)
	_ EntryStream = (*Client)(nil)
)

// NewClient creates a store client. The connection is established by
// Connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default().With("component", "store"),
		bucketName:    "wavescope",
		streamPrefix:  "wavescope",
		consumers:     make(map[string]*streamCursor),
		knownStreams:  make(map[string]bool),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  10 * time.Second,
		clientName:    fmt.Sprintf("wavescope-%s", uuid.NewString()[:8]),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the store server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// IsHealthy returns true if the connection is established.
func (c *Client) IsHealthy() bool { return c.Status() == StatusConnected }

// Failures returns the cumulative failure count.
func (c *Client) Failures() int32 { return c.failures.Load() }

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
	if c.metrics != nil {
		c.metrics.RecordStoreStatus(status == StatusConnected)
	}
}

func (c *Client) recordFailure() {
	c.failures.Add(1)
}

// Connect establishes the connection and binds the KV bucket. It is safe to
// call with a context deadline; the attempt is abandoned on cancellation.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to store", "url", c.url)

	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			c.logger.Warn("store disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setStatus(StatusConnected)
			if c.metrics != nil {
				c.metrics.RecordStoreReconnect()
			}
			c.logger.Info("store reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
		}),
	}

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			connectDone <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.recordFailure()
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	if err := c.SelectBucket(ctx, c.bucketName); err != nil {
		return err
	}

	c.setStatus(StatusConnected)
	c.logger.Info("connected to store", "url", c.url, "bucket", c.bucketName)
	return nil
}

// SelectBucket binds the client to a KV bucket, creating it when absent.
// Switching buckets invalidates nothing on the stream side.
func (c *Client) SelectBucket(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.js == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "SelectBucket", "check connection")
	}

	kv, err := c.js.KeyValue(ctx, name)
	if err != nil {
		kv, err = c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      name,
			Description: "wavescope values",
			History:     1,
		})
		if err != nil {
			c.recordFailure()
			return errors.WrapTransient(err, "Client", "SelectBucket",
				fmt.Sprintf("bind bucket %s", name))
		}
	}

	c.kv = kv
	c.bucketName = name
	return nil
}

// Bucket returns the currently selected bucket name.
func (c *Client) Bucket() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bucketName
}

// RTT returns the round-trip time to the store server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, errors.ErrNoConnection
	}
	return conn.RTT()
}

// WaitForConnection blocks until the client is healthy or ctx expires.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait")
		case <-ticker.C:
			if c.IsHealthy() {
				return nil
			}
		}
	}
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.setStatus(StatusDisconnected)
		return nil
	}

	drainTimeout := c.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
			drainTimeout = remaining
		}
	}

	drainDone := make(chan error, 1)
	go func() { drainDone <- c.conn.Drain() }()

	var drainErr error
	select {
	case err := <-drainDone:
		if err != nil {
			drainErr = errors.Wrap(err, "Client", "Close", "drain connection")
		}
	case <-time.After(drainTimeout):
		drainErr = errors.WrapTransient(
			fmt.Errorf("drain timeout after %v", drainTimeout),
			"Client", "Close", "drain timeout")
	case <-ctx.Done():
		drainErr = errors.Wrap(ctx.Err(), "Client", "Close", "drain cancelled")
	}

	c.conn.Close()
	c.conn = nil
	c.setStatus(StatusDisconnected)

	if drainErr != nil {
		c.logger.Warn("close completed with drain error", "error", drainErr)
	}
	return drainErr
}
