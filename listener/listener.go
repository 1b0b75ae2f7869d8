// Package listener implements the stream listener task: a background poller
// that issues bounded-timeout blocking reads against an append-only stream,
// decodes each entry's binary field, and hands decoded batches to the event
// loop over a bounded channel. The task never touches view state directly.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/wavescope/codec"
	"github.com/c360/wavescope/errors"
	"github.com/c360/wavescope/metric"
	"github.com/c360/wavescope/pkg/buffer"
	"github.com/c360/wavescope/store"
)

// EventType tags events crossing the task boundary.
type EventType int

const (
	// EventData carries a decoded entry batch.
	EventData EventType = iota
	// EventOverflow reports a saturation episode; emitted once per episode.
	EventOverflow
	// EventError reports a terminal store error. The task is Stopped after
	// emitting it.
	EventError
)

// String returns the display name of the event type.
func (t EventType) String() string {
	switch t {
	case EventData:
		return "data"
	case EventOverflow:
		return "overflow"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Batch is one decoded read result. Entries within a batch and batches from
// the same stream preserve store order.
type Batch struct {
	Key       string
	FirstID   uint64
	LastID    uint64
	Samples   []float64
	Text      bool
	Truncated int
}

// Event is the tagged result delivered to the event loop.
type Event struct {
	Type    EventType
	Batch   *Batch
	Dropped int   // batches dropped, EventOverflow only
	Err     error // EventError only
}

// Config holds listener tuning knobs.
type Config struct {
	PollTimeout        time.Duration // blocking-read bound; also the cancellation latency bound
	ChannelCapacity    int           // bounded delivery channel size
	BackpressureBudget time.Duration // how long to block on a saturated channel before buffering
	MaxBufferedBatches int           // pending ring capacity before drop-oldest
	Field              string        // entry field carrying the binary payload
}

// DefaultConfig returns the documented listener defaults.
func DefaultConfig() Config {
	return Config{
		PollTimeout:        time.Second,
		ChannelCapacity:    8,
		BackpressureBudget: 250 * time.Millisecond,
		MaxBufferedBatches: 32,
		Field:              "data",
	}
}

// Validate checks the configuration before start.
func (c *Config) Validate() error {
	if c.PollTimeout <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: poll timeout must be positive", errors.ErrInvalidConfig),
			"listener", "Validate", "poll timeout")
	}
	if c.ChannelCapacity < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: channel capacity must be at least 1", errors.ErrInvalidConfig),
			"listener", "Validate", "channel capacity")
	}
	if c.MaxBufferedBatches < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: buffered batch cap must be at least 1", errors.ErrInvalidConfig),
			"listener", "Validate", "buffer capacity")
	}
	if c.BackpressureBudget < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: backpressure budget cannot be negative", errors.ErrInvalidConfig),
			"listener", "Validate", "backpressure budget")
	}
	if c.Field == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: entry field name required", errors.ErrInvalidConfig),
			"listener", "Validate", "field name")
	}
	return nil
}

// Deps holds runtime dependencies for the listener task.
type Deps struct {
	Store           store.EntryStream
	Key             string
	StartAfter      uint64 // resume cursor; 0 means from the stream start
	Type            codec.ElementType
	Endianness      codec.Endianness
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Task is the stream listener. Lifecycle: Initialize, Start(ctx), Stop(timeout).
type Task struct {
	st     store.EntryStream
	key    string
	cfg    Config
	logger *slog.Logger

	events  chan Event
	pending *buffer.Ring[Batch]

	cursor   atomic.Uint64
	decoding atomic.Uint64 // packed ElementType and Endianness

	// Overflow episode tracking. An episode starts on the first drop while
	// saturated and ends when the pending ring fully flushes.
	episodeActive bool
	episodeDrops  int

	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
	mu       sync.Mutex
	wg       sync.WaitGroup

	metrics *Metrics
	lastErr atomic.Value // stores error
}

// NewTask creates a listener task. The delivery channel is created here so
// the event loop can hold it across restarts.
func NewTask(deps Deps) *Task {
	cfg := deps.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "listener", "key", deps.Key)

	t := &Task{
		st:      deps.Store,
		key:     deps.Key,
		cfg:     cfg,
		logger:  logger,
		events:  make(chan Event, cfg.ChannelCapacity),
		pending: buffer.NewRing[Batch](cfg.MaxBufferedBatches),
		metrics: newMetrics(deps.MetricsRegistry, deps.Key, logger),
	}
	t.cursor.Store(deps.StartAfter)
	t.SetDecoding(deps.Type, deps.Endianness)
	return t
}

// Events returns the delivery channel. The event loop must drain it without
// blocking on anything else.
func (t *Task) Events() <-chan Event { return t.events }

// Cursor returns the id of the last delivered entry.
func (t *Task) Cursor() uint64 { return t.cursor.Load() }

// Running reports whether the task is in the Listening state.
func (t *Task) Running() bool { return t.running.Load() }

// SetDecoding updates how subsequent entries are decoded. Safe to call while
// listening; already-delivered batches are unaffected.
func (t *Task) SetDecoding(et codec.ElementType, e codec.Endianness) {
	t.decoding.Store(uint64(et)<<32 | uint64(e))
}

func (t *Task) decodingPair() (codec.ElementType, codec.Endianness) {
	v := t.decoding.Load()
	return codec.ElementType(v >> 32), codec.Endianness(v & 0xFFFFFFFF)
}

// Initialize validates configuration and dependencies.
func (t *Task) Initialize() error {
	if t.st == nil {
		return errors.WrapInvalid(fmt.Errorf("nil store"),
			"listener", "Initialize", "store validation")
	}
	if t.key == "" {
		return errors.WrapInvalid(fmt.Errorf("empty stream key"),
			"listener", "Initialize", "key validation")
	}
	return t.cfg.Validate()
}

// Start moves the task to Listening. Starting a running task is an error so
// the event loop can implement toggle semantics.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "listener", "Start", "state check")
	}

	t.shutdown = make(chan struct{})
	t.done = make(chan struct{})
	t.episodeActive = false
	t.episodeDrops = 0
	t.running.Store(true)
	if t.metrics != nil {
		t.metrics.running.Set(1)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(t.done)
		t.pollLoop(ctx)
	}()

	t.logger.Info("listener started", "cursor", t.cursor.Load())
	return nil
}

// Stop signals shutdown and waits up to timeout for the poll loop to exit.
// The loop observes the signal within one poll timeout.
func (t *Task) Stop(timeout time.Duration) error {
	t.mu.Lock()
	if !t.running.Load() {
		t.mu.Unlock()
		return nil
	}
	close(t.shutdown)
	done := t.done
	t.mu.Unlock()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"listener", "Stop", "graceful shutdown")
	}
	return nil
}

// Close releases the task's metric registrations so a replacement task can
// register its own. Call after Stop when the task is being discarded.
func (t *Task) Close() {
	t.metrics.unregister()
}

// LastError returns the terminal error that stopped the task, if any.
func (t *Task) LastError() error {
	if err, ok := t.lastErr.Load().(error); ok {
		return err
	}
	return nil
}

func (t *Task) stopWith(err error) {
	if err != nil {
		t.lastErr.Store(err)
	}
	t.running.Store(false)
	if t.metrics != nil {
		t.metrics.running.Set(0)
	}
}

// pollLoop is the Listening state: read, decode, deliver, advance cursor.
func (t *Task) pollLoop(ctx context.Context) {
	defer t.stopWith(nil)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.shutdown:
			return
		default:
		}

		entries, err := t.st.StreamReadBlocking(ctx, t.key, t.cursor.Load(), t.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			terminal := errors.Wrap(err, "listener", "pollLoop", "stream read")
			t.logger.Error("listener terminated by store error", "error", terminal)
			if t.metrics != nil {
				t.metrics.storeErrors.Inc()
			}
			t.stopWith(terminal)
			t.emit(ctx, Event{Type: EventError, Err: terminal})
			return
		}

		t.flushPending()

		if len(entries) == 0 {
			continue
		}
		if t.metrics != nil {
			t.metrics.entries.Add(float64(len(entries)))
			t.metrics.batches.Inc()
		}

		batch := t.decodeBatch(entries)
		if !t.deliver(ctx, batch) {
			return
		}
		// Advance only after delivery so a restart resumes without loss.
		t.cursor.Store(batch.LastID)
	}
}

// decodeBatch concatenates the configured field of each entry and decodes it
// under the current element type and byte order.
func (t *Task) decodeBatch(entries []store.Entry) Batch {
	et, e := t.decodingPair()

	var raw []byte
	for _, entry := range entries {
		raw = append(raw, entry.Fields[t.cfg.Field]...)
	}
	res := codec.Decode(raw, et, e)
	if res.Truncated > 0 {
		t.logger.Debug("trailing bytes dropped during decode",
			"bytes", res.Truncated, "error", errors.ErrDecodeTruncated)
	}

	return Batch{
		Key:       t.key,
		FirstID:   entries[0].ID,
		LastID:    entries[len(entries)-1].ID,
		Samples:   res.Samples,
		Text:      res.Text,
		Truncated: res.Truncated,
	}
}

// deliver pushes a batch toward the event loop. On saturation it blocks up
// to the backpressure budget, then buffers with drop-oldest and reports one
// overflow event for the episode. Returns false only on shutdown.
func (t *Task) deliver(ctx context.Context, batch Batch) bool {
	// Preserve order: nothing bypasses the pending ring while it holds data.
	if t.pending.Len() == 0 {
		select {
		case t.events <- Event{Type: EventData, Batch: &batch}:
			return true
		default:
		}

		timer := time.NewTimer(t.cfg.BackpressureBudget)
		select {
		case t.events <- Event{Type: EventData, Batch: &batch}:
			timer.Stop()
			return true
		case <-timer.C:
		case <-t.shutdown:
			timer.Stop()
			return false
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}

	if t.pending.Write(batch) {
		t.episodeDrops++
		if t.metrics != nil {
			t.metrics.dropped.Inc()
		}
		if !t.episodeActive {
			t.episodeActive = true
			t.logger.Warn("delivery channel saturated, dropping oldest buffered batch")
		}
	}
	t.flushPending()
	return true
}

// flushPending moves buffered batches to the channel without blocking. The
// overflow notice for an active episode goes out first, once.
func (t *Task) flushPending() {
	if t.episodeActive && t.episodeDrops > 0 {
		select {
		case t.events <- Event{Type: EventOverflow, Dropped: t.episodeDrops}:
			if t.metrics != nil {
				t.metrics.overflows.Inc()
			}
			t.episodeDrops = 0
		default:
			return
		}
	}

	for {
		batch, ok := t.pending.Peek()
		if !ok {
			if t.episodeDrops == 0 {
				t.episodeActive = false
			}
			return
		}
		select {
		case t.events <- Event{Type: EventData, Batch: &batch}:
			t.pending.Read()
		default:
			return
		}
	}
}

// emit performs a best-effort send for terminal events.
func (t *Task) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	case <-time.After(t.cfg.BackpressureBudget):
	}
}
