// Package generator implements the signal generator task: on a fixed period
// it synthesizes a block of waveform samples, encodes them under the
// configured element type, and appends the bytes as a new stream entry.
// Phase carries across entries so the appended stream forms one continuous
// wave.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/wavescope/codec"
	"github.com/c360/wavescope/errors"
	"github.com/c360/wavescope/metric"
	"github.com/c360/wavescope/store"
)

// Waveform selects the synthesis function.
type Waveform int

const (
	// Sine is a pure sine wave.
	Sine Waveform = iota
	// Square alternates between +amplitude and -amplitude.
	Square
	// Sawtooth ramps from -amplitude to +amplitude each cycle.
	Sawtooth
	// Triangle ramps symmetrically each cycle.
	Triangle
	// Noise is uniform noise in [-amplitude, +amplitude].
	Noise
)

// String returns the display name of the waveform.
func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	case Noise:
		return "noise"
	default:
		return "unknown"
	}
}

// Config holds the generator parameters. Validate rejects it before a task
// can start with it.
type Config struct {
	Waveform         Waveform
	Frequency        float64 // wave cycles per second; ignored for Noise
	Amplitude        float64
	SampleRate       float64 // samples per second
	ElementsPerEntry int
	Key              string // target stream key
	Field            string // entry field carrying the payload
	Type             codec.ElementType
	Endianness       codec.Endianness
	Seed             uint64 // noise seed; 0 picks one from the clock
}

// DefaultConfig returns a playable starting configuration.
func DefaultConfig() Config {
	return Config{
		Waveform:         Sine,
		Frequency:        1,
		Amplitude:        100,
		SampleRate:       64,
		ElementsPerEntry: 16,
		Field:            "data",
		Type:             codec.Float32,
		Endianness:       codec.Little,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 || math.IsNaN(c.SampleRate) || math.IsInf(c.SampleRate, 0) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: sample rate must be positive", errors.ErrInvalidConfig),
			"generator", "Validate", "sample rate")
	}
	if c.ElementsPerEntry <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: elements per entry must be positive", errors.ErrInvalidConfig),
			"generator", "Validate", "elements per entry")
	}
	if c.Waveform != Noise && (c.Frequency <= 0 || math.IsNaN(c.Frequency) || math.IsInf(c.Frequency, 0)) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: frequency must be positive", errors.ErrInvalidConfig),
			"generator", "Validate", "frequency")
	}
	if math.IsNaN(c.Amplitude) || math.IsInf(c.Amplitude, 0) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: amplitude must be finite", errors.ErrInvalidConfig),
			"generator", "Validate", "amplitude")
	}
	if c.Key == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: target stream key required", errors.ErrInvalidConfig),
			"generator", "Validate", "stream key")
	}
	if c.Field == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: entry field name required", errors.ErrInvalidConfig),
			"generator", "Validate", "field name")
	}
	if !c.Type.Numeric() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: element type %s cannot carry samples", errors.ErrInvalidConfig, c.Type),
			"generator", "Validate", "element type")
	}
	return nil
}

// Deps holds runtime dependencies for the generator task.
type Deps struct {
	Store           store.EntryStream
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Task is the signal generator. Lifecycle: Initialize, Start(ctx),
// Stop(timeout).
type Task struct {
	st     store.EntryStream
	cfg    Config
	logger *slog.Logger

	limiter *rate.Limiter
	rng     xorshift64
	elapsed float64 // synthesized time in seconds, carried across entries

	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	mu      sync.Mutex

	lastID  atomic.Uint64
	lastErr atomic.Value // stores error

	metrics *Metrics
}

// NewTask creates a generator task.
func NewTask(deps Deps) *Task {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("component", "generator", "key", deps.Config.Key)

	seed := deps.Config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) | 1
	}

	return &Task{
		st:      deps.Store,
		cfg:     deps.Config,
		logger:  logger,
		rng:     xorshift64(seed),
		metrics: newMetrics(deps.MetricsRegistry, deps.Config.Key, logger),
	}
}

// Close releases the task's metric registrations so a replacement task can
// register its own. Call after Stop when the task is being discarded.
func (t *Task) Close() {
	t.metrics.unregister()
}

// Running reports whether the task is in the Running state.
func (t *Task) Running() bool { return t.running.Load() }

// LastAppendedID returns the id of the most recent entry.
func (t *Task) LastAppendedID() uint64 { return t.lastID.Load() }

// LastError returns the write error that stopped the task, if any. Reading
// it does not clear it; a successful restart does.
func (t *Task) LastError() error {
	if err, ok := t.lastErr.Load().(error); ok {
		return err
	}
	return nil
}

// Initialize validates configuration and dependencies.
func (t *Task) Initialize() error {
	if t.st == nil {
		return errors.WrapInvalid(fmt.Errorf("nil store"),
			"generator", "Initialize", "store validation")
	}
	return t.cfg.Validate()
}

// Start moves the task to Running. One entry is appended per period, where
// the period is elements-per-entry divided by the sample rate.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "generator", "Start", "state check")
	}

	entriesPerSecond := t.cfg.SampleRate / float64(t.cfg.ElementsPerEntry)
	t.limiter = rate.NewLimiter(rate.Limit(entriesPerSecond), 1)

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.lastErr = atomic.Value{}
	t.running.Store(true)
	if t.metrics != nil {
		t.metrics.running.Set(1)
	}

	go func() {
		defer close(t.done)
		t.runLoop(runCtx)
	}()

	t.logger.Info("generator started",
		"waveform", t.cfg.Waveform, "rate", t.cfg.SampleRate,
		"elements", t.cfg.ElementsPerEntry)
	return nil
}

// Stop cancels the run loop and waits up to timeout for it to exit.
func (t *Task) Stop(timeout time.Duration) error {
	t.mu.Lock()
	if !t.running.Load() {
		t.mu.Unlock()
		return nil
	}
	t.cancel()
	done := t.done
	t.mu.Unlock()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"generator", "Stop", "graceful shutdown")
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

// runLoop is the Running state: pace, synthesize, encode, append.
func (t *Task) runLoop(ctx context.Context) {
	defer t.stopWith(nil)

	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return
		}

		samples := t.synthesize()
		data, saturated := codec.Encode(samples, t.cfg.Type, t.cfg.Endianness)
		if saturated > 0 {
			if t.metrics != nil {
				t.metrics.saturated.Add(float64(saturated))
			}
			t.logger.Debug("samples clamped during encode", "count", saturated)
		}

		id, err := t.st.StreamAppend(ctx, t.cfg.Key, map[string][]byte{t.cfg.Field: data})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			terminal := errors.Wrap(err, "generator", "runLoop", "stream append")
			t.logger.Error("generator stopped by write failure", "error", terminal)
			if t.metrics != nil {
				t.metrics.writeErrors.Inc()
			}
			t.stopWith(terminal)
			return
		}

		t.lastID.Store(id)
		if t.metrics != nil {
			t.metrics.entries.Inc()
			t.metrics.samples.Add(float64(len(samples)))
		}
	}
}

// synthesize produces the next block of samples, advancing the internal
// clock so consecutive entries are phase continuous.
func (t *Task) synthesize() []float64 {
	n := t.cfg.ElementsPerEntry
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		x := t.elapsed + float64(i)/t.cfg.SampleRate
		out[i] = t.sample(x)
	}
	t.elapsed += float64(n) / t.cfg.SampleRate
	return out
}

func (t *Task) sample(x float64) float64 {
	amp := t.cfg.Amplitude

	if t.cfg.Waveform == Noise {
		return amp * t.rng.unit()
	}

	cycles := t.cfg.Frequency * x
	frac := cycles - math.Floor(cycles)

	switch t.cfg.Waveform {
	case Square:
		if frac < 0.5 {
			return amp
		}
		return -amp
	case Sawtooth:
		return amp * (2*frac - 1)
	case Triangle:
		return amp * (4*math.Abs(frac-0.5) - 1)
	default:
		return amp * math.Sin(2*math.Pi*cycles)
	}
}

// xorshift64 is a tiny deterministic PRNG for the noise waveform.
type xorshift64 uint64

func (s *xorshift64) next() uint64 {
	x := uint64(*s)
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	*s = xorshift64(x)
	return x
}

// unit returns a uniform value in [-1, 1).
func (s *xorshift64) unit() float64 {
	return float64(s.next()>>11)/(1<<52) - 1
}
