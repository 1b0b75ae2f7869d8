// Package orchestrator owns the engine state: the plot view, the decode
// settings, the spectrum cache, and the background tasks. It is the sole
// mutator of all of them. Input arrives as discrete events; output leaves as
// immutable render snapshots. Background tasks communicate only through
// bounded channels drained here, so snapshot generation never blocks on
// store I/O.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/wavescope/codec"
	"github.com/c360/wavescope/errors"
	"github.com/c360/wavescope/generator"
	"github.com/c360/wavescope/listener"
	"github.com/c360/wavescope/metric"
	"github.com/c360/wavescope/plot"
	"github.com/c360/wavescope/spectrum"
	"github.com/c360/wavescope/store"
)

// DataStore is the full store surface the orchestrator consumes.
type DataStore interface {
	store.ValueStore
	store.EntryStream
}

// Config holds orchestrator tuning knobs.
type Config struct {
	MaxRetainedSamples int              // live-mode series cap, oldest dropped beyond it
	StopTimeout        time.Duration    // budget for stopping a background task
	Listener           listener.Config  // applied to listener tasks
	Generator          generator.Config // template for generator tasks; Key defaults to the selection
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetainedSamples: 4096,
		StopTimeout:        3 * time.Second,
		Listener:           listener.DefaultConfig(),
		Generator:          generator.DefaultConfig(),
	}
}

// Deps holds runtime dependencies for the orchestrator.
type Deps struct {
	Store           DataStore
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Orchestrator routes input events and produces render snapshots.
type Orchestrator struct {
	mu sync.Mutex

	st      DataStore
	cfg     Config
	logger  *slog.Logger
	metrics *metric.MetricsRegistry

	view        *plot.View
	raw         []byte
	text        bool
	truncated   int
	selectedKey string

	elementType codec.ElementType
	endianness  codec.Endianness

	fftVisible bool
	fftScale   spectrum.Scale
	fftResult  spectrum.Result
	fftDirty   bool

	lis        *listener.Task
	lisKey     string
	gen        *generator.Task
	genErrSeen bool

	status string
}

// Point is one projected sample in viewport pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Snapshot is the immutable render state handed to the presentation layer.
type Snapshot struct {
	Key        string
	Type       codec.ElementType
	Endianness codec.Endianness

	XLimits  plot.AxisLimits
	YLimits  plot.AxisLimits
	AutoFit  bool
	Viewport plot.Viewport

	Points      []Point
	SampleCount int
	Truncated   int

	Text bool
	Raw  []byte

	FFTVisible bool
	FFTScale   spectrum.Scale
	FFT        []float64

	ListenerRunning  bool
	ListenerCursor   uint64
	GeneratorRunning bool

	Status string
}

// New creates an orchestrator with auto-fit enabled and nothing selected.
func New(deps Deps) *Orchestrator {
	cfg := deps.Config
	defaults := DefaultConfig()
	if cfg.MaxRetainedSamples == 0 {
		cfg.MaxRetainedSamples = defaults.MaxRetainedSamples
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = defaults.StopTimeout
	}
	if cfg.Listener == (listener.Config{}) {
		cfg.Listener = defaults.Listener
	}
	if cfg.Generator == (generator.Config{}) {
		cfg.Generator = defaults.Generator
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		st:          deps.Store,
		cfg:         cfg,
		logger:      logger.With("component", "orchestrator"),
		metrics:     deps.MetricsRegistry,
		view:        plot.NewView(cfg.MaxRetainedSamples),
		elementType: codec.Float32,
		endianness:  codec.Little,
	}
}

// HandleEvent applies one input event. Local input errors become a status
// line and never propagate; the interaction loop keeps running regardless.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch ev.Kind {
	case EventTick:
		o.drainListener()
		o.checkGenerator()
	case EventSelectKey:
		o.selectKey(ctx, ev.Key)
	case EventCycleType:
		o.cycleType(ev.Reverse)
	case EventToggleEndianness:
		o.toggleEndianness()
	case EventZoom:
		o.view.Zoom(ev.Factor, ev.AnchorPX, ev.AnchorPY)
	case EventPan:
		o.view.Pan(ev.DX, ev.DY)
	case EventSetXLimits:
		if err := o.view.SetXLimits(ev.Min, ev.Max); err != nil {
			o.setStatus(err.Error())
		}
	case EventSetYLimits:
		if err := o.view.SetYLimits(ev.Min, ev.Max); err != nil {
			o.setStatus(err.Error())
		}
	case EventAutoFit:
		o.view.EnableAutoFit()
	case EventToggleFFT:
		o.fftVisible = !o.fftVisible
		if o.fftVisible {
			o.fftDirty = true
		}
	case EventToggleFFTScale:
		if o.fftScale == spectrum.Linear {
			o.fftScale = spectrum.Log
		} else {
			o.fftScale = spectrum.Linear
		}
		o.fftDirty = true
	case EventToggleListener:
		o.toggleListener(ctx)
	case EventToggleGenerator:
		o.toggleGenerator(ctx)
	case EventResize:
		o.view.SetViewport(ev.Width, ev.Height)
	case EventAckError:
		o.status = ""
	case EventWriteValue:
		o.writeValue(ctx, ev.Text)
	case EventDeleteKey:
		o.deleteKey(ctx)
	case EventRenameKey:
		o.renameKey(ctx, ev.Key)
	}
}

// Snapshot returns the current render state, recomputing the spectrum
// lazily when it is visible and stale.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.fftVisible && o.fftDirty {
		o.fftResult = spectrum.Compute(o.view.Series(), o.fftScale)
		o.fftDirty = false
	}

	snap := Snapshot{
		Key:              o.selectedKey,
		Type:             o.elementType,
		Endianness:       o.endianness,
		XLimits:          o.view.XLimits(),
		YLimits:          o.view.YLimits(),
		AutoFit:          o.view.AutoFit(),
		Viewport:         o.view.Viewport(),
		SampleCount:      o.view.Len(),
		Truncated:        o.truncated,
		Text:             o.text,
		Raw:              o.raw,
		FFTVisible:       o.fftVisible,
		FFTScale:         o.fftScale,
		ListenerRunning:  o.lis != nil && o.lis.Running(),
		GeneratorRunning: o.gen != nil && o.gen.Running(),
		Status:           o.status,
	}
	if o.lis != nil {
		snap.ListenerCursor = o.lis.Cursor()
	}
	if o.fftVisible {
		snap.FFT = o.fftResult.Magnitudes
	}
	snap.Points = o.projectSeries()
	return snap
}

// Close stops any running background tasks and releases them.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var firstErr error
	if o.lis != nil {
		if err := o.lis.Stop(o.cfg.StopTimeout); err != nil && firstErr == nil {
			firstErr = err
		}
		o.lis.Close()
		o.lis = nil
	}
	if o.gen != nil {
		if err := o.gen.Stop(o.cfg.StopTimeout); err != nil && firstErr == nil {
			firstErr = err
		}
		o.gen.Close()
		o.gen = nil
	}
	return firstErr
}

func (o *Orchestrator) setStatus(s string) {
	o.status = s
}

// projectSeries maps retained samples into viewport pixels, keeping only
// points inside the drawable area.
func (o *Orchestrator) projectSeries() []Point {
	series := o.view.Series()
	vp := o.view.Viewport()
	w, h := float64(vp.Width), float64(vp.Height)

	var points []Point
	for i, s := range series {
		px, py := o.view.Project(float64(i), s)
		if px < 0 || px > w || py < 0 || py > h {
			continue
		}
		points = append(points, Point{X: px, Y: py})
	}
	return points
}

// refreshSeries re-decodes the raw value under the current settings,
// replacing the active series and invalidating the spectrum.
func (o *Orchestrator) refreshSeries() {
	res := codec.Decode(o.raw, o.elementType, o.endianness)
	o.text = res.Text
	o.truncated = res.Truncated
	o.view.SetSeries(res.Samples)
	o.fftDirty = true
}

func (o *Orchestrator) selectKey(ctx context.Context, key string) {
	value, err := o.st.GetValue(ctx, key)
	if err != nil {
		o.setStatus(err.Error())
		return
	}
	o.selectedKey = key
	o.raw = value
	o.refreshSeries()
	o.setStatus("")
}

func (o *Orchestrator) cycleType(reverse bool) {
	if reverse {
		o.elementType = o.elementType.Prev()
	} else {
		o.elementType = o.elementType.Next()
	}
	o.refreshSeries()
	if o.lis != nil {
		o.lis.SetDecoding(o.elementType, o.endianness)
	}
}

func (o *Orchestrator) toggleEndianness() {
	o.endianness = o.endianness.Toggle()
	o.refreshSeries()
	if o.lis != nil {
		o.lis.SetDecoding(o.elementType, o.endianness)
	}
}

// drainListener consumes everything buffered on the listener channel without
// blocking, appending data batches to the live series.
func (o *Orchestrator) drainListener() {
	if o.lis == nil {
		return
	}
	for {
		select {
		case ev := <-o.lis.Events():
			switch ev.Type {
			case listener.EventData:
				o.view.AppendSeries(ev.Batch.Samples)
				o.text = ev.Batch.Text
				o.fftDirty = true
			case listener.EventOverflow:
				o.setStatus(overflowStatus(ev.Dropped))
			case listener.EventError:
				o.setStatus(fmt.Sprintf("listener stopped: %v", ev.Err))
			}
		default:
			return
		}
	}
}

// checkGenerator surfaces a generator write failure exactly once.
func (o *Orchestrator) checkGenerator() {
	if o.gen == nil || o.gen.Running() || o.genErrSeen {
		return
	}
	if err := o.gen.LastError(); err != nil {
		o.genErrSeen = true
		o.setStatus(fmt.Sprintf("generator stopped: %v", err))
	}
}

// toggleListener starts a listener on the selected key, or stops the active
// one. A restart on the same key resumes from the last delivered cursor.
func (o *Orchestrator) toggleListener(ctx context.Context) {
	if o.lis != nil && o.lis.Running() {
		if err := o.lis.Stop(o.cfg.StopTimeout); err != nil {
			o.setStatus(err.Error())
		}
		return
	}

	if o.selectedKey == "" {
		o.setStatus("no key selected")
		return
	}

	if o.lis == nil || o.lisKey != o.selectedKey {
		if o.lis != nil {
			o.lis.Close()
		}
		o.lis = listener.NewTask(listener.Deps{
			Store:           o.st,
			Key:             o.selectedKey,
			Type:            o.elementType,
			Endianness:      o.endianness,
			Config:          o.cfg.Listener,
			MetricsRegistry: o.metrics,
			Logger:          o.logger,
		})
		o.lisKey = o.selectedKey
		if err := o.lis.Initialize(); err != nil {
			o.lis.Close()
			o.lis = nil
			o.setStatus(err.Error())
			return
		}
	}

	o.lis.SetDecoding(o.elementType, o.endianness)
	if err := o.lis.Start(ctx); err != nil {
		o.setStatus(err.Error())
	}
}

// toggleGenerator starts the generator toward the selected key, or stops
// the active one.
func (o *Orchestrator) toggleGenerator(ctx context.Context) {
	if o.gen != nil && o.gen.Running() {
		if err := o.gen.Stop(o.cfg.StopTimeout); err != nil {
			o.setStatus(err.Error())
		}
		return
	}

	cfg := o.cfg.Generator
	if cfg.Key == "" {
		cfg.Key = o.selectedKey
	}

	if o.gen == nil || o.gen.LastError() != nil {
		if o.gen != nil {
			o.gen.Close()
		}
		o.gen = generator.NewTask(generator.Deps{
			Store:           o.st,
			Config:          cfg,
			MetricsRegistry: o.metrics,
			Logger:          o.logger,
		})
		if err := o.gen.Initialize(); err != nil {
			o.gen.Close()
			o.gen = nil
			o.setStatus(err.Error())
			return
		}
	}

	o.genErrSeen = false
	if err := o.gen.Start(ctx); err != nil {
		o.setStatus(err.Error())
	}
}

// writeValue parses numeric text, encodes it under the current element
// type, and stores it at the selected key. Saturation is reported, not
// fatal.
func (o *Orchestrator) writeValue(ctx context.Context, text string) {
	if o.selectedKey == "" {
		o.setStatus("no key selected")
		return
	}

	samples, err := codec.ParseValues(text, o.elementType)
	if err != nil {
		o.setStatus(err.Error())
		return
	}

	data, saturated := codec.Encode(samples, o.elementType, o.endianness)
	if err := o.st.SetValue(ctx, o.selectedKey, data); err != nil {
		o.setStatus(err.Error())
		return
	}

	o.raw = data
	o.refreshSeries()
	if saturated > 0 {
		o.setStatus(saturationStatus(saturated, o.elementType))
	} else {
		o.setStatus("")
	}
}

// overflowStatus builds the status line for a listener overflow report.
func overflowStatus(dropped int) string {
	return fmt.Sprintf("%s (%d batches)", errors.ErrOverflow, dropped)
}

// saturationStatus builds the status line for an encode saturation report.
func saturationStatus(count int, t codec.ElementType) string {
	return fmt.Sprintf("%s: %d %s samples", errors.ErrEncodeSaturated, count, t)
}

// deleteKey removes the selected value and clears the plot state.
func (o *Orchestrator) deleteKey(ctx context.Context) {
	if o.selectedKey == "" {
		o.setStatus("no key selected")
		return
	}
	if err := o.st.DeleteValue(ctx, o.selectedKey); err != nil {
		o.setStatus(err.Error())
		return
	}
	o.selectedKey = ""
	o.raw = nil
	o.truncated = 0
	o.text = false
	o.view.SetSeries(nil)
	o.fftDirty = true
	o.setStatus("")
}

// renameKey moves the selected value, preserving its bytes.
func (o *Orchestrator) renameKey(ctx context.Context, newKey string) {
	if o.selectedKey == "" {
		o.setStatus("no key selected")
		return
	}
	if newKey == "" || newKey == o.selectedKey {
		o.setStatus("invalid rename target")
		return
	}
	if err := o.st.RenameValue(ctx, o.selectedKey, newKey); err != nil {
		o.setStatus(err.Error())
		return
	}
	o.selectedKey = newKey
	o.setStatus("")
}
