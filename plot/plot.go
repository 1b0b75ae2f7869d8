// Package plot owns the waveform view state: axis limits, auto-fit, zoom and
// pan, and the affine mapping between data space and viewport pixels. The
// orchestrator is the only mutator; background tasks never touch a View.
package plot

import (
	"fmt"
	"math"

	"github.com/c360/wavescope/errors"
)

const (
	// padFraction is the auto-fit padding applied above and below the data
	// range.
	padFraction = 0.05
	// zeroRangePad keeps a flat series from producing a zero-height axis.
	zeroRangePad = 1.0
	// minVisibleSpan bounds zoom-in so a viewport never degenerates.
	minVisibleSpan = 1e-6
)

// AxisLimits is a closed [Min, Max] interval on one axis.
type AxisLimits struct {
	Min float64
	Max float64
}

// Span returns Max - Min.
func (l AxisLimits) Span() float64 { return l.Max - l.Min }

// Valid reports whether both bounds are finite and ordered.
func (l AxisLimits) Valid() bool {
	return !math.IsNaN(l.Min) && !math.IsInf(l.Min, 0) &&
		!math.IsNaN(l.Max) && !math.IsInf(l.Max, 0) &&
		l.Min <= l.Max
}

// Viewport is the drawable area in terminal cells.
type Viewport struct {
	Width  int
	Height int
}

// View holds the active sample series and its axis state.
type View struct {
	x        AxisLimits
	y        AxisLimits
	autoFit  bool
	series   []float64
	maxKeep  int
	viewport Viewport
}

// NewView returns a view with auto-fit enabled. maxRetained bounds the live
// series length; zero or negative means unbounded.
func NewView(maxRetained int) *View {
	return &View{
		x:        AxisLimits{0, 1},
		y:        AxisLimits{0, 1},
		autoFit:  true,
		maxKeep:  maxRetained,
		viewport: Viewport{Width: 80, Height: 24},
	}
}

// SetViewport updates the drawable area. Zero dimensions are clamped to 1.
func (v *View) SetViewport(w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	v.viewport = Viewport{Width: w, Height: h}
}

// Viewport returns the current drawable area.
func (v *View) Viewport() Viewport { return v.viewport }

// XLimits returns the current x-axis limits.
func (v *View) XLimits() AxisLimits { return v.x }

// YLimits returns the current y-axis limits.
func (v *View) YLimits() AxisLimits { return v.y }

// AutoFit reports whether limits track the data.
func (v *View) AutoFit() bool { return v.autoFit }

// Series returns the active sample series. Callers must not mutate it.
func (v *View) Series() []float64 { return v.series }

// Len returns the number of retained samples.
func (v *View) Len() int { return len(v.series) }

// sanitize replaces non-finite values so axis math and rendering stay defined.
func sanitize(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			out[i] = 0
		} else {
			out[i] = s
		}
	}
	return out
}

// SetSeries replaces the active series. With auto-fit enabled the limits are
// recomputed from the new data.
func (v *View) SetSeries(samples []float64) {
	v.series = v.trim(sanitize(samples))
	if v.autoFit {
		v.fit()
	}
}

// AppendSeries appends live samples, dropping the oldest beyond the retained
// cap. With auto-fit enabled the limits are recomputed.
func (v *View) AppendSeries(samples []float64) {
	v.series = v.trim(append(v.series, sanitize(samples)...))
	if v.autoFit {
		v.fit()
	}
}

func (v *View) trim(samples []float64) []float64 {
	if v.maxKeep > 0 && len(samples) > v.maxKeep {
		return samples[len(samples)-v.maxKeep:]
	}
	return samples
}

// EnableAutoFit re-enables auto-fit and recomputes limits immediately.
func (v *View) EnableAutoFit() {
	v.autoFit = true
	v.fit()
}

// fit recomputes limits from the current series: x covers every index, y
// covers the value range with padding.
func (v *View) fit() {
	n := len(v.series)
	if n == 0 {
		v.x = AxisLimits{0, 1}
		v.y = AxisLimits{0, 1}
		return
	}
	if n == 1 {
		v.x = AxisLimits{0, 1}
	} else {
		v.x = AxisLimits{0, float64(n - 1)}
	}

	lo, hi := v.series[0], v.series[0]
	for _, s := range v.series[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	pad := (hi - lo) * padFraction
	if pad == 0 {
		pad = zeroRangePad
	}
	v.y = AxisLimits{lo - pad, hi + pad}
}

// dataExtent returns the axis ranges spanned by the retained data, used to
// bound zoom-out and pan.
func (v *View) dataExtent() (AxisLimits, AxisLimits) {
	n := len(v.series)
	if n == 0 {
		return AxisLimits{0, 1}, AxisLimits{0, 1}
	}
	x := AxisLimits{0, math.Max(1, float64(n-1))}

	lo, hi := v.series[0], v.series[0]
	for _, s := range v.series[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	pad := (hi - lo) * padFraction
	if pad == 0 {
		pad = zeroRangePad
	}
	return x, AxisLimits{lo - pad, hi + pad}
}

// Project maps a data point to viewport pixel coordinates. The y axis is
// inverted: row 0 is the top of the viewport.
func (v *View) Project(index, value float64) (px, py float64) {
	px = (index - v.x.Min) / nonZero(v.x.Span()) * float64(v.viewport.Width)
	py = (1 - (value-v.y.Min)/nonZero(v.y.Span())) * float64(v.viewport.Height)
	return px, py
}

// Unproject is the exact inverse of Project, mapping pixels back to data
// coordinates so mouse-anchored zoom and pan stay consistent.
func (v *View) Unproject(px, py float64) (index, value float64) {
	index = v.x.Min + px/float64(v.viewport.Width)*v.x.Span()
	value = v.y.Min + (1-py/float64(v.viewport.Height))*v.y.Span()
	return index, value
}

func nonZero(span float64) float64 {
	if span == 0 {
		return minVisibleSpan
	}
	return span
}

// Zoom scales both axis ranges around a pixel anchor. factor > 1 zooms in.
// Zoom-in is clamped to a minimum visible span, zoom-out to the total data
// extent. Any zoom disables auto-fit.
func (v *View) Zoom(factor float64, anchorPx, anchorPy float64) {
	if factor <= 0 {
		return
	}
	ax, ay := v.Unproject(anchorPx, anchorPy)
	xExt, yExt := v.dataExtent()

	v.x = zoomAxis(v.x, factor, ax, xExt)
	v.y = zoomAxis(v.y, factor, ay, yExt)
	v.autoFit = false
}

func zoomAxis(l AxisLimits, factor, anchor float64, extent AxisLimits) AxisLimits {
	span := l.Span() / factor
	if span < minVisibleSpan {
		return l
	}
	if span > extent.Span() {
		span = extent.Span()
	}
	// Keep the anchor at the same fractional position in the window.
	frac := 0.5
	if l.Span() != 0 {
		frac = (anchor - l.Min) / l.Span()
	}
	out := AxisLimits{Min: anchor - frac*span, Max: anchor + (1-frac)*span}
	return clampWindow(out, extent)
}

// Pan translates the limits by a pixel delta expressed in data units via the
// current screen-to-data scale, clamped so the window never leaves the data
// extent entirely. Disables auto-fit.
func (v *View) Pan(dxPx, dyPx float64) {
	dx := dxPx / float64(v.viewport.Width) * v.x.Span()
	dy := -dyPx / float64(v.viewport.Height) * v.y.Span()

	xExt, yExt := v.dataExtent()
	v.x = clampWindow(AxisLimits{v.x.Min + dx, v.x.Max + dx}, xExt)
	v.y = clampWindow(AxisLimits{v.y.Min + dy, v.y.Max + dy}, yExt)
	v.autoFit = false
}

// clampWindow shifts a window so it overlaps the extent, preserving its span
// where possible.
func clampWindow(l AxisLimits, extent AxisLimits) AxisLimits {
	span := l.Span()
	if span >= extent.Span() {
		// Window covers the extent; pin it to the extent bounds.
		if l.Min > extent.Min {
			return AxisLimits{extent.Min, extent.Min + span}
		}
		if l.Max < extent.Max {
			return AxisLimits{extent.Max - span, extent.Max}
		}
		return l
	}
	if l.Min < extent.Min {
		return AxisLimits{extent.Min, extent.Min + span}
	}
	if l.Max > extent.Max {
		return AxisLimits{extent.Max - span, extent.Max}
	}
	return l
}

// SetXLimits commits manual x limits after validation. Invalid input leaves
// the prior limits untouched and returns a validation error.
func (v *View) SetXLimits(min, max float64) error {
	if err := validateLimits(min, max); err != nil {
		return err
	}
	v.x = AxisLimits{min, max}
	v.autoFit = false
	return nil
}

// SetYLimits commits manual y limits after validation. Invalid input leaves
// the prior limits untouched and returns a validation error.
func (v *View) SetYLimits(min, max float64) error {
	if err := validateLimits(min, max); err != nil {
		return err
	}
	v.y = AxisLimits{min, max}
	v.autoFit = false
	return nil
}

func validateLimits(min, max float64) error {
	if math.IsNaN(min) || math.IsInf(min, 0) || math.IsNaN(max) || math.IsInf(max, 0) {
		return errors.WrapInvalid(errors.ErrInvalidLimits, "View", "SetLimits", "finite check")
	}
	if min >= max {
		return errors.WrapInvalid(
			fmt.Errorf("%w: min %v must be less than max %v", errors.ErrInvalidLimits, min, max),
			"View", "SetLimits", "order check")
	}
	return nil
}
