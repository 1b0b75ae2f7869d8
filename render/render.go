// Package render turns an orchestrator snapshot into a frame of terminal
// text. It is pure: no state, no I/O, no access to the store or the tasks.
// Everything it draws comes from the snapshot it was handed.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/c360/wavescope/codec"
	"github.com/c360/wavescope/orchestrator"
)

const (
	plotMark  = '*'
	barMark   = '#'
	blankMark = ' '
)

// Frame renders one complete frame: header, chart (or hex dump, or
// spectrum), axis summary, and the status line.
func Frame(snap orchestrator.Snapshot) string {
	var b strings.Builder

	b.WriteString(header(snap))
	b.WriteByte('\n')

	switch {
	case snap.Text:
		b.WriteString(hexPanel(snap))
	case snap.FFTVisible:
		b.WriteString(spectrumPanel(snap))
	default:
		b.WriteString(chartPanel(snap))
	}

	b.WriteString(footer(snap))
	if snap.Status != "" {
		b.WriteByte('\n')
		b.WriteString("status: " + snap.Status)
	}
	return b.String()
}

func header(snap orchestrator.Snapshot) string {
	key := snap.Key
	if key == "" {
		key = "(none)"
	}

	flags := make([]string, 0, 3)
	if snap.ListenerRunning {
		flags = append(flags, fmt.Sprintf("LIS@%d", snap.ListenerCursor))
	}
	if snap.GeneratorRunning {
		flags = append(flags, "GEN")
	}
	if snap.FFTVisible {
		flags = append(flags, "FFT:"+snap.FFTScale.String())
	}

	line := fmt.Sprintf("key=%s type=%s %s", key, snap.Type, snap.Endianness)
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, " ") + "]"
	}
	return line
}

func footer(snap orchestrator.Snapshot) string {
	mode := "manual"
	if snap.AutoFit {
		mode = "auto"
	}
	return fmt.Sprintf("x=[%.6g, %.6g] y=[%.6g, %.6g] samples=%d fit=%s",
		snap.XLimits.Min, snap.XLimits.Max,
		snap.YLimits.Min, snap.YLimits.Max,
		snap.SampleCount, mode)
}

// chartPanel scatters the projected points onto a bordered grid. Row 0 of
// the grid is the top of the viewport.
func chartPanel(snap orchestrator.Snapshot) string {
	w, h := snap.Viewport.Width, snap.Viewport.Height
	grid := newGrid(w, h)

	for _, p := range snap.Points {
		col := clampInt(int(p.X), 0, w-1)
		row := clampInt(int(p.Y), 0, h-1)
		grid[row][col] = plotMark
	}
	return frameGrid(grid)
}

// spectrumPanel draws magnitude bins as vertical bars scaled to the tallest
// bin. Bins beyond the viewport width are folded by keeping each column's
// maximum.
func spectrumPanel(snap orchestrator.Snapshot) string {
	w, h := snap.Viewport.Width, snap.Viewport.Height
	grid := newGrid(w, h)
	if len(snap.FFT) == 0 {
		return frameGrid(grid)
	}

	cols := make([]float64, w)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range cols {
		cols[i] = math.Inf(-1)
	}
	for i, m := range snap.FFT {
		col := i * w / len(snap.FFT)
		if col > w-1 {
			col = w - 1
		}
		if m > cols[col] {
			cols[col] = m
		}
		if m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}
	if hi == lo {
		hi = lo + 1
	}

	for col, m := range cols {
		if math.IsInf(m, -1) {
			continue
		}
		bar := int(math.Round((m - lo) / (hi - lo) * float64(h-1)))
		for row := 0; row <= bar; row++ {
			grid[h-1-row][col] = barMark
		}
	}
	return frameGrid(grid)
}

// hexPanel shows the raw bytes as a hex dump, capped to the viewport
// height.
func hexPanel(snap orchestrator.Snapshot) string {
	dump := codec.FormatHex(snap.Raw)
	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	if max := snap.Viewport.Height; len(lines) > max {
		lines = append(lines[:max-1], fmt.Sprintf("... %d bytes total", len(snap.Raw)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func newGrid(w, h int) [][]rune {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	grid := make([][]rune, h)
	for i := range grid {
		row := make([]rune, w)
		for j := range row {
			row[j] = blankMark
		}
		grid[i] = row
	}
	return grid
}

// frameGrid wraps the grid in a single-line box border.
func frameGrid(grid [][]rune) string {
	w := len(grid[0])
	var b strings.Builder

	b.WriteByte('+')
	b.WriteString(strings.Repeat("-", w))
	b.WriteString("+\n")
	for _, row := range grid {
		b.WriteByte('|')
		b.WriteString(string(row))
		b.WriteString("|\n")
	}
	b.WriteByte('+')
	b.WriteString(strings.Repeat("-", w))
	b.WriteString("+\n")
	return b.String()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
