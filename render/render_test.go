package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wavescope/codec"
	"github.com/c360/wavescope/orchestrator"
	"github.com/c360/wavescope/plot"
	"github.com/c360/wavescope/spectrum"
)

func baseSnapshot() orchestrator.Snapshot {
	return orchestrator.Snapshot{
		Key:        "wave",
		Type:       codec.Float32,
		Endianness: codec.Little,
		XLimits:    plot.AxisLimits{Min: 0, Max: 10},
		YLimits:    plot.AxisLimits{Min: -1, Max: 1},
		AutoFit:    true,
		Viewport:   plot.Viewport{Width: 20, Height: 5},
	}
}

func TestFramePlotsPoints(t *testing.T) {
	snap := baseSnapshot()
	snap.Points = []orchestrator.Point{{X: 10, Y: 2}, {X: 0, Y: 0}}
	snap.SampleCount = 2

	frame := Frame(snap)
	lines := strings.Split(frame, "\n")

	assert.Contains(t, frame, "key=wave type=float32 LE")
	assert.Contains(t, frame, "+--------------------+")

	// Header, top border, then grid rows: row 0 is lines[2].
	require.Greater(t, len(lines), 4)
	assert.Equal(t, byte('*'), lines[2][1], "point at row 0 col 0")
	assert.Equal(t, byte('*'), lines[4][11], "point at row 2 col 10")
}

func TestFrameWithoutPointsIsBlank(t *testing.T) {
	frame := Frame(baseSnapshot())
	assert.NotContains(t, frame, "*")
	assert.Contains(t, frame, "samples=0 fit=auto")
}

func TestHeaderShowsRunFlags(t *testing.T) {
	snap := baseSnapshot()
	snap.ListenerRunning = true
	snap.ListenerCursor = 7
	snap.GeneratorRunning = true

	frame := Frame(snap)
	assert.Contains(t, frame, "LIS@7")
	assert.Contains(t, frame, "GEN")
}

func TestHeaderWithoutSelection(t *testing.T) {
	snap := baseSnapshot()
	snap.Key = ""
	assert.Contains(t, Frame(snap), "key=(none)")
}

func TestHexPanelForTextValues(t *testing.T) {
	snap := baseSnapshot()
	snap.Text = true
	snap.Type = codec.StringText
	snap.Raw = []byte("hello")

	frame := Frame(snap)
	assert.Contains(t, frame, "68 65 6c 6c 6f")
	assert.Contains(t, frame, "|hello|")
	assert.NotContains(t, frame, "+----")
}

func TestHexPanelCapsAtViewportHeight(t *testing.T) {
	snap := baseSnapshot()
	snap.Text = true
	snap.Raw = make([]byte, 16*40) // 40 dump lines against a height of 5
	snap.Viewport.Height = 5

	frame := Frame(snap)
	assert.Contains(t, frame, "... 640 bytes total")
	assert.LessOrEqual(t, len(strings.Split(frame, "\n")), 9)
}

func TestSpectrumPanelDrawsBars(t *testing.T) {
	snap := baseSnapshot()
	snap.FFTVisible = true
	snap.FFTScale = spectrum.Linear
	snap.FFT = []float64{0, 0.2, 1, 0.1}
	snap.Viewport = plot.Viewport{Width: 4, Height: 4}

	frame := Frame(snap)
	assert.Contains(t, frame, "FFT:linear")
	assert.Contains(t, frame, "#")

	// The dominant bin reaches the top grid row.
	lines := strings.Split(frame, "\n")
	assert.Contains(t, lines[2], "#")
}

func TestStatusLinePersists(t *testing.T) {
	snap := baseSnapshot()
	snap.Status = "listener stopped: connection lost"
	assert.Contains(t, Frame(snap), "status: listener stopped: connection lost")
}

func TestFooterManualFit(t *testing.T) {
	snap := baseSnapshot()
	snap.AutoFit = false
	snap.SampleCount = 42
	assert.Contains(t, Frame(snap), "samples=42 fit=manual")
}
