package orchestrator

// EventKind identifies a discrete input event.
type EventKind int

const (
	// EventTick drains background tasks and refreshes derived state.
	EventTick EventKind = iota
	// EventSelectKey loads a value and replaces the active series.
	EventSelectKey
	// EventCycleType advances the element type (shift reverses).
	EventCycleType
	// EventToggleEndianness flips the byte order.
	EventToggleEndianness
	// EventZoom scales both axes around a pixel anchor.
	EventZoom
	// EventPan translates the view by a pixel delta.
	EventPan
	// EventSetXLimits commits manual x limits.
	EventSetXLimits
	// EventSetYLimits commits manual y limits.
	EventSetYLimits
	// EventAutoFit re-enables auto-fit.
	EventAutoFit
	// EventToggleFFT shows or hides the spectrum view.
	EventToggleFFT
	// EventToggleFFTScale flips between linear and log magnitudes.
	EventToggleFFTScale
	// EventToggleListener starts the listener, or stops it when active.
	EventToggleListener
	// EventToggleGenerator starts the generator, or stops it when active.
	EventToggleGenerator
	// EventResize updates the viewport dimensions.
	EventResize
	// EventAckError clears the persistent status line.
	EventAckError
	// EventWriteValue parses numeric text, encodes it under the current
	// element type, and stores it at the selected key.
	EventWriteValue
	// EventDeleteKey removes the selected key and clears the plot.
	EventDeleteKey
	// EventRenameKey moves the selected value to a new key.
	EventRenameKey
)

// Event is one discrete input delivered to HandleEvent.
type Event struct {
	Kind EventKind

	Key  string // EventSelectKey, EventRenameKey (target name)
	Text string // EventWriteValue

	Reverse bool // EventCycleType: cycle backwards

	Factor   float64 // EventZoom
	AnchorPX float64 // EventZoom
	AnchorPY float64 // EventZoom

	DX float64 // EventPan
	DY float64 // EventPan

	Min float64 // EventSetXLimits, EventSetYLimits
	Max float64 // EventSetXLimits, EventSetYLimits

	Width  int // EventResize
	Height int // EventResize
}
