package render

import "time"

// NumSquares is the number of pressure-sensing squares on the floor.
// Each square carries one logical pixel.
const NumSquares = 64

// Pixel is one RGB value, each channel in [0, max LED value].
type Pixel struct {
	R, G, B int
}

// Frame is one full floor image, NumSquares pixels long.
type Frame []Pixel

// NewFrame returns an all-black frame of the standard floor size.
func NewFrame() Frame {
	return make(Frame, NumSquares)
}

// Context is the per-tick input bundle handed to a processor.
type Context struct {
	// Clock is the timestamp taken at the start of the tick.
	Clock time.Time
	// Downbeat is the reference timestamp of the current tempo.
	Downbeat time.Time
	// Weights holds one sensor reading per square, synthetic overlay applied.
	Weights []int
	// BPM is the current tempo.
	BPM float64
}

// Processor produces one frame per tick. Implementations are constructed by
// a Factory from named arguments and live until the playlist moves on.
type Processor interface {
	SetBPM(bpm float64, downbeat time.Time)
	SetMaxValue(max int)
	// RequestedFPS returns the frame rate the processor wants to run at,
	// or 0 for no preference.
	RequestedFPS() int
	OnRangedValueChange(control, value int)
	GetNextFrame(ctx Context) (Frame, error)
}

// Factory builds a Processor from named construction arguments.
type Factory func(args map[string]interface{}) (Processor, error)
