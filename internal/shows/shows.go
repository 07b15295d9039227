package shows

import (
	"fmt"
	"math"

	"github.com/openfloor/floord/internal/render"
)

// Solid fills the floor with a single color. Args: r, g, b in 0..255.
type Solid struct {
	Base
	r, g, b int
}

func NewSolid(args map[string]interface{}) (render.Processor, error) {
	r, err := argInt(args, "r", 255)
	if err != nil {
		return nil, err
	}
	g, err := argInt(args, "g", 255)
	if err != nil {
		return nil, err
	}
	b, err := argInt(args, "b", 255)
	if err != nil {
		return nil, err
	}
	for _, v := range []int{r, g, b} {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("channel value %d out of range 0..255", v)
		}
	}
	return &Solid{Base: newBase(), r: r, g: g, b: b}, nil
}

func (s *Solid) GetNextFrame(ctx render.Context) (render.Frame, error) {
	frame := render.NewFrame()
	px := render.Pixel{
		R: s.r * s.maxValue / 255,
		G: s.g * s.maxValue / 255,
		B: s.b * s.maxValue / 255,
	}
	for i := range frame {
		frame[i] = px
	}
	return frame, nil
}

// Rainbow sweeps a hue gradient across the floor over time. Args:
// period (seconds per full cycle, default 10).
type Rainbow struct {
	Base
	period float64
}

func NewRainbow(args map[string]interface{}) (render.Processor, error) {
	period, err := argFloat(args, "period", 10)
	if err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %v", period)
	}
	return &Rainbow{Base: newBase(), period: period}, nil
}

func (r *Rainbow) GetNextFrame(ctx render.Context) (render.Frame, error) {
	frame := render.NewFrame()
	t := float64(ctx.Clock.UnixNano()) / float64(1e9)
	phase := math.Mod(t/r.period, 1.0)
	for i := range frame {
		h := math.Mod(phase+float64(i)/float64(len(frame)), 1.0)
		fr, fg, fb := hsvToRGB(h, 1.0, 1.0)
		frame[i] = render.Pixel{
			R: int(fr * float64(r.maxValue)),
			G: int(fg * float64(r.maxValue)),
			B: int(fb * float64(r.maxValue)),
		}
	}
	return frame, nil
}

// Pulse breathes the whole floor in time with the beat. Args: r, g, b as in
// Solid. Brightness follows a cosine locked to the downbeat.
type Pulse struct {
	Base
	r, g, b int
}

func NewPulse(args map[string]interface{}) (render.Processor, error) {
	r, err := argInt(args, "r", 0)
	if err != nil {
		return nil, err
	}
	g, err := argInt(args, "g", 0)
	if err != nil {
		return nil, err
	}
	b, err := argInt(args, "b", 255)
	if err != nil {
		return nil, err
	}
	return &Pulse{Base: newBase(), r: r, g: g, b: b}, nil
}

// RequestedFPS runs Pulse at 30 so the beat envelope stays smooth.
func (p *Pulse) RequestedFPS() int { return 30 }

func (p *Pulse) GetNextFrame(ctx render.Context) (render.Frame, error) {
	bpm := ctx.BPM
	if bpm <= 0 {
		bpm = 120
	}
	beatLen := 60.0 / bpm
	since := ctx.Clock.Sub(ctx.Downbeat).Seconds()
	level := cosWave(since, 0, beatLen, 0.1, 1.0)

	frame := render.NewFrame()
	px := render.Pixel{
		R: int(level * float64(p.r) * float64(p.maxValue) / 255),
		G: int(level * float64(p.g) * float64(p.maxValue) / 255),
		B: int(level * float64(p.b) * float64(p.maxValue) / 255),
	}
	for i := range frame {
		frame[i] = px
	}
	return frame, nil
}

// Ripple lights each square in proportion to the weight standing on it.
// Args: max_floor (largest expected sensor value, default 1023).
type Ripple struct {
	Base
	maxFloor float64
}

func NewRipple(args map[string]interface{}) (render.Processor, error) {
	maxFloor, err := argFloat(args, "max_floor", 1023)
	if err != nil {
		return nil, err
	}
	if maxFloor <= 0 {
		return nil, fmt.Errorf("max_floor must be positive, got %v", maxFloor)
	}
	return &Ripple{Base: newBase(), maxFloor: maxFloor}, nil
}

func (r *Ripple) GetNextFrame(ctx render.Context) (render.Frame, error) {
	frame := render.NewFrame()
	for i := range frame {
		if i >= len(ctx.Weights) {
			break
		}
		level := clamp(float64(ctx.Weights[i])/r.maxFloor, 0, 1)
		v := int(level * float64(r.maxValue))
		frame[i] = render.Pixel{R: v, G: 0, B: r.maxValue - v}
	}
	return frame, nil
}
