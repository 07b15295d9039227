// Package shows holds the built-in floor processors. Each show embeds Base
// for the common processor plumbing and registers a factory by name.
package shows

import (
	"fmt"
	"time"

	"github.com/openfloor/floord/internal/render"
)

// Base carries the state every show shares: tempo, brightness ceiling and
// ranged control values.
type Base struct {
	bpm      float64
	downbeat time.Time
	maxValue int
	ranged   [4]int
}

func newBase() Base {
	return Base{maxValue: 255}
}

func (b *Base) SetBPM(bpm float64, downbeat time.Time) {
	b.bpm = bpm
	b.downbeat = downbeat
}

func (b *Base) SetMaxValue(max int) { b.maxValue = max }

// RequestedFPS is 0 by default: no preference.
func (b *Base) RequestedFPS() int { return 0 }

func (b *Base) OnRangedValueChange(control, value int) {
	if control >= 0 && control < len(b.ranged) {
		b.ranged[control] = value
	}
}

// RegisterAll installs every built-in show into the registry.
func RegisterAll(reg *render.Registry) {
	reg.Register("Solid", NewSolid)
	reg.Register("Rainbow", NewRainbow)
	reg.Register("Pulse", NewPulse)
	reg.Register("Ripple", NewRipple)
}

// Argument helpers. Playlist args arrive as JSON-decoded values, so numbers
// are float64.

func argFloat(args map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument %q: expected number, got %T", key, v)
	}
}

func argInt(args map[string]interface{}, key string, def int) (int, error) {
	f, err := argFloat(args, key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
