package shows

import "math"

// remap scales x from the range [oldmin, oldmax] to [newmin, newmax]
// without clamping.
func remap(x, oldmin, oldmax, newmin, newmax float64) float64 {
	zeroToOne := (x - oldmin) / (oldmax - oldmin)
	return zeroToOne*(newmax-newmin) + newmin
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// cosWave is a cosine curve scaled to a 0..1 range and domain by default.
// offset slides the curve across the domain, period sets the wavelength,
// min/max rescale the output.
func cosWave(x, offset, period, min, max float64) float64 {
	v := math.Cos((x/period-offset)*math.Pi*2)/2 + 0.5
	return v*(max-min) + min
}

// hsvToRGB converts h,s,v in [0,1] to r,g,b in [0,1].
func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	i := int(h * 6.0)
	f := h*6.0 - float64(i)
	p := v * (1.0 - s)
	q := v * (1.0 - f*s)
	t := v * (1.0 - (1.0-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
