package audio

import "math"

// FloatToPCM16 clamps s to [-1, 1] and scales it to a signed 16-bit sample.
// Negative values scale by 0x8000, the rest by 0x7FFF; the result is truncated.
func FloatToPCM16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	v := math.Max(-1, math.Min(1, float64(s)))
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7FFF)
}

// PCM16ToFloat is the inverse scale of FloatToPCM16 (lossy).
func PCM16ToFloat(v int16) float32 {
	if v < 0 {
		return float32(v) / 0x8000
	}
	return float32(v) / 0x7FFF
}

// TimeDomainBytes maps samples to unsigned 8-bit time-domain values
// centred on 128, the layout visualizers expect.
func TimeDomainBytes(samples []float32) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		v := math.Round((float64(s) + 1) * 128)
		switch {
		case v != v, v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		out[i] = byte(v)
	}
	return out
}
