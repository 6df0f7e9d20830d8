package graph

import "math"

// Gains within this distance of 1.0 are treated as unity and skipped.
const gainEpsilon = 1e-6

// mixAdd adds src into dst element-wise. The main loop is unrolled four
// wide with a scalar remainder; the result matches plain scalar addition.
func mixAdd(dst, src []float32) {
	n := min(len(dst), len(src))
	i := 0
	for ; i+4 <= n; i += 4 {
		dst[i] += src[i]
		dst[i+1] += src[i+1]
		dst[i+2] += src[i+2]
		dst[i+3] += src[i+3]
	}
	for ; i < n; i++ {
		dst[i] += src[i]
	}
}

func nearUnity(g float32) bool {
	return math.Abs(float64(g)-1) <= gainEpsilon
}

// applyGain scales buf in place with the cached channel gains. Mono folds
// volume into a single multiply; stereo applies the constant-power pair
// (left, right); wider layouts use (left, right) for the first two channels
// and their arithmetic mean for the rest.
func applyGain(buf []float32, channels int, volume, left, right float32) {
	switch {
	case channels <= 1:
		if nearUnity(volume) {
			return
		}
		i := 0
		for ; i+4 <= len(buf); i += 4 {
			buf[i] *= volume
			buf[i+1] *= volume
			buf[i+2] *= volume
			buf[i+3] *= volume
		}
		for ; i < len(buf); i++ {
			buf[i] *= volume
		}
	case channels == 2:
		if nearUnity(left) && nearUnity(right) {
			return
		}
		for i := 0; i+1 < len(buf); i += 2 {
			buf[i] *= left
			buf[i+1] *= right
		}
	default:
		extra := (left + right) / 2
		if nearUnity(left) && nearUnity(right) && nearUnity(extra) {
			return
		}
		for i := 0; i+channels <= len(buf); i += channels {
			buf[i] *= left
			buf[i+1] *= right
			for c := 2; c < channels; c++ {
				buf[i+c] *= extra
			}
		}
	}
}
