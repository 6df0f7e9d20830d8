package format

import (
	"encoding/binary"
	"math"
)

// ToNative converts interleaved float32 samples into dst using the given
// sample encoding. Input samples are clamped to [-1, 1] before scaling.
//
// src is zeroed after conversion: the engine hands its mixing scratch region
// to ToNative every period and relies on getting a silent buffer back.
//
// dst must hold at least len(src)*sf.BytesPerSample() bytes.
func ToNative(src []float32, dst []byte, sf SampleFormat) error {
	width := sf.BytesPerSample()
	if width == 0 {
		return ErrUnknownSampleFormat
	}
	if len(dst) < len(src)*width {
		return ErrShortBuffer
	}

	switch sf {
	case SampleFormatU8:
		for i, x := range src {
			dst[i] = byte(math.Round(float64(clamp(x))*127.5 + 127.5))
		}
	case SampleFormatS16:
		for i, x := range src {
			v := int16(math.Round(float64(clamp(x)) * 32767))
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
		}
	case SampleFormatS24:
		for i, x := range src {
			v := int32(math.Round(float64(clamp(x)) * 8388607))
			dst[3*i] = byte(v)
			dst[3*i+1] = byte(v >> 8)
			dst[3*i+2] = byte(v >> 16)
		}
	case SampleFormatS32:
		for i, x := range src {
			v := int32(math.Round(float64(clamp(x)) * math.MaxInt32))
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(v))
		}
	case SampleFormatF32:
		for i, x := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(x))
		}
	}

	clear(src)
	return nil
}

// FromNative converts device-native samples in src into interleaved float32
// values in dst, normalized to [-1, 1]. dst must hold at least
// len(src)/sf.BytesPerSample() values.
func FromNative(src []byte, dst []float32, sf SampleFormat) error {
	width := sf.BytesPerSample()
	if width == 0 {
		return ErrUnknownSampleFormat
	}
	n := len(src) / width
	if len(dst) < n {
		return ErrShortBuffer
	}

	switch sf {
	case SampleFormatU8:
		for i := 0; i < n; i++ {
			dst[i] = (float32(src[i]) - 128) / 128
		}
	case SampleFormatS16:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(src[2*i:]))
			dst[i] = float32(v) / 32767
		}
	case SampleFormatS24:
		for i := 0; i < n; i++ {
			v := int32(src[3*i]) | int32(src[3*i+1])<<8 | int32(src[3*i+2])<<16
			// Sign-extend bit 23.
			if v&0x800000 != 0 {
				v |= ^int32(0xffffff)
			}
			dst[i] = float32(v) / 8388608
		}
	case SampleFormatS32:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(src[4*i:]))
			dst[i] = float32(float64(v) / math.MaxInt32)
		}
	case SampleFormatF32:
		for i := 0; i < n; i++ {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	}

	return nil
}

func clamp(x float32) float32 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
