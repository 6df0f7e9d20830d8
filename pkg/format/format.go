package format

import "fmt"

// SampleFormat identifies the on-wire encoding of a single audio sample.
//
// The engine processes audio as float32 internally; a SampleFormat only
// matters at the device boundary, where buffers are converted to and from
// whatever the hardware negotiated.
type SampleFormat uint8

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS24
	SampleFormatS32
	SampleFormatF32
)

// BytesPerSample returns the width of one sample in bytes, or 0 for an
// unknown format. S24 is packed into three bytes, not four.
func (sf SampleFormat) BytesPerSample() int {
	switch sf {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS24:
		return 3
	case SampleFormatS32, SampleFormatF32:
		return 4
	default:
		return 0
	}
}

func (sf SampleFormat) String() string {
	switch sf {
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS24:
		return "s24"
	case SampleFormatS32:
		return "s32"
	case SampleFormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// AudioFormat describes a PCM stream: sample encoding, interleaved channel
// count and sample rate. It is an immutable value type; copy it freely.
type AudioFormat struct {
	SampleFormat SampleFormat
	Channels     int
	SampleRate   int
}

// InverseSampleRate returns 1/SampleRate in seconds, the duration of a
// single frame. Returns 0 for a zero sample rate.
func (f AudioFormat) InverseSampleRate() float64 {
	if f.SampleRate == 0 {
		return 0
	}
	return 1.0 / float64(f.SampleRate)
}

// FrameSize returns the size of one interleaved frame in bytes.
func (f AudioFormat) FrameSize() int {
	return f.SampleFormat.BytesPerSample() * f.Channels
}

// Validate reports whether the format is usable: a known sample encoding
// and positive channel count and sample rate.
func (f AudioFormat) Validate() error {
	if f.SampleFormat == SampleFormatUnknown || f.SampleFormat > SampleFormatF32 {
		return ErrUnknownSampleFormat
	}
	if f.Channels <= 0 {
		return ErrInvalidChannelCount
	}
	if f.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	return nil
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%s/%dch/%dHz", f.SampleFormat, f.Channels, f.SampleRate)
}
