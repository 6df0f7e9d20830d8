package codec

import (
	"fmt"

	"github.com/oov/audio/resampler"

	"github.com/cadence-audio/cadence/pkg/format"
)

const resampleQuality = 10

// Adapt wraps src so it delivers audio at the target sample rate and
// channel count, matching what a node or device expects. Mono and stereo
// targets are supported; rate conversion is done per channel with a
// windowed-sinc resampler. When src already matches the target, it is
// returned unchanged.
func Adapt(src Decoder, sampleRate, channels int) (Decoder, error) {
	sf := src.Format()
	if sf.SampleRate == sampleRate && sf.Channels == channels {
		return src, nil
	}
	if channels < 1 || channels > 2 || sf.Channels < 1 {
		return nil, fmt.Errorf("adapt %d -> %d channels: %w", sf.Channels, channels, ErrUnsupported)
	}

	a := &adapted{
		src: src,
		format: format.AudioFormat{
			SampleFormat: format.SampleFormatF32,
			Channels:     channels,
			SampleRate:   sampleRate,
		},
	}
	if sf.SampleRate != sampleRate {
		a.rs = make([]*resampler.Resampler, channels)
		for c := range a.rs {
			a.rs[c] = resampler.New(channels, sf.SampleRate, sampleRate, resampleQuality)
		}
	}
	return a, nil
}

type adapted struct {
	src    Decoder
	format format.AudioFormat
	rs     []*resampler.Resampler // nil when only channel mixing is needed

	srcBuf []float32
	mixBuf []float32
	planes [2][]float32
	outPl  [2][]float32
}

func (a *adapted) Format() format.AudioFormat { return a.format }

func (a *adapted) Length() int {
	n := a.src.Length()
	if n == 0 {
		return 0
	}
	return int(int64(n) * int64(a.format.SampleRate) / int64(a.src.Format().SampleRate))
}

func (a *adapted) Seek(frame int) error {
	if frame < 0 {
		return ErrInvalidSeek
	}
	src := int(int64(frame) * int64(a.src.Format().SampleRate) / int64(a.format.SampleRate))
	return a.src.Seek(src)
}

func (a *adapted) Close() error { return a.src.Close() }

func (a *adapted) Decode(dst []float32) (int, error) {
	outCh := a.format.Channels
	outFrames := len(dst) / outCh
	if outFrames == 0 {
		return 0, nil
	}

	srcFmt := a.src.Format()
	srcFrames := outFrames
	if a.rs != nil {
		srcFrames = outFrames * srcFmt.SampleRate / a.format.SampleRate
		if srcFrames == 0 {
			srcFrames = 1
		}
	}

	need := srcFrames * srcFmt.Channels
	if cap(a.srcBuf) < need {
		a.srcBuf = make([]float32, need)
	}
	n, err := a.src.Decode(a.srcBuf[:need])
	if n == 0 {
		return 0, err
	}
	frames := n / srcFmt.Channels

	// Channel conversion first, so the resampler always sees the target
	// channel layout.
	mixed := a.channelMix(a.srcBuf[:frames*srcFmt.Channels], srcFmt.Channels, outCh)
	if a.rs == nil {
		copy(dst, mixed)
		return len(mixed), err
	}

	written := a.resample(mixed, dst[:outFrames*outCh], outCh)
	return written * outCh, err
}

// channelMix converts interleaved samples between channel layouts:
// replicate mono up to stereo, average down to mono.
func (a *adapted) channelMix(in []float32, inCh, outCh int) []float32 {
	if inCh == outCh {
		return in
	}
	frames := len(in) / inCh
	if cap(a.mixBuf) < frames*outCh {
		a.mixBuf = make([]float32, frames*outCh)
	}
	out := a.mixBuf[:frames*outCh]

	switch {
	case inCh == 1 && outCh == 2:
		for i, v := range in {
			out[2*i] = v
			out[2*i+1] = v
		}
	case outCh == 1:
		inv := 1 / float32(inCh)
		for f := 0; f < frames; f++ {
			var sum float32
			for c := 0; c < inCh; c++ {
				sum += in[f*inCh+c]
			}
			out[f] = sum * inv
		}
	default: // inCh > 2, outCh == 2: keep the first pair
		for f := 0; f < frames; f++ {
			out[2*f] = in[f*inCh]
			out[2*f+1] = in[f*inCh+1]
		}
	}
	return out
}

// resample converts interleaved in to the target rate, writing whole frames
// into dst. Returns the number of frames written.
func (a *adapted) resample(in, dst []float32, channels int) int {
	inFrames := len(in) / channels
	outFrames := len(dst) / channels

	if channels == 1 {
		_, written := a.rs[0].ProcessFloat32(0, in, dst)
		return written
	}

	for c := 0; c < 2; c++ {
		if cap(a.planes[c]) < inFrames {
			a.planes[c] = make([]float32, inFrames)
		}
		if cap(a.outPl[c]) < outFrames {
			a.outPl[c] = make([]float32, outFrames)
		}
	}
	left, right := a.planes[0][:inFrames], a.planes[1][:inFrames]
	for f := 0; f < inFrames; f++ {
		left[f] = in[2*f]
		right[f] = in[2*f+1]
	}

	_, written := a.rs[0].ProcessFloat32(0, left, a.outPl[0][:outFrames])
	a.rs[1].ProcessFloat32(1, right, a.outPl[1][:outFrames])

	for f := 0; f < written; f++ {
		dst[2*f] = a.outPl[0][f]
		dst[2*f+1] = a.outPl[1][f]
	}
	return written
}
