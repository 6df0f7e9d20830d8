package codec

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cadence-audio/cadence/pkg/format"
)

type wavDecoder struct {
	rs     io.ReadSeeker
	dec    *wav.Decoder
	format format.AudioFormat
	bits   int
	frames int
	buf    *audio.IntBuffer
	closed bool
}

// NewWAVDecoder opens a PCM WAV stream. 16, 24 and 32 bit depths are
// supported; samples are normalized to float32 in [-1, 1].
func NewWAVDecoder(r ReadSeeker) (Decoder, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return nil, ErrNotSeekable
	}

	dec := wav.NewDecoder(rs)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: %w", ErrUnsupported)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	bits := int(dec.BitDepth)
	channels := int(dec.NumChans)
	sf := format.SampleFormatS16
	switch bits {
	case 16:
		sf = format.SampleFormatS16
	case 24:
		sf = format.SampleFormatS24
	case 32:
		sf = format.SampleFormatS32
	default:
		return nil, fmt.Errorf("wav: %d bit: %w", bits, ErrUnsupported)
	}

	frames := 0
	if ba := channels * bits / 8; ba > 0 {
		frames = int(dec.PCMLen()) / ba
	}

	return &wavDecoder{
		rs:  rs,
		dec: dec,
		format: format.AudioFormat{
			SampleFormat: sf,
			Channels:     channels,
			SampleRate:   int(dec.SampleRate),
		},
		bits:   bits,
		frames: frames,
	}, nil
}

func (d *wavDecoder) Format() format.AudioFormat { return d.format }

func (d *wavDecoder) Length() int { return d.frames }

func (d *wavDecoder) Decode(dst []float32) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if len(dst) == 0 {
		return 0, nil
	}

	if d.buf == nil || cap(d.buf.Data) < len(dst) {
		d.buf = &audio.IntBuffer{
			Data: make([]int, len(dst)),
			Format: &audio.Format{
				NumChannels: d.format.Channels,
				SampleRate:  d.format.SampleRate,
			},
			SourceBitDepth: d.bits,
		}
	}
	d.buf.Data = d.buf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil {
		return 0, fmt.Errorf("wav: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	scale := float32(int64(1) << (d.bits - 1))
	for i := 0; i < n; i++ {
		dst[i] = float32(d.buf.Data[i]) / scale
	}
	return n, nil
}

// Seek rewinds to the start of the PCM data and skips forward by decoding.
// The wav parser does not expose random access inside the data chunk.
func (d *wavDecoder) Seek(frame int) error {
	if d.closed {
		return ErrClosed
	}
	if frame < 0 || (d.frames > 0 && frame > d.frames) {
		return ErrInvalidSeek
	}

	if _, err := d.rs.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	dec := wav.NewDecoder(d.rs)
	dec.ReadInfo()
	if err := dec.FwdToPCM(); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	d.dec = dec

	skip := make([]float32, 2048*d.format.Channels)
	remaining := frame * d.format.Channels
	for remaining > 0 {
		want := min(remaining, len(skip))
		n, err := d.Decode(skip[:want])
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		remaining -= n
	}
	return nil
}

func (d *wavDecoder) Close() error {
	d.closed = true
	return nil
}

type wavEncoder struct {
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	closed bool
}

// NewWAVEncoder writes 16-bit PCM WAV to w. Input samples are clamped to
// [-1, 1] before quantization.
func NewWAVEncoder(w io.WriteSeeker, f format.AudioFormat) (Encoder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &wavEncoder{
		enc: wav.NewEncoder(w, f.SampleRate, 16, f.Channels, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: f.Channels,
				SampleRate:  f.SampleRate,
			},
			SourceBitDepth: 16,
		},
	}, nil
}

func (e *wavEncoder) Encode(src []float32) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if len(src) == 0 {
		return 0, nil
	}

	if cap(e.buf.Data) < len(src) {
		e.buf.Data = make([]int, len(src))
	}
	e.buf.Data = e.buf.Data[:len(src)]

	for i, x := range src {
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		e.buf.Data[i] = int(x * 32767)
	}

	if err := e.enc.Write(e.buf); err != nil {
		return 0, fmt.Errorf("wav: %w", err)
	}
	return len(src), nil
}

func (e *wavEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	return nil
}
