package codec

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/cadence-audio/cadence/pkg/format"
)

// mp3Stream is the slice of the go-mp3 decoder this package uses, split out
// so tests can substitute a fake.
type mp3Stream interface {
	Read([]byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	SampleRate() int
	Length() int64
}

// go-mp3 always emits stereo 16-bit little-endian PCM.
const mp3FrameBytes = 4

type mp3Decoder struct {
	dec    mp3Stream
	format format.AudioFormat
	buf    []byte
	closed bool
}

// NewMP3Decoder opens an MPEG-1 Layer III stream.
func NewMP3Decoder(r ReadSeeker) (Decoder, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return &mp3Decoder{
		dec: dec,
		format: format.AudioFormat{
			SampleFormat: format.SampleFormatS16,
			Channels:     2,
			SampleRate:   dec.SampleRate(),
		},
	}, nil
}

func (d *mp3Decoder) Format() format.AudioFormat { return d.format }

func (d *mp3Decoder) Length() int {
	return int(d.dec.Length() / mp3FrameBytes)
}

func (d *mp3Decoder) Decode(dst []float32) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if len(dst) == 0 {
		return 0, nil
	}

	need := len(dst) * 2
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	d.buf = d.buf[:need]

	n, err := d.dec.Read(d.buf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, nil
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(uint16(d.buf[2*i]) | uint16(d.buf[2*i+1])<<8)
		dst[i] = float32(v) / 32768
	}
	return samples, nil
}

func (d *mp3Decoder) Seek(frame int) error {
	if d.closed {
		return ErrClosed
	}
	if frame < 0 {
		return ErrInvalidSeek
	}
	if _, err := d.dec.Seek(int64(frame)*mp3FrameBytes, io.SeekStart); err != nil {
		return fmt.Errorf("mp3: %w", err)
	}
	return nil
}

func (d *mp3Decoder) Close() error {
	d.closed = true
	return nil
}
