package codec

import (
	"fmt"

	"github.com/jfreymuth/oggvorbis"

	"github.com/cadence-audio/cadence/pkg/format"
)

// vorbisStream is the slice of the oggvorbis reader this package uses,
// split out so tests can substitute a fake.
type vorbisStream interface {
	Read([]float32) (int, error)
	SetPosition(pos int64) error
	Length() int64
	SampleRate() int
	Channels() int
}

type vorbisDecoder struct {
	dec    vorbisStream
	format format.AudioFormat
	closed bool
}

// NewVorbisDecoder opens an Ogg Vorbis stream. Vorbis decodes natively to
// float32, so no sample conversion is involved.
func NewVorbisDecoder(r ReadSeeker) (Decoder, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	return &vorbisDecoder{
		dec: dec,
		format: format.AudioFormat{
			SampleFormat: format.SampleFormatF32,
			Channels:     dec.Channels(),
			SampleRate:   dec.SampleRate(),
		},
	}, nil
}

func (d *vorbisDecoder) Format() format.AudioFormat { return d.format }

func (d *vorbisDecoder) Length() int { return int(d.dec.Length()) }

func (d *vorbisDecoder) Decode(dst []float32) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if len(dst) == 0 {
		return 0, nil
	}

	// The reader fills whole frames only; trim dst to a frame boundary.
	usable := len(dst) - len(dst)%d.format.Channels
	n, err := d.dec.Read(dst[:usable])
	if n == 0 && err != nil {
		return 0, err
	}
	return n, nil
}

func (d *vorbisDecoder) Seek(frame int) error {
	if d.closed {
		return ErrClosed
	}
	if frame < 0 {
		return ErrInvalidSeek
	}
	if err := d.dec.SetPosition(int64(frame)); err != nil {
		return fmt.Errorf("vorbis: %w", err)
	}
	return nil
}

func (d *vorbisDecoder) Close() error {
	d.closed = true
	return nil
}
