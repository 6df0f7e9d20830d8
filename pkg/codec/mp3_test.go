package codec

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/cadence-audio/cadence/pkg/format"
)

// fakeMP3 serves raw stereo S16LE PCM the way go-mp3 does.
type fakeMP3 struct {
	data []byte
	pos  int64
	rate int
}

func (f *fakeMP3) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *fakeMP3) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.data)) + offset
	}
	if f.pos < 0 {
		return 0, errors.New("negative position")
	}
	return f.pos, nil
}

func (f *fakeMP3) SampleRate() int { return f.rate }

func (f *fakeMP3) Length() int64 { return int64(len(f.data)) }

func newFakeMP3Decoder(samples []int16, rate int) *mp3Decoder {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	src := &fakeMP3{data: data, rate: rate}
	return &mp3Decoder{
		dec: src,
		format: format.AudioFormat{
			SampleFormat: format.SampleFormatS16,
			Channels:     2,
			SampleRate:   rate,
		},
	}
}

func TestMP3DecodeNormalizesSamples(t *testing.T) {
	t.Parallel()

	dec := newFakeMP3Decoder([]int16{0, 16384, -16384, 32767, -32768, 0}, 44100)

	out := make([]float32, 6)
	n, err := dec.Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("Decode() = %d, want 6", n)
	}

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768, -1, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	if got := dec.Format(); got.Channels != 2 || got.SampleRate != 44100 {
		t.Errorf("Format() = %+v, want stereo 44100Hz", got)
	}
}

func TestMP3SeekAndLength(t *testing.T) {
	t.Parallel()

	// 4 frames of stereo PCM.
	dec := newFakeMP3Decoder([]int16{0, 0, 100, 100, 200, 200, 300, 300}, 48000)

	if got := dec.Length(); got != 4 {
		t.Errorf("Length() = %d, want 4", got)
	}

	if err := dec.Seek(2); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 2)
	if _, err := dec.Decode(out); err != nil {
		t.Fatal(err)
	}
	if want := float32(200) / 32768; out[0] != want {
		t.Errorf("out[0] after Seek(2) = %v, want %v", out[0], want)
	}

	if err := dec.Seek(-1); !errors.Is(err, ErrInvalidSeek) {
		t.Errorf("Seek(-1) error = %v, want ErrInvalidSeek", err)
	}
}

func TestMP3ClosedDecoder(t *testing.T) {
	t.Parallel()

	dec := newFakeMP3Decoder([]int16{1, 2}, 44100)
	if err := dec.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := dec.Decode(make([]float32, 2)); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode after Close error = %v, want ErrClosed", err)
	}
	if err := dec.Seek(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Seek after Close error = %v, want ErrClosed", err)
	}
}

func TestMP3DecodeAtEOF(t *testing.T) {
	t.Parallel()

	dec := newFakeMP3Decoder([]int16{1, 2}, 44100)
	out := make([]float32, 8)
	if _, err := dec.Decode(out); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Decode(out); !errors.Is(err, io.EOF) {
		t.Errorf("Decode at EOF error = %v, want io.EOF", err)
	}
}
