package codec

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/cadence-audio/cadence/pkg/format"
)

// writeSeekBuffer is an in-memory io.WriteSeeker for the WAV encoder,
// which patches up the RIFF header on Close.
type writeSeekBuffer struct {
	buf []byte
	pos int
}

func (b *writeSeekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = int(offset)
	case io.SeekCurrent:
		b.pos += int(offset)
	case io.SeekEnd:
		b.pos = len(b.buf) + int(offset)
	}
	return int64(b.pos), nil
}

func encodeWAV(t *testing.T, f format.AudioFormat, samples []float32) []byte {
	t.Helper()

	var sink writeSeekBuffer
	enc, err := NewWAVEncoder(&sink, f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Encode(samples); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return sink.buf
}

func TestWAVEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	f := format.AudioFormat{
		SampleFormat: format.SampleFormatS16,
		Channels:     2,
		SampleRate:   44100,
	}

	const frames = 128
	samples := make([]float32, frames*2)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 10))
	}

	data := encodeWAV(t, f, samples)

	dec, err := NewWAVDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	got := dec.Format()
	if got.Channels != 2 || got.SampleRate != 44100 {
		t.Fatalf("Format() = %+v, want 2ch 44100Hz", got)
	}
	if got := dec.Length(); got != frames {
		t.Errorf("Length() = %d, want %d", got, frames)
	}

	out := make([]float32, len(samples))
	filled := 0
	for filled < len(out) {
		n, err := dec.Decode(out[filled:])
		filled += n
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	if filled != len(samples) {
		t.Fatalf("decoded %d samples, want %d", filled, len(samples))
	}

	// Quantization truncates at 32767 while decode normalizes by 32768,
	// so allow two LSBs.
	const tol = 2.0 / 32767
	for i := range samples {
		if diff := math.Abs(float64(out[i] - samples[i])); diff > tol {
			t.Fatalf("sample %d = %v, want %v (±%v)", i, out[i], samples[i], tol)
		}
	}
}

func TestWAVDecoderSeek(t *testing.T) {
	t.Parallel()

	f := format.AudioFormat{
		SampleFormat: format.SampleFormatS16,
		Channels:     1,
		SampleRate:   8000,
	}

	// A mono ramp makes every frame identifiable.
	const frames = 64
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(i) / frames
	}
	data := encodeWAV(t, f, samples)

	dec, err := NewWAVDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	if err := dec.Seek(32); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 4)
	if _, err := dec.Decode(out); err != nil && err != io.EOF {
		t.Fatal(err)
	}

	const tol = 2.0 / 32767
	for i := range out {
		want := float64(32+i) / frames
		if diff := math.Abs(float64(out[i]) - want); diff > tol {
			t.Fatalf("frame %d after seek = %v, want %v", 32+i, out[i], want)
		}
	}

	if err := dec.Seek(-1); err == nil {
		t.Error("Seek(-1) error = nil, want error")
	}
}

func TestWAVDecoderRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := NewWAVDecoder(bytes.NewReader([]byte("not a wav file"))); err == nil {
		t.Error("NewWAVDecoder(garbage) error = nil, want error")
	}
}

func TestWAVEncoderClampsOverRange(t *testing.T) {
	t.Parallel()

	f := format.AudioFormat{
		SampleFormat: format.SampleFormatS16,
		Channels:     1,
		SampleRate:   8000,
	}
	data := encodeWAV(t, f, []float32{2, -2})

	dec, err := NewWAVDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	out := make([]float32, 2)
	if _, err := dec.Decode(out); err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if out[0] < 0.999 {
		t.Errorf("clamped positive = %v, want ~1", out[0])
	}
	if out[1] > -0.999 {
		t.Errorf("clamped negative = %v, want ~-1", out[1])
	}
}
