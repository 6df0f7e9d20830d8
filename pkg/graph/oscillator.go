package graph

import (
	"math"
	"sync"
)

type Waveform uint8

const (
	WaveformSine Waveform = iota
	WaveformSquare
	WaveformSawtooth
	WaveformTriangle
)

// Oscillator is a periodic waveform Generator. Frequency and amplitude can
// be changed while running; the change takes effect at the next period.
type Oscillator struct {
	sampleRate int

	mu        sync.Mutex
	waveform  Waveform
	frequency float64
	amplitude float32

	phase float64 // touched only by the processing thread
}

func NewOscillator(waveform Waveform, frequency float64, sampleRate int) *Oscillator {
	return &Oscillator{
		sampleRate: sampleRate,
		waveform:   waveform,
		frequency:  frequency,
		amplitude:  1,
	}
}

func (o *Oscillator) SetFrequency(hz float64) {
	o.mu.Lock()
	o.frequency = hz
	o.mu.Unlock()
}

func (o *Oscillator) SetAmplitude(a float32) {
	o.mu.Lock()
	o.amplitude = a
	o.mu.Unlock()
}

// Generate adds one period of the waveform into out, the same value on
// every channel of a frame.
func (o *Oscillator) Generate(out []float32, channels int) {
	o.mu.Lock()
	waveform, frequency, amplitude := o.waveform, o.frequency, o.amplitude
	o.mu.Unlock()

	if channels < 1 {
		channels = 1
	}
	step := frequency / float64(o.sampleRate)

	for i := 0; i+channels <= len(out); i += channels {
		v := amplitude * sampleWaveform(waveform, o.phase)
		for c := 0; c < channels; c++ {
			out[i+c] += v
		}
		o.phase += step
		if o.phase >= 1 {
			o.phase -= math.Floor(o.phase)
		}
	}
}

// sampleWaveform evaluates one sample at phase in [0, 1).
func sampleWaveform(w Waveform, phase float64) float32 {
	switch w {
	case WaveformSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case WaveformSawtooth:
		return float32(2*phase - 1)
	case WaveformTriangle:
		return float32(1 - 4*math.Abs(phase-0.5))
	default:
		return float32(math.Sin(2 * math.Pi * phase))
	}
}
