package graph

import (
	"math"
	"sync/atomic"
)

// PeakAnalyzer tracks the largest absolute sample value it has observed.
// Safe to read from any thread while the graph is running.
type PeakAnalyzer struct {
	peak atomic.Uint32
}

func (p *PeakAnalyzer) AnalyzeBuffer(buf []float32, _ int) {
	peak := math.Float32frombits(p.peak.Load())
	for _, x := range buf {
		if x < 0 {
			x = -x
		}
		if x > peak {
			peak = x
		}
	}
	p.peak.Store(math.Float32bits(peak))
}

// Peak returns the highest absolute sample seen since the last Reset.
func (p *PeakAnalyzer) Peak() float32 {
	return math.Float32frombits(p.peak.Load())
}

func (p *PeakAnalyzer) Reset() {
	p.peak.Store(0)
}
