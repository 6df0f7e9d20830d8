package graph

import "sync/atomic"

// Modifier is an effect stage in a Node's processing chain. Modifiers run in
// strict insertion order on the node's scratch buffer, before volume and pan
// are applied. ProcessBuffer is called from the real-time thread and must
// not block or allocate.
type Modifier interface {
	ProcessBuffer(buf []float32, channels int)
	IsEnabled() bool
}

// Analyzer is a read-only observer of a Node's output. Analyzers run after
// gain, in insertion order, and must not mutate the buffer.
type Analyzer interface {
	AnalyzeBuffer(buf []float32, channels int)
}

// GainModifier scales every sample by a constant factor. Mostly useful as a
// minimal Modifier for wiring and tests.
type GainModifier struct {
	Gain     float32
	disabled atomic.Bool
}

func (g *GainModifier) ProcessBuffer(buf []float32, _ int) {
	for i := range buf {
		buf[i] *= g.Gain
	}
}

func (g *GainModifier) IsEnabled() bool { return !g.disabled.Load() }

func (g *GainModifier) SetEnabled(enabled bool) { g.disabled.Store(!enabled) }
