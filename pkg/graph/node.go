package graph

import (
	"bytes"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/cadence-audio/cadence/pkg/format"
)

// Generator is the leaf audio-generation capability of a Node: an
// oscillator, a file player, a mixer aggregating its members. Generate mixes
// its output additively into out, which already holds the sum of the node's
// inputs. It runs on the real-time thread and must not block or allocate.
type Generator interface {
	Generate(out []float32, channels int)
}

// SoloRegistry is the engine-side single-slot solo state a Node registers
// with. Implemented by engine.Engine.
type SoloRegistry interface {
	SoloComponent(n *Node)
	UnsoloComponent(n *Node)
}

// topoMu serializes all topology mutation (connect, disconnect, mixer
// membership, disposal) so reachability searches observe a consistent graph.
// The real-time path never takes it.
var topoMu sync.Mutex

// Node is a unit in the processing graph. It pulls audio from its inputs,
// runs its own generation and effect chain, applies volume and pan, and
// mixes the result into the caller's buffer.
//
// All mutating methods are safe to call from any thread. Process is driven
// by a device's real-time thread once per period.
type Node struct {
	id     uuid.UUID
	name   string
	format format.AudioFormat
	gen    Generator // immutable after construction

	mu        sync.Mutex
	panicked  func(any) // set by the owning device, nil otherwise
	inputs    []*Node
	outputs   []*Node
	modifiers []Modifier
	analyzers []Analyzer
	volume    float32
	pan       float32
	gainLeft  float32
	gainRight float32
	enabled   bool
	muted     bool
	soloed    bool
	disposed  bool
	owner     *Mixer
	solo      SoloRegistry
}

// NewNode creates an enabled node with unity volume and centered pan.
// gen may be nil for a pure pass-through/mixing node.
func NewNode(name string, f format.AudioFormat, gen Generator) *Node {
	n := &Node{
		id:     uuid.New(),
		name:   name,
		format: f,
		gen:    gen,
		volume: 1,
		pan:    0.5,

		enabled: true,
	}
	n.recomputeGains()
	return n
}

func (n *Node) ID() uuid.UUID { return n.id }

func (n *Node) Name() string { return n.name }

func (n *Node) Format() format.AudioFormat { return n.format }

func (n *Node) Volume() float32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume
}

// SetVolume sets the node gain. Negative values are rejected.
func (n *Node) SetVolume(v float32) error {
	if v < 0 {
		return ErrVolumeRange
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return ErrDisposed
	}
	n.volume = v
	n.recomputeGains()
	return nil
}

func (n *Node) Pan() float32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pan
}

// SetPan sets the stereo position, 0 full left through 1 full right.
func (n *Node) SetPan(p float32) error {
	if p < 0 || p > 1 {
		return ErrPanRange
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return ErrDisposed
	}
	n.pan = p
	n.recomputeGains()
	return nil
}

// recomputeGains caches the constant-power channel gains. Callers hold n.mu.
func (n *Node) recomputeGains() {
	n.gainLeft = n.volume * float32(math.Sqrt(float64(1-n.pan)))
	n.gainRight = n.volume * float32(math.Sqrt(float64(n.pan)))
}

func (n *Node) IsEnabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

func (n *Node) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return
	}
	n.enabled = enabled
}

func (n *Node) IsMuted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.muted
}

func (n *Node) SetMuted(muted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed {
		return
	}
	n.muted = muted
}

func (n *Node) IsSoloed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.soloed
}

// SetSoloed registers or unregisters this node with the engine's single
// solo slot. A node with no attached registry only tracks the flag locally.
func (n *Node) SetSoloed(soloed bool) {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		return
	}
	n.soloed = soloed
	reg := n.solo
	n.mu.Unlock()

	if reg == nil {
		return
	}
	if soloed {
		reg.SoloComponent(n)
	} else {
		reg.UnsoloComponent(n)
	}
}

// AttachSoloRegistry wires the node to an engine's solo slot. Mixers pass
// their registry on to members added without one.
func (n *Node) AttachSoloRegistry(reg SoloRegistry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.solo = reg
}

func (n *Node) IsDisposed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disposed
}

// Owner returns the mixer this node is currently a member of, or nil.
func (n *Node) Owner() *Mixer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.owner
}

// Inputs returns a snapshot of the current input set.
func (n *Node) Inputs() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.inputs)
}

// Outputs returns a snapshot of the current output set.
func (n *Node) Outputs() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.outputs)
}

// AddModifier appends to the effect chain. Duplicate adds are ignored.
func (n *Node) AddModifier(m Modifier) {
	if m == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed || slices.Contains(n.modifiers, m) {
		return
	}
	n.modifiers = append(n.modifiers, m)
}

func (n *Node) RemoveModifier(m Modifier) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i := slices.Index(n.modifiers, m); i >= 0 {
		n.modifiers = slices.Delete(n.modifiers, i, i+1)
	}
}

// AddAnalyzer appends to the analysis chain. Duplicate adds are ignored.
func (n *Node) AddAnalyzer(a Analyzer) {
	if a == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disposed || slices.Contains(n.analyzers, a) {
		return
	}
	n.analyzers = append(n.analyzers, a)
}

func (n *Node) RemoveAnalyzer(a Analyzer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i := slices.Index(n.analyzers, a); i >= 0 {
		n.analyzers = slices.Delete(n.analyzers, i, i+1)
	}
}

// ConnectInput establishes the edge other -> n, making n consume other's
// output. Fails on nil, self-connection, disposed peers, and any connection
// that would close a cycle; the graph is unchanged on failure.
func (n *Node) ConnectInput(other *Node) error {
	if other == nil {
		return ErrNilNode
	}
	if other == n {
		return ErrSelfConnection
	}

	topoMu.Lock()
	defer topoMu.Unlock()

	// The new edge other->n closes a cycle iff a path n -> ... -> other
	// already exists downstream of n.
	if reaches(n, other) {
		return ErrCycle
	}

	// Lock the pair in a fixed total order so a concurrent connect of the
	// same two nodes in reverse cannot deadlock.
	first, second := lockOrder(n, other)
	first.mu.Lock()
	second.mu.Lock()
	defer second.mu.Unlock()
	defer first.mu.Unlock()

	if n.disposed || other.disposed {
		return ErrDisposed
	}
	if slices.Contains(n.inputs, other) {
		return nil
	}
	n.inputs = append(n.inputs, other)
	other.outputs = append(other.outputs, n)
	return nil
}

// DisconnectInput removes the edge other -> n if present. Absent edges and
// disposed peers are tolerated as no-ops so teardown races stay harmless.
func (n *Node) DisconnectInput(other *Node) {
	if other == nil || other == n {
		return
	}

	topoMu.Lock()
	defer topoMu.Unlock()

	first, second := lockOrder(n, other)
	first.mu.Lock()
	second.mu.Lock()
	defer second.mu.Unlock()
	defer first.mu.Unlock()

	if i := slices.Index(n.inputs, other); i >= 0 {
		n.inputs = slices.Delete(n.inputs, i, i+1)
	}
	if i := slices.Index(other.outputs, n); i >= 0 {
		other.outputs = slices.Delete(other.outputs, i, i+1)
	}
}

func lockOrder(a, b *Node) (*Node, *Node) {
	if bytes.Compare(a.id[:], b.id[:]) < 0 {
		return a, b
	}
	return b, a
}

// reaches reports whether target is reachable from start following output
// edges and mixer-ownership links. Callers hold topoMu, which keeps the
// walk consistent; each visited node's lock is taken only briefly.
func reaches(start, target *Node) bool {
	if start == target {
		return true
	}
	visited := map[*Node]bool{start: true}
	queue := []*Node{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		cur.mu.Lock()
		next := slices.Clone(cur.outputs)
		if cur.owner != nil {
			next = append(next, cur.owner.Node)
		}
		cur.mu.Unlock()

		for _, nb := range next {
			if nb == target {
				return true
			}
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return false
}

// Process pulls one period of audio through this node and mixes it into
// out. channels is the interleaved channel count of out. No-op when the
// node is disabled, muted or disposed.
func (n *Node) Process(out []float32, channels int) {
	n.mu.Lock()
	if !n.enabled || n.muted || n.disposed {
		n.mu.Unlock()
		return
	}
	inputs := slices.Clone(n.inputs)
	panicked := n.panicked
	n.mu.Unlock()

	p := acquireScratch(len(out))
	scratch := *p

	// Inputs mix additively into the same scratch region; pure addition
	// keeps the result independent of snapshot iteration order.
	for _, in := range inputs {
		in.Process(scratch, channels)
	}

	if n.gen != nil {
		n.generate(scratch, channels, panicked)
	}

	n.mu.Lock()
	modifiers := slices.Clone(n.modifiers)
	analyzers := slices.Clone(n.analyzers)
	volume, left, right := n.volume, n.gainLeft, n.gainRight
	n.mu.Unlock()

	for _, m := range modifiers {
		if m.IsEnabled() {
			m.ProcessBuffer(scratch, channels)
		}
	}

	applyGain(scratch, channels, volume, left, right)
	mixAdd(out, scratch)

	for _, a := range analyzers {
		a.AnalyzeBuffer(scratch, channels)
	}

	releaseScratch(p)
}

// generate runs the leaf generator with panic containment: a failing
// generator must not take down the native callback it runs under.
func (n *Node) generate(out []float32, channels int, panicked func(any)) {
	defer func() {
		if r := recover(); r != nil && panicked != nil {
			panicked(r)
		}
	}()
	n.gen.Generate(out, channels)
}

// SetPanicHandler installs a callback invoked when the node's generator
// panics during Process. Devices use it to log contained failures.
func (n *Node) SetPanicHandler(f func(any)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.panicked = f
}

// Dispose tears the node down: disables it, releases solo, leaves its
// mixer, disconnects every remaining edge from both sides and clears the
// chains. Idempotent.
func (n *Node) Dispose() {
	topoMu.Lock()

	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		topoMu.Unlock()
		return
	}
	n.enabled = false
	n.disposed = true
	wasSoloed := n.soloed
	n.soloed = false
	reg := n.solo
	owner := n.owner
	n.owner = nil
	inputs := n.inputs
	outputs := n.outputs
	n.inputs = nil
	n.outputs = nil
	n.modifiers = nil
	n.analyzers = nil
	n.mu.Unlock()

	for _, in := range inputs {
		in.mu.Lock()
		if i := slices.Index(in.outputs, n); i >= 0 {
			in.outputs = slices.Delete(in.outputs, i, i+1)
		}
		in.mu.Unlock()
	}
	for _, out := range outputs {
		out.mu.Lock()
		if i := slices.Index(out.inputs, n); i >= 0 {
			out.inputs = slices.Delete(out.inputs, i, i+1)
		}
		out.mu.Unlock()
	}
	if owner != nil {
		owner.removeMemberLocked(n)
	}

	topoMu.Unlock()

	if wasSoloed && reg != nil {
		reg.UnsoloComponent(n)
	}
}
