package graph

import (
	"slices"
	"sync"

	"github.com/cadence-audio/cadence/pkg/format"
)

// Mixer is a Node that aggregates an unordered set of member nodes instead
// of point-to-point inputs. Each member is processed into the mixer's
// scratch region every period; membership changes take effect between
// periods, never mid-period.
type Mixer struct {
	*Node

	membersMu sync.Mutex
	members   []*Node
}

// NewMixer creates an empty mixer. A mixer is itself a Node and can be a
// member of another mixer or an input to any node.
func NewMixer(name string, f format.AudioFormat) *Mixer {
	m := &Mixer{}
	m.Node = NewNode(name, f, m)
	return m
}

// Generate implements the mixer's leaf generation: every member pulls its
// own subgraph into the shared scratch region. Disabled and muted members
// skip themselves inside Process.
func (m *Mixer) Generate(out []float32, channels int) {
	m.membersMu.Lock()
	members := slices.Clone(m.members)
	m.membersMu.Unlock()

	for _, member := range members {
		member.Process(out, channels)
	}
}

// AddComponent adds n as a member. It fails if n is nil or disposed, is the
// mixer itself, is already owned by a different mixer (ownership is never
// transferred implicitly), or if the mixer is reachable from n through
// output edges or ownership links, which would close a cycle. Adding a node
// that is already a member is a no-op.
func (m *Mixer) AddComponent(n *Node) error {
	if n == nil {
		return ErrNilNode
	}
	if n == m.Node {
		return ErrSelfConnection
	}

	topoMu.Lock()
	defer topoMu.Unlock()

	n.mu.Lock()
	switch {
	case n.disposed:
		n.mu.Unlock()
		return ErrDisposed
	case n.owner == m:
		n.mu.Unlock()
		return nil
	case n.owner != nil:
		n.mu.Unlock()
		return ErrAlreadyOwned
	}
	n.mu.Unlock()

	if m.Node.IsDisposed() {
		return ErrDisposed
	}

	// Membership makes the mixer consume n's output, so a path from the
	// mixer back to n would be a cycle.
	if reaches(m.Node, n) {
		return ErrCycle
	}

	m.Node.mu.Lock()
	reg := m.Node.solo
	m.Node.mu.Unlock()

	n.mu.Lock()
	n.owner = m
	if n.solo == nil {
		n.solo = reg
	}
	n.mu.Unlock()

	m.membersMu.Lock()
	m.members = append(m.members, n)
	m.membersMu.Unlock()
	return nil
}

// RemoveComponent removes n from the member set and clears its ownership
// link. Absent members and disposed mixers are tolerated as no-ops.
func (m *Mixer) RemoveComponent(n *Node) {
	if n == nil {
		return
	}

	topoMu.Lock()
	defer topoMu.Unlock()

	m.removeMemberLocked(n)

	n.mu.Lock()
	if n.owner == m {
		n.owner = nil
	}
	n.mu.Unlock()
}

// removeMemberLocked drops n from the member slice. Callers hold topoMu.
func (m *Mixer) removeMemberLocked(n *Node) {
	m.membersMu.Lock()
	if i := slices.Index(m.members, n); i >= 0 {
		m.members = slices.Delete(m.members, i, i+1)
	}
	m.membersMu.Unlock()
}

// Members returns a snapshot of the current member set.
func (m *Mixer) Members() []*Node {
	m.membersMu.Lock()
	defer m.membersMu.Unlock()
	return slices.Clone(m.members)
}

// Dispose disposes the mixer node first, then detaches and tears down every
// member. The node must go down before the member sweep: AddComponent checks
// the disposed flag under topoMu, so once Node.Dispose returns no concurrent
// add can slip a member in behind the cascade. Idempotent.
func (m *Mixer) Dispose() {
	m.Node.Dispose()

	m.membersMu.Lock()
	members := m.members
	m.members = nil
	m.membersMu.Unlock()

	for _, member := range members {
		member.mu.Lock()
		if member.owner == m {
			member.owner = nil
		}
		member.mu.Unlock()
		member.Dispose()
	}
}
