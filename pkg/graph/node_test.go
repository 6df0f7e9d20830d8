package graph

import (
	"errors"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/cadence-audio/cadence/pkg/format"
)

func stereoFormat() format.AudioFormat {
	return format.AudioFormat{
		SampleFormat: format.SampleFormatF32,
		Channels:     2,
		SampleRate:   48000,
	}
}

// constGen writes the same value into every sample.
type constGen struct {
	value float32
}

func (g constGen) Generate(out []float32, _ int) {
	for i := range out {
		out[i] = g.value
	}
}

// panicGen panics on every period.
type panicGen struct{}

func (panicGen) Generate([]float32, int) { panic("boom") }

func TestConnectInputRejectsCycles(t *testing.T) {
	t.Parallel()

	a := NewNode("a", stereoFormat(), nil)
	b := NewNode("b", stereoFormat(), nil)

	if err := b.ConnectInput(a); err != nil {
		t.Fatalf("ConnectInput(a) error = %v, want nil", err)
	}
	if err := a.ConnectInput(b); !errors.Is(err, ErrCycle) {
		t.Fatalf("ConnectInput(b) error = %v, want ErrCycle", err)
	}

	// Rejection must leave the existing topology untouched.
	if got := len(a.Inputs()); got != 0 {
		t.Errorf("a inputs = %d, want 0", got)
	}
	if got := b.Inputs(); len(got) != 1 || got[0] != a {
		t.Errorf("b inputs = %v, want [a]", got)
	}
}

func TestConnectInputRejectsLongerCycle(t *testing.T) {
	t.Parallel()

	a := NewNode("a", stereoFormat(), nil)
	b := NewNode("b", stereoFormat(), nil)
	c := NewNode("c", stereoFormat(), nil)

	if err := b.ConnectInput(a); err != nil {
		t.Fatal(err)
	}
	if err := c.ConnectInput(b); err != nil {
		t.Fatal(err)
	}
	if err := a.ConnectInput(c); !errors.Is(err, ErrCycle) {
		t.Fatalf("closing the loop error = %v, want ErrCycle", err)
	}
}

func TestConnectInputValidation(t *testing.T) {
	t.Parallel()

	a := NewNode("a", stereoFormat(), nil)

	if err := a.ConnectInput(nil); !errors.Is(err, ErrNilNode) {
		t.Errorf("ConnectInput(nil) error = %v, want ErrNilNode", err)
	}
	if err := a.ConnectInput(a); !errors.Is(err, ErrSelfConnection) {
		t.Errorf("ConnectInput(self) error = %v, want ErrSelfConnection", err)
	}

	d := NewNode("d", stereoFormat(), nil)
	d.Dispose()
	if err := a.ConnectInput(d); !errors.Is(err, ErrDisposed) {
		t.Errorf("ConnectInput(disposed) error = %v, want ErrDisposed", err)
	}
}

func TestConnectInputDuplicateIsNoOp(t *testing.T) {
	t.Parallel()

	a := NewNode("a", stereoFormat(), nil)
	b := NewNode("b", stereoFormat(), nil)

	if err := b.ConnectInput(a); err != nil {
		t.Fatal(err)
	}
	if err := b.ConnectInput(a); err != nil {
		t.Fatalf("duplicate ConnectInput error = %v, want nil", err)
	}
	if got := len(b.Inputs()); got != 1 {
		t.Errorf("b inputs = %d, want 1", got)
	}
	if got := len(a.Outputs()); got != 1 {
		t.Errorf("a outputs = %d, want 1", got)
	}
}

func TestDisconnectInput(t *testing.T) {
	t.Parallel()

	a := NewNode("a", stereoFormat(), nil)
	b := NewNode("b", stereoFormat(), nil)

	if err := b.ConnectInput(a); err != nil {
		t.Fatal(err)
	}
	b.DisconnectInput(a)
	if got := len(b.Inputs()); got != 0 {
		t.Errorf("b inputs = %d, want 0", got)
	}
	if got := len(a.Outputs()); got != 0 {
		t.Errorf("a outputs = %d, want 0", got)
	}

	// Disconnecting an absent edge is tolerated.
	b.DisconnectInput(a)
	b.DisconnectInput(nil)
}

func TestVolumeAndPanRanges(t *testing.T) {
	t.Parallel()

	n := NewNode("n", stereoFormat(), nil)

	if err := n.SetVolume(-0.1); !errors.Is(err, ErrVolumeRange) {
		t.Errorf("SetVolume(-0.1) error = %v, want ErrVolumeRange", err)
	}
	if err := n.SetVolume(2); err != nil {
		t.Errorf("SetVolume(2) error = %v, want nil", err)
	}
	if got := n.Volume(); got != 2 {
		t.Errorf("Volume() = %v, want 2", got)
	}

	if err := n.SetPan(-0.01); !errors.Is(err, ErrPanRange) {
		t.Errorf("SetPan(-0.01) error = %v, want ErrPanRange", err)
	}
	if err := n.SetPan(1.01); !errors.Is(err, ErrPanRange) {
		t.Errorf("SetPan(1.01) error = %v, want ErrPanRange", err)
	}
}

func TestConstantPowerPan(t *testing.T) {
	t.Parallel()

	const tol = 1e-6

	cases := []struct {
		name        string
		pan         float32
		left, right float64
	}{
		{"hard left", 0, 1, 0},
		{"center", 0.5, math.Sqrt(0.5), math.Sqrt(0.5)},
		{"hard right", 1, 0, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			n := NewNode("n", stereoFormat(), constGen{value: 1})
			if err := n.SetPan(tc.pan); err != nil {
				t.Fatal(err)
			}

			out := make([]float32, 8)
			n.Process(out, 2)

			if got := float64(out[0]); math.Abs(got-tc.left) > tol {
				t.Errorf("left = %v, want %v", got, tc.left)
			}
			if got := float64(out[1]); math.Abs(got-tc.right) > tol {
				t.Errorf("right = %v, want %v", got, tc.right)
			}
		})
	}
}

func TestProcessMixesInputsAdditively(t *testing.T) {
	t.Parallel()

	sink := NewNode("sink", stereoFormat(), nil)
	src1 := NewNode("src1", stereoFormat(), constGen{value: 0.25})
	src2 := NewNode("src2", stereoFormat(), constGen{value: 0.5})
	for _, src := range []*Node{src1, src2} {
		if err := src.SetPan(0.5); err != nil {
			t.Fatal(err)
		}
		if err := sink.ConnectInput(src); err != nil {
			t.Fatal(err)
		}
	}

	out := make([]float32, 4)
	sink.Process(out, 2)

	// Each source applies its own center-pan gain of √0.5, and the sink
	// applies √0.5 again to the sum.
	want := float32(0.75 * 0.5)
	for i, got := range out {
		if math.Abs(float64(got-want)) > 1e-6 {
			t.Fatalf("out[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestProcessDisabledAndMutedProduceSilence(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		setup func(*Node)
	}{
		{"disabled", func(n *Node) { n.SetEnabled(false) }},
		{"muted", func(n *Node) { n.SetMuted(true) }},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			n := NewNode("n", stereoFormat(), constGen{value: 1})
			tc.setup(n)

			out := make([]float32, 4)
			n.Process(out, 2)
			for i, got := range out {
				if got != 0 {
					t.Fatalf("out[%d] = %v, want 0", i, got)
				}
			}
		})
	}
}

// reorderModifier records processing order.
type orderModifier struct {
	label   string
	order   *[]string
	enabled bool
}

func (m *orderModifier) ProcessBuffer(buf []float32, _ int) {
	*m.order = append(*m.order, m.label)
	for i := range buf {
		buf[i] *= 2
	}
}

func (m *orderModifier) IsEnabled() bool { return m.enabled }

func TestModifiersRunInOrderSkippingDisabled(t *testing.T) {
	t.Parallel()

	var order []string
	first := &orderModifier{label: "first", order: &order, enabled: true}
	skipped := &orderModifier{label: "skipped", order: &order, enabled: false}
	second := &orderModifier{label: "second", order: &order, enabled: true}

	n := NewNode("n", stereoFormat(), constGen{value: 0.1})
	n.AddModifier(first)
	n.AddModifier(skipped)
	n.AddModifier(second)

	out := make([]float32, 2)
	n.Process(out, 2)

	want := []string{"first", "second"}
	if !slices.Equal(order, want) {
		t.Errorf("modifier order = %v, want %v", order, want)
	}
}

func TestAnalyzerSeesPostGainSamples(t *testing.T) {
	t.Parallel()

	n := NewNode("n", stereoFormat(), constGen{value: 1})
	if err := n.SetVolume(0.5); err != nil {
		t.Fatal(err)
	}
	if err := n.SetPan(0.5); err != nil {
		t.Fatal(err)
	}

	peak := &PeakAnalyzer{}
	n.AddAnalyzer(peak)

	out := make([]float32, 4)
	n.Process(out, 2)

	want := 0.5 * math.Sqrt(0.5)
	if got := float64(peak.Peak()); math.Abs(got-want) > 1e-6 {
		t.Errorf("Peak() = %v, want %v", got, want)
	}
}

func TestGeneratorPanicIsContained(t *testing.T) {
	t.Parallel()

	n := NewNode("n", stereoFormat(), panicGen{})

	var mu sync.Mutex
	var caught any
	n.SetPanicHandler(func(r any) {
		mu.Lock()
		caught = r
		mu.Unlock()
	})

	out := make([]float32, 4)
	n.Process(out, 2)

	mu.Lock()
	defer mu.Unlock()
	if caught != "boom" {
		t.Errorf("panic handler got %v, want boom", caught)
	}
}

func TestDisposeDetachesFromPeers(t *testing.T) {
	t.Parallel()

	up := NewNode("up", stereoFormat(), constGen{value: 1})
	mid := NewNode("mid", stereoFormat(), nil)
	down := NewNode("down", stereoFormat(), nil)

	if err := mid.ConnectInput(up); err != nil {
		t.Fatal(err)
	}
	if err := down.ConnectInput(mid); err != nil {
		t.Fatal(err)
	}

	mid.Dispose()

	if !mid.IsDisposed() {
		t.Error("IsDisposed() = false, want true")
	}
	if got := len(up.Outputs()); got != 0 {
		t.Errorf("upstream outputs = %d, want 0", got)
	}
	if got := len(down.Inputs()); got != 0 {
		t.Errorf("downstream inputs = %d, want 0", got)
	}

	// Disposal is terminal and idempotent.
	mid.Dispose()
	if err := down.ConnectInput(mid); !errors.Is(err, ErrDisposed) {
		t.Errorf("ConnectInput after dispose error = %v, want ErrDisposed", err)
	}

	out := []float32{1, 1}
	mid.Process(out, 2)
	if out[0] != 1 || out[1] != 1 {
		t.Errorf("disposed Process wrote into out = %v", out)
	}
}

func TestConcurrentTopologyMutation(t *testing.T) {
	t.Parallel()

	sink := NewNode("sink", stereoFormat(), nil)
	const workers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := NewNode("src", stereoFormat(), constGen{value: float32(w) / workers})
			for r := 0; r < rounds; r++ {
				if err := sink.ConnectInput(n); err != nil {
					t.Errorf("ConnectInput error = %v", err)
					return
				}
				sink.DisconnectInput(n)
			}
		}()
	}

	// Concurrent rendering while edges churn.
	wg.Add(1)
	go func() {
		defer wg.Done()
		out := make([]float32, 16)
		for r := 0; r < rounds; r++ {
			sink.Process(out, 2)
		}
	}()

	wg.Wait()
	if got := len(sink.Inputs()); got != 0 {
		t.Errorf("inputs after churn = %d, want 0", got)
	}
}
