package backend

import (
	"sync"

	"github.com/cadence-audio/cadence/pkg/format"
)

const stubBackendName = "stub"

// StubBackend is an in-memory backend with one playback and one capture
// device. Periods do not run on a timer: tests drive them explicitly
// through StubHandle.Pump.
//
// Intended for testing only.
type StubBackend struct {
	mu      sync.Mutex
	closed  bool
	handles []*StubHandle
}

func NewStub() *StubBackend {
	return &StubBackend{}
}

func (b *StubBackend) Name() string { return stubBackendName }

func (b *StubBackend) EnumerateDevices() ([]DeviceInfo, []DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrBackendClosed
	}

	playback := []DeviceInfo{{ID: "stub-out", Name: "Stub Output", IsDefault: true}}
	capture := []DeviceInfo{{ID: "stub-in", Name: "Stub Input", IsDefault: true}}
	return playback, capture, nil
}

func (b *StubBackend) OpenDevice(info *DeviceInfo, deviceType DeviceType, f format.AudioFormat, cfg DeviceConfig, cb DataCallback) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBackendClosed
	}
	if info != nil && info.ID != "stub-out" && info.ID != "stub-in" {
		return nil, ErrDeviceNotFound
	}

	frames := cfg.PeriodSizeInFrames
	if frames == 0 {
		frames = 480
	}

	h := &StubHandle{
		deviceType: deviceType,
		format:     f,
		cb:         cb,
		frames:     frames,
	}
	b.handles = append(b.handles, h)
	return h, nil
}

func (b *StubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Handles returns every handle opened so far, in open order.
func (b *StubBackend) Handles() []*StubHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*StubHandle(nil), b.handles...)
}

// StubHandle is an opened stub device. Pump substitutes for the native
// real-time thread.
type StubHandle struct {
	deviceType DeviceType
	format     format.AudioFormat
	cb         DataCallback
	frames     uint32

	// FillInput, when set, fills the native input buffer before each
	// capture/duplex period.
	FillInput func(in []byte, frameCount uint32)

	mu      sync.Mutex
	running bool
	closed  bool
	lastOut []byte
}

func (h *StubHandle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrBackendClosed
	}
	h.running = true
	return nil
}

func (h *StubHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	return nil
}

func (h *StubHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.closed = true
	return nil
}

func (h *StubHandle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Pump runs n periods through the data callback, exactly as the native
// thread would. Periods are skipped while the handle is not running.
func (h *StubHandle) Pump(n int) {
	for i := 0; i < n; i++ {
		h.mu.Lock()
		running := h.running && !h.closed
		h.mu.Unlock()
		if !running {
			return
		}

		sampleCount := int(h.frames) * h.format.Channels
		byteCount := sampleCount * h.format.SampleFormat.BytesPerSample()

		var out, in []byte
		switch h.deviceType {
		case DeviceTypePlayback:
			out = make([]byte, byteCount)
		case DeviceTypeCapture, DeviceTypeLoopback:
			in = make([]byte, byteCount)
		case DeviceTypeDuplex:
			out = make([]byte, byteCount)
			in = make([]byte, byteCount)
		}

		if in != nil && h.FillInput != nil {
			h.FillInput(in, h.frames)
		}

		h.cb(out, in, h.frames)

		if out != nil {
			h.mu.Lock()
			h.lastOut = out
			h.mu.Unlock()
		}
	}
}

// LastOutput returns the native buffer rendered by the most recent playback
// period, or nil if none ran yet.
func (h *StubHandle) LastOutput() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastOut
}
