package engine

import (
	"sync"

	"github.com/cadence-audio/cadence/pkg/backend"
	"github.com/cadence-audio/cadence/pkg/format"
)

// AudioProcessCallback receives one period of captured audio as interleaved
// float32 samples. The slice is reused between periods; copy what you keep.
type AudioProcessCallback func(samples []float32, capability backend.Capability)

type captureSubscriber struct {
	id uint64
	cb AudioProcessCallback
}

// CaptureDevice reads periods from an input device, converts them to
// float32 and fans them out to subscribers in subscription order.
type CaptureDevice struct {
	deviceCore

	// subs is replaced wholesale on every mutation so onData can take a
	// reference under subMu without copying on the audio thread.
	subMu   sync.Mutex
	nextSub uint64
	subs    []captureSubscriber

	scratch []float32
}

// InitializeCaptureDevice opens a capture device. info nil selects the
// backend default.
func (e *Engine) InitializeCaptureDevice(info *backend.DeviceInfo, f format.AudioFormat, cfg backend.DeviceConfig) (*CaptureDevice, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	d := &CaptureDevice{
		deviceCore: newDeviceCore(e, "capture", info, cfg, f, backend.CapabilityRecord),
	}
	if frames := cfg.PeriodSizeInFrames; frames > 0 {
		d.scratch = make([]float32, int(frames)*f.Channels)
	}

	handle, err := e.backend.OpenDevice(info, backend.DeviceTypeCapture, f, cfg, d.onData)
	if err != nil {
		return nil, err
	}
	d.handle = handle

	e.trackDevice(d)
	return d, nil
}

// Subscribe registers cb for captured periods and returns a token for
// Unsubscribe. Callbacks run on the audio thread in subscription order.
func (d *CaptureDevice) Subscribe(cb AudioProcessCallback) uint64 {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.nextSub++
	next := make([]captureSubscriber, len(d.subs)+1)
	copy(next, d.subs)
	next[len(d.subs)] = captureSubscriber{id: d.nextSub, cb: cb}
	d.subs = next
	return d.nextSub
}

// Unsubscribe removes the subscription identified by id. Unknown ids are
// ignored.
func (d *CaptureDevice) Unsubscribe(id uint64) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for i, s := range d.subs {
		if s.id == id {
			next := make([]captureSubscriber, 0, len(d.subs)-1)
			next = append(next, d.subs[:i]...)
			next = append(next, d.subs[i+1:]...)
			d.subs = next
			return
		}
	}
}

func (d *CaptureDevice) onData(_, in []byte, frameCount uint32) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in data callback", "panic", r)
		}
	}()
	if in == nil {
		return
	}
	n := int(frameCount) * d.format.Channels
	if cap(d.scratch) < n {
		d.scratch = make([]float32, n)
	}
	samples := d.scratch[:n]
	if err := format.FromNative(in, samples, d.format.SampleFormat); err != nil {
		return
	}

	d.subMu.Lock()
	subs := d.subs
	d.subMu.Unlock()

	for _, s := range subs {
		s.cb(samples, d.capability)
	}
}

// Dispose stops the device if running, closes its handle and drops all
// subscribers. Idempotent.
func (d *CaptureDevice) Dispose() {
	if !d.dispose() {
		return
	}
	d.subMu.Lock()
	d.subs = nil
	d.subMu.Unlock()
	d.engine.untrackDevice(d)
}
