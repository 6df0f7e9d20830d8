package engine

import (
	"unsafe"

	"github.com/cadence-audio/cadence/pkg/backend"
	"github.com/cadence-audio/cadence/pkg/format"
	"github.com/cadence-audio/cadence/pkg/graph"
)

// PlaybackDevice renders the graph into the backend's output buffer once
// per period. It owns its master mixer, the sole entry point for audio it
// plays; attach nodes there or solo one through the engine.
type PlaybackDevice struct {
	deviceCore

	master *graph.Mixer

	// scratch is the float32 mixing target for non-float native formats.
	// ToNative zeroes it after consumption, so it re-enters every period
	// already silent.
	scratch []float32
}

// InitializePlaybackDevice opens a playback device. info nil selects the
// backend default.
func (e *Engine) InitializePlaybackDevice(info *backend.DeviceInfo, f format.AudioFormat, cfg backend.DeviceConfig) (*PlaybackDevice, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	d := &PlaybackDevice{
		deviceCore: newDeviceCore(e, "playback", info, cfg, f, backend.CapabilityPlayback),
	}
	d.master = graph.NewMixer("master", f)
	d.master.AttachSoloRegistry(e)
	d.master.SetPanicHandler(func(r any) {
		d.logger.Error("generator panic contained", "panic", r)
	})
	if frames := cfg.PeriodSizeInFrames; frames > 0 {
		d.scratch = make([]float32, int(frames)*f.Channels)
	}

	handle, err := e.backend.OpenDevice(info, backend.DeviceTypePlayback, f, cfg, d.onData)
	if err != nil {
		return nil, err
	}
	d.handle = handle

	e.trackDevice(d)
	return d, nil
}

// Master returns the device's root mixer.
func (d *PlaybackDevice) Master() *graph.Mixer { return d.master }

// onData is the real-time period callback. A panic anywhere in the graph
// must not unwind into the native audio thread.
func (d *PlaybackDevice) onData(out, _ []byte, frameCount uint32) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in data callback", "panic", r)
		}
	}()
	if out == nil {
		return
	}
	channels := d.format.Channels
	n := int(frameCount) * channels

	if d.format.SampleFormat == format.SampleFormatF32 && len(out) >= n*4 {
		// Native format is already float32: render straight into the
		// device buffer, no conversion copy.
		target := unsafe.Slice((*float32)(unsafe.Pointer(&out[0])), n)
		clear(target)
		d.render(target, channels)
		return
	}

	if cap(d.scratch) < n {
		d.scratch = make([]float32, n)
	}
	target := d.scratch[:n]
	d.render(target, channels)
	format.ToNative(target, out, d.format.SampleFormat)
}

// render pulls one period from the soloed node if the engine has one,
// otherwise from the master mixer.
func (d *PlaybackDevice) render(target []float32, channels int) {
	if soloed := d.engine.SoloedComponent(); soloed != nil {
		soloed.Process(target, channels)
		return
	}
	d.master.Node.Process(target, channels)
}

// Dispose stops the device if running, closes its handle and tears down the
// master mixer together with every member. Idempotent.
func (d *PlaybackDevice) Dispose() {
	if !d.dispose() {
		return
	}
	d.master.Dispose()
	d.engine.untrackDevice(d)
}
