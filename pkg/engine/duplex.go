package engine

import (
	"github.com/cadence-audio/cadence/pkg/backend"
	"github.com/cadence-audio/cadence/pkg/format"
	"github.com/cadence-audio/cadence/pkg/graph"
)

// FullDuplexDevice drives one backend duplex stream and splits each period
// between an embedded playback half and an embedded capture half. The two
// halves share the stream clock, so captured input and rendered output stay
// aligned period for period.
type FullDuplexDevice struct {
	deviceCore

	playback *PlaybackDevice
	capture  *CaptureDevice
}

// InitializeFullDuplexDevice opens a duplex device using the same format on
// both directions. playbackInfo and captureInfo may be nil for the backend
// defaults.
func (e *Engine) InitializeFullDuplexDevice(playbackInfo, captureInfo *backend.DeviceInfo, f format.AudioFormat, cfg backend.DeviceConfig) (*FullDuplexDevice, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	d := &FullDuplexDevice{
		deviceCore: newDeviceCore(e, "duplex", playbackInfo, cfg, f, backend.CapabilityPlayback|backend.CapabilityRecord),
	}

	// The halves never talk to the backend themselves; the duplex stream's
	// callback feeds them, and the parent owns the real handle.
	p := &PlaybackDevice{
		deviceCore: newDeviceCore(e, "duplex-playback", playbackInfo, cfg, f, backend.CapabilityPlayback),
	}
	p.handle = nopHandle{}
	p.master = graph.NewMixer("master", f)
	p.master.AttachSoloRegistry(e)
	p.master.SetPanicHandler(func(r any) {
		p.logger.Error("generator panic contained", "panic", r)
	})

	c := &CaptureDevice{
		deviceCore: newDeviceCore(e, "duplex-capture", captureInfo, cfg, f, backend.CapabilityRecord),
	}
	c.handle = nopHandle{}

	if frames := cfg.PeriodSizeInFrames; frames > 0 {
		p.scratch = make([]float32, int(frames)*f.Channels)
		c.scratch = make([]float32, int(frames)*f.Channels)
	}
	d.playback = p
	d.capture = c

	handle, err := e.backend.OpenDevice(playbackInfo, backend.DeviceTypeDuplex, f, cfg, d.onData)
	if err != nil {
		return nil, err
	}
	d.handle = handle

	e.trackDevice(d)
	return d, nil
}

// Master returns the playback half's root mixer.
func (d *FullDuplexDevice) Master() *graph.Mixer { return d.playback.Master() }

// Playback returns the embedded playback half.
func (d *FullDuplexDevice) Playback() *PlaybackDevice { return d.playback }

// Capture returns the embedded capture half; subscribe there for input.
func (d *FullDuplexDevice) Capture() *CaptureDevice { return d.capture }

func (d *FullDuplexDevice) onData(out, in []byte, frameCount uint32) {
	// Capture first so subscribers observe the input for a period before
	// the output rendered against it.
	d.capture.onData(nil, in, frameCount)
	d.playback.onData(out, nil, frameCount)
}

// Start starts the duplex stream and moves both halves to Running.
func (d *FullDuplexDevice) Start() error {
	if err := d.deviceCore.Start(); err != nil {
		return err
	}
	_ = d.playback.deviceCore.Start()
	_ = d.capture.deviceCore.Start()
	return nil
}

// Stop stops the duplex stream and moves both halves to Stopped.
func (d *FullDuplexDevice) Stop() error {
	if err := d.deviceCore.Stop(); err != nil {
		return err
	}
	_ = d.playback.deviceCore.Stop()
	_ = d.capture.deviceCore.Stop()
	return nil
}

// Dispose tears down the stream and both halves. Idempotent.
func (d *FullDuplexDevice) Dispose() {
	if !d.dispose() {
		return
	}
	d.playback.Dispose()
	d.capture.Dispose()
	d.engine.untrackDevice(d)
}

// InitializeLoopbackDevice opens a device that captures the audio another
// application is playing, on backends that support it. It behaves exactly
// like a capture device.
func (e *Engine) InitializeLoopbackDevice(info *backend.DeviceInfo, f format.AudioFormat, cfg backend.DeviceConfig) (*CaptureDevice, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	d := &CaptureDevice{
		deviceCore: newDeviceCore(e, "loopback", info, cfg, f, backend.CapabilityLoopback),
	}
	if frames := cfg.PeriodSizeInFrames; frames > 0 {
		d.scratch = make([]float32, int(frames)*f.Channels)
	}

	handle, err := e.backend.OpenDevice(info, backend.DeviceTypeLoopback, f, cfg, d.onData)
	if err != nil {
		return nil, err
	}
	d.handle = handle

	e.trackDevice(d)
	return d, nil
}
