package engine

import (
	"github.com/cadence-audio/cadence/pkg/backend"
)

// switchHandle retargets the device to another physical device without
// recreating it: the graph, subscribers and state machine all stay in
// place, only the backend handle changes. The new handle is opened before
// the old one stops, and started only after, so exactly one of them is ever
// delivering periods. A zero cfg keeps the device's current open-time
// config; anything else replaces it for the new handle.
func (d *deviceCore) switchHandle(info *backend.DeviceInfo, cfg backend.DeviceConfig, typ backend.DeviceType, cb backend.DataCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DeviceDisposed {
		return ErrDeviceDisposed
	}

	if configIsZero(cfg) {
		cfg = d.config
	}
	newHandle, err := d.engine.backend.OpenDevice(info, typ, d.format, cfg, cb)
	if err != nil {
		return err
	}

	wasRunning := d.state == DeviceRunning
	if wasRunning {
		if err := d.handle.Stop(); err != nil {
			d.logger.Error("error stopping device during switch", "err", err)
		}
	}
	if err := d.handle.Close(); err != nil {
		d.logger.Error("error closing device during switch", "err", err)
	}
	d.handle = newHandle
	d.info = info
	d.config = cfg

	if wasRunning {
		if err := newHandle.Start(); err != nil {
			d.state = DeviceStopped
			d.logger.Error("failed to start device after switch", "err", err)
			return err
		}
	}

	name := "default"
	if info != nil {
		name = info.Name
	}
	d.logger.Info("switched device", "target", name)
	return nil
}

func configIsZero(cfg backend.DeviceConfig) bool {
	return cfg.PeriodSizeInFrames == 0 &&
		cfg.PeriodSizeInMilliseconds == 0 &&
		cfg.ShareMode == backend.ShareModeShared &&
		cfg.Platform == nil
}

// SwitchDevice moves playback to another output device. Everything attached
// to the master mixer keeps playing across the switch.
func (d *PlaybackDevice) SwitchDevice(info *backend.DeviceInfo, cfg backend.DeviceConfig) error {
	return d.switchHandle(info, cfg, backend.DeviceTypePlayback, d.onData)
}

// SwitchDevice moves capture to another input device. Subscribers stay
// registered across the switch.
func (d *CaptureDevice) SwitchDevice(info *backend.DeviceInfo, cfg backend.DeviceConfig) error {
	typ := backend.DeviceTypeCapture
	if d.capability == backend.CapabilityLoopback {
		typ = backend.DeviceTypeLoopback
	}
	return d.switchHandle(info, cfg, typ, d.onData)
}

// SwitchDevice moves the duplex stream to another playback device, keeping
// both halves intact.
func (d *FullDuplexDevice) SwitchDevice(info *backend.DeviceInfo, cfg backend.DeviceConfig) error {
	return d.switchHandle(info, cfg, backend.DeviceTypeDuplex, d.onData)
}

// SwitchDevice retargets dev to another physical device of the same role.
// A zero cfg carries the device's current config over.
func (e *Engine) SwitchDevice(dev Device, info *backend.DeviceInfo, cfg backend.DeviceConfig) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	switch d := dev.(type) {
	case *PlaybackDevice:
		return d.SwitchDevice(info, cfg)
	case *CaptureDevice:
		return d.SwitchDevice(info, cfg)
	case *FullDuplexDevice:
		return d.SwitchDevice(info, cfg)
	default:
		return ErrUnknownDevice
	}
}
