package engine

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cadence-audio/cadence/pkg/backend"
	"github.com/cadence-audio/cadence/pkg/format"
)

type DeviceState uint8

const (
	DeviceCreated DeviceState = iota
	DeviceRunning
	DeviceStopped
	DeviceDisposed
)

func (s DeviceState) String() string {
	switch s {
	case DeviceCreated:
		return "created"
	case DeviceRunning:
		return "running"
	case DeviceStopped:
		return "stopped"
	case DeviceDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Device is an opened audio device bound to the backend's periodic
// callback. Start/Stop/Dispose transitions are idempotent; Stop returns
// only once no further callback will fire.
type Device interface {
	Start() error
	Stop() error
	Dispose()
	State() DeviceState
	Format() format.AudioFormat
	Capability() backend.Capability
}

// deviceCore carries the state machine and backend handle shared by all
// device kinds.
type deviceCore struct {
	id         uuid.UUID
	logger     *slog.Logger
	engine     *Engine
	info       *backend.DeviceInfo
	config     backend.DeviceConfig
	format     format.AudioFormat
	capability backend.Capability
	handle     backend.Handle

	mu    sync.Mutex
	state DeviceState
}

func newDeviceCore(e *Engine, role string, info *backend.DeviceInfo, cfg backend.DeviceConfig, f format.AudioFormat, capability backend.Capability) deviceCore {
	id := uuid.New()
	return deviceCore{
		id: id,
		logger: e.logger.With(
			"device uuid", id,
			"role", role,
		),
		engine:     e,
		info:       info,
		config:     cfg,
		format:     f,
		capability: capability,
	}
}

func (d *deviceCore) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *deviceCore) Format() format.AudioFormat { return d.format }

func (d *deviceCore) Capability() backend.Capability { return d.capability }

// Info returns the physical device descriptor this device was opened
// against, or nil for the backend default.
func (d *deviceCore) Info() *backend.DeviceInfo { return d.info }

func (d *deviceCore) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DeviceRunning || d.state == DeviceDisposed {
		return nil
	}
	if err := d.handle.Start(); err != nil {
		d.logger.Error("failed to start device", "err", err)
		return err
	}
	d.state = DeviceRunning
	d.logger.Debug("device started")
	return nil
}

func (d *deviceCore) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DeviceRunning {
		return nil
	}
	if err := d.handle.Stop(); err != nil {
		d.logger.Error("failed to stop device", "err", err)
		return err
	}
	d.state = DeviceStopped
	d.logger.Debug("device stopped")
	return nil
}

// dispose runs the common teardown and reports whether this call was the
// one that transitioned to Disposed.
func (d *deviceCore) dispose() bool {
	d.mu.Lock()
	if d.state == DeviceDisposed {
		d.mu.Unlock()
		return false
	}
	if d.state == DeviceRunning {
		if err := d.handle.Stop(); err != nil {
			d.logger.Error("error stopping device during dispose", "err", err)
		}
	}
	d.state = DeviceDisposed
	d.mu.Unlock()

	if err := d.handle.Close(); err != nil {
		d.logger.Error("error closing device handle", "err", err)
	}
	d.logger.Debug("device disposed")
	return true
}

// nopHandle stands in for the backend handle on the halves of a duplex
// device; the real handle lives on the parent, which drives both halves
// from its single callback.
type nopHandle struct{}

func (nopHandle) Start() error { return nil }
func (nopHandle) Stop() error  { return nil }
func (nopHandle) Close() error { return nil }
