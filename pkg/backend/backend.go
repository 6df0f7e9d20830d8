// Package backend abstracts the native audio layer: device enumeration,
// device open/start/stop, and delivery of the periodic real-time data
// callback. The engine talks only to this seam; the malgo implementation
// binds it to miniaudio, and the stub implementation drives it from tests.
package backend

import (
	"errors"
	"fmt"

	"github.com/cadence-audio/cadence/pkg/format"
)

var (
	ErrBackendClosed   = errors.New("backend is closed")
	ErrDeviceNotFound  = errors.New("no device with specified ID")
	ErrUnsupportedType = errors.New("device type not supported by backend")
)

// Capability is a bitset of device roles.
type Capability uint8

const (
	CapabilityPlayback Capability = 1 << iota
	CapabilityRecord
	CapabilityLoopback

	CapabilityMixed = CapabilityPlayback | CapabilityRecord
)

func (c Capability) Has(other Capability) bool { return c&other == other }

type DeviceType uint8

const (
	DeviceTypePlayback DeviceType = iota
	DeviceTypeCapture
	DeviceTypeDuplex
	DeviceTypeLoopback
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypePlayback:
		return "playback"
	case DeviceTypeCapture:
		return "capture"
	case DeviceTypeDuplex:
		return "duplex"
	case DeviceTypeLoopback:
		return "loopback"
	default:
		return "unknown"
	}
}

type ShareMode uint8

const (
	ShareModeShared ShareMode = iota
	ShareModeExclusive
)

// DeviceInfo describes a physical device. ID is the backend's opaque
// identifier, carried as a byte string so it round-trips losslessly.
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}

// DeviceConfig carries open-time options. Platform holds backend-specific
// settings passed through unmodified.
type DeviceConfig struct {
	PeriodSizeInFrames       uint32
	PeriodSizeInMilliseconds uint32
	ShareMode                ShareMode
	Platform                 map[string]any
}

// DataCallback is invoked by the backend once per period from its real-time
// thread. out is nil for capture-only devices, in is nil for playback-only
// devices. Implementations must not retain either slice.
type DataCallback func(out, in []byte, frameCount uint32)

// Handle is an opened device. Stop returns only once the backend
// guarantees no further callback will fire.
type Handle interface {
	Start() error
	Stop() error
	Close() error
}

type Backend interface {
	Name() string

	// EnumerateDevices lists available playback and capture devices.
	EnumerateDevices() (playback, capture []DeviceInfo, err error)

	// OpenDevice opens a device of the given type. info nil selects the
	// backend's default device for that type.
	OpenDevice(info *DeviceInfo, deviceType DeviceType, f format.AudioFormat, cfg DeviceConfig, cb DataCallback) (Handle, error)

	Close() error
}

// Error is a tagged native-backend failure.
type Error struct {
	Backend string
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s backend: %s (code %d)", e.Backend, e.Message, e.Code)
	}
	return fmt.Sprintf("%s backend: %s", e.Backend, e.Message)
}
