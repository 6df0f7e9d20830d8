// Package engine ties the processing graph to the native audio layer: it
// enumerates devices, opens playback/capture/duplex devices that drive the
// graph from the backend's real-time callback, arbitrates the process-wide
// solo slot, and hands out decoders and encoders.
package engine

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/cadence-audio/cadence/pkg/backend"
	"github.com/cadence-audio/cadence/pkg/codec"
	"github.com/cadence-audio/cadence/pkg/format"
	"github.com/cadence-audio/cadence/pkg/graph"
)

var (
	ErrEngineClosed    = errors.New("engine is closed")
	ErrDeviceDisposed  = errors.New("device is disposed")
	ErrUnknownDevice   = errors.New("unknown device kind")
	ErrUnknownEncoding = errors.New("unknown encoding format")
)

// Engine is a backend session: device enumeration, device factories and the
// single-slot solo state shared by every node attached to it.
type Engine struct {
	logger  *slog.Logger
	backend backend.Backend

	mu            sync.Mutex
	closed        bool
	playbackInfos []backend.DeviceInfo
	captureInfos  []backend.DeviceInfo
	devices       []Device

	soloMu sync.Mutex
	soloed *graph.Node
}

// New creates an engine over the given backend and enumerates its devices.
func New(b backend.Backend) (*Engine, error) {
	logger := slog.Default().With(
		"engine uuid", uuid.New(),
		"backend", b.Name(),
	)

	e := &Engine{logger: logger, backend: b}
	if err := e.RefreshDevices(); err != nil {
		return nil, err
	}

	logger.Debug("engine initialized",
		"playbackDevices", len(e.playbackInfos),
		"captureDevices", len(e.captureInfos),
	)
	return e, nil
}

// RefreshDevices re-enumerates the backend's devices.
func (e *Engine) RefreshDevices() error {
	playback, capture, err := e.backend.EnumerateDevices()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.playbackInfos = playback
	e.captureInfos = capture
	return nil
}

// PlaybackDevices returns the descriptors found at the last enumeration.
func (e *Engine) PlaybackDevices() []backend.DeviceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.playbackInfos)
}

// CaptureDevices returns the descriptors found at the last enumeration.
func (e *Engine) CaptureDevices() []backend.DeviceInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.captureInfos)
}

// SoloComponent makes n the engine's soloed node. Playback devices then
// render n alone, bypassing every mixer member. A later solo replaces an
// earlier one.
func (e *Engine) SoloComponent(n *graph.Node) {
	if n == nil {
		return
	}
	e.soloMu.Lock()
	e.soloed = n
	e.soloMu.Unlock()
}

// UnsoloComponent clears the solo slot, but only if it still holds exactly
// n; a stale unsolo from a superseded holder is a no-op.
func (e *Engine) UnsoloComponent(n *graph.Node) {
	e.soloMu.Lock()
	if e.soloed == n {
		e.soloed = nil
	}
	e.soloMu.Unlock()
}

// SoloedComponent returns the currently soloed node, or nil.
func (e *Engine) SoloedComponent() *graph.Node {
	e.soloMu.Lock()
	defer e.soloMu.Unlock()
	return e.soloed
}

// CreateDecoder opens a decoder for the given format kind ("wav", "mp3",
// "ogg") over stream.
func (e *Engine) CreateDecoder(stream codec.ReadSeeker, kind string) (codec.Decoder, error) {
	return codec.DefaultRegistry.Open(kind, stream)
}

// CreateEncoder opens an encoder writing encodingFormat to w. WAV is the
// only encoding this build ships.
func (e *Engine) CreateEncoder(w io.WriteSeeker, encodingFormat string, f format.AudioFormat) (codec.Encoder, error) {
	switch encodingFormat {
	case "wav":
		return codec.NewWAVEncoder(w, f)
	default:
		return nil, ErrUnknownEncoding
	}
}

// Close disposes every open device and tears down the backend. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	devices := slices.Clone(e.devices)
	e.devices = nil
	e.mu.Unlock()

	for _, d := range devices {
		d.Dispose()
	}
	return e.backend.Close()
}

func (e *Engine) trackDevice(d Device) {
	e.mu.Lock()
	e.devices = append(e.devices, d)
	e.mu.Unlock()
}

func (e *Engine) untrackDevice(d Device) {
	e.mu.Lock()
	if i := slices.Index(e.devices, d); i >= 0 {
		e.devices = slices.Delete(e.devices, i, i+1)
	}
	e.mu.Unlock()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
