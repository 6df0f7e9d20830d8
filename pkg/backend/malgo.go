package backend

import (
	"log/slog"

	"github.com/gen2brain/malgo"

	"github.com/cadence-audio/cadence/pkg/format"
)

const malgoBackendName = "miniaudio"

// MalgoBackend binds the backend seam to miniaudio. One context is shared
// by every device opened through it.
type MalgoBackend struct {
	logger *slog.Logger
	ctx    *malgo.AllocatedContext
	closed bool
}

// NewMalgo initializes a miniaudio context. Native log lines are forwarded
// to slog at debug level.
func NewMalgo() (*MalgoBackend, error) {
	logger := slog.Default().With("backend", malgoBackendName)

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("native log", "message", message)
	})
	if err != nil {
		return nil, wrapMalgoErr(err)
	}

	return &MalgoBackend{logger: logger, ctx: ctx}, nil
}

func (b *MalgoBackend) Name() string { return malgoBackendName }

func (b *MalgoBackend) EnumerateDevices() ([]DeviceInfo, []DeviceInfo, error) {
	if b.closed {
		return nil, nil, ErrBackendClosed
	}

	playback, err := b.listDevices(malgo.Playback)
	if err != nil {
		return nil, nil, err
	}
	capture, err := b.listDevices(malgo.Capture)
	if err != nil {
		return nil, nil, err
	}
	return playback, capture, nil
}

func (b *MalgoBackend) listDevices(typ malgo.DeviceType) ([]DeviceInfo, error) {
	devices, err := b.ctx.Devices(typ)
	if err != nil {
		return nil, wrapMalgoErr(err)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		full, err := b.ctx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			b.logger.Warn("unable to query device info", "err", err)
			continue
		}
		infos = append(infos, DeviceInfo{
			ID:        string(append([]byte(nil), full.ID[:]...)),
			Name:      full.Name(),
			IsDefault: full.IsDefault == 1,
		})
	}
	return infos, nil
}

func (b *MalgoBackend) OpenDevice(info *DeviceInfo, deviceType DeviceType, f format.AudioFormat, cfg DeviceConfig, cb DataCallback) (Handle, error) {
	if b.closed {
		return nil, ErrBackendClosed
	}

	var typ malgo.DeviceType
	switch deviceType {
	case DeviceTypePlayback:
		typ = malgo.Playback
	case DeviceTypeCapture:
		typ = malgo.Capture
	case DeviceTypeDuplex:
		typ = malgo.Duplex
	case DeviceTypeLoopback:
		typ = malgo.Loopback
	default:
		return nil, ErrUnsupportedType
	}

	mf, err := toMalgoFormat(f.SampleFormat)
	if err != nil {
		return nil, err
	}

	devCfg := malgo.DefaultDeviceConfig(typ)
	devCfg.SampleRate = uint32(f.SampleRate)
	devCfg.PeriodSizeInFrames = cfg.PeriodSizeInFrames
	devCfg.PeriodSizeInMilliseconds = cfg.PeriodSizeInMilliseconds
	devCfg.Playback.Format = mf
	devCfg.Playback.Channels = uint32(f.Channels)
	devCfg.Capture.Format = mf
	devCfg.Capture.Channels = uint32(f.Channels)
	if cfg.ShareMode == ShareModeExclusive {
		devCfg.Playback.ShareMode = malgo.Exclusive
		devCfg.Capture.ShareMode = malgo.Exclusive
	}

	var devID malgo.DeviceID
	if info != nil {
		copy(devID[:], info.ID)
		switch deviceType {
		case DeviceTypePlayback:
			devCfg.Playback.DeviceID = devID.Pointer()
		case DeviceTypeCapture, DeviceTypeLoopback:
			devCfg.Capture.DeviceID = devID.Pointer()
		case DeviceTypeDuplex:
			devCfg.Playback.DeviceID = devID.Pointer()
			devCfg.Capture.DeviceID = devID.Pointer()
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {
			cb(out, in, frameCount)
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, devCfg, callbacks)
	if err != nil {
		return nil, wrapMalgoErr(err)
	}

	b.logger.Debug("opened device",
		"type", deviceType,
		"format", f,
		"periodFrames", cfg.PeriodSizeInFrames,
	)
	return &malgoHandle{dev: dev}, nil
}

func (b *MalgoBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.ctx.Uninit(); err != nil {
		b.ctx.Free()
		return wrapMalgoErr(err)
	}
	b.ctx.Free()
	return nil
}

type malgoHandle struct {
	dev *malgo.Device
}

func (h *malgoHandle) Start() error {
	if err := h.dev.Start(); err != nil {
		return wrapMalgoErr(err)
	}
	return nil
}

// Stop blocks until miniaudio has stopped the device; no callback fires
// after it returns.
func (h *malgoHandle) Stop() error {
	if err := h.dev.Stop(); err != nil {
		return wrapMalgoErr(err)
	}
	return nil
}

func (h *malgoHandle) Close() error {
	h.dev.Uninit()
	return nil
}

func toMalgoFormat(sf format.SampleFormat) (malgo.FormatType, error) {
	switch sf {
	case format.SampleFormatU8:
		return malgo.FormatU8, nil
	case format.SampleFormatS16:
		return malgo.FormatS16, nil
	case format.SampleFormatS24:
		return malgo.FormatS24, nil
	case format.SampleFormatS32:
		return malgo.FormatS32, nil
	case format.SampleFormatF32:
		return malgo.FormatF32, nil
	default:
		return malgo.FormatUnknown, format.ErrUnknownSampleFormat
	}
}

func wrapMalgoErr(err error) error {
	return &Error{Backend: malgoBackendName, Message: err.Error()}
}
