package format

import "errors"

var (
	ErrUnknownSampleFormat = errors.New("unknown sample format")
	ErrInvalidChannelCount = errors.New("channel count must be positive")
	ErrInvalidSampleRate   = errors.New("sample rate must be positive")
	ErrShortBuffer         = errors.New("destination buffer too small")
)
