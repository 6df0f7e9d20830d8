package codec

import (
	"errors"
	"strings"
	"sync"

	"github.com/cadence-audio/cadence/pkg/format"
)

var (
	ErrUnknownKind = errors.New("no codec registered for kind")
	ErrNotSeekable = errors.New("decoder does not support seeking")
	ErrInvalidSeek = errors.New("seek offset out of range")
	ErrClosed      = errors.New("codec is closed")
	ErrUnsupported = errors.New("unsupported encoding parameters")
)

// Decoder produces interleaved float32 samples in [-1, 1] from an encoded
// stream. Decode fills dst and returns the number of float32 values
// written; io.EOF with n == 0 marks end of stream.
type Decoder interface {
	Decode(dst []float32) (int, error)

	// Seek moves the stream position to the given frame offset.
	Seek(frame int) error

	// Length returns the total stream length in frames, or 0 when unknown.
	Length() int

	Format() format.AudioFormat

	Close() error
}

// Encoder consumes interleaved float32 samples and writes them encoded.
// Encode returns the number of float32 values consumed. Close finalizes
// the stream and must be called exactly once.
type Encoder interface {
	Encode(src []float32) (int, error)
	Close() error
}

// DecoderFactory opens a decoder over a seekable stream. The concrete
// stream type each codec needs is asserted inside the factory.
type DecoderFactory func(r ReadSeeker) (Decoder, error)

// ReadSeeker is the stream a decoder reads from.
type ReadSeeker interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

// Registry maps a format kind ("wav", "mp3", "ogg") to its decoder factory.
// Safe for concurrent use.
type Registry struct {
	mtx       sync.Mutex
	factories map[string]DecoderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]DecoderFactory)}
}

func (r *Registry) Register(kind string, f DecoderFactory) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.factories[strings.ToLower(kind)] = f
}

func (r *Registry) Open(kind string, stream ReadSeeker) (Decoder, error) {
	r.mtx.Lock()
	f, ok := r.factories[strings.ToLower(kind)]
	r.mtx.Unlock()
	if !ok {
		return nil, ErrUnknownKind
	}
	return f(stream)
}

// DefaultRegistry holds the codecs this package ships: WAV, MP3 and Ogg
// Vorbis decode, WAV encode.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register("wav", NewWAVDecoder)
	DefaultRegistry.Register("mp3", NewMP3Decoder)
	DefaultRegistry.Register("ogg", NewVorbisDecoder)
}
