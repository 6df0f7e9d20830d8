package graph

import (
	"errors"
	"io"
	"sync"

	"github.com/cadence-audio/cadence/pkg/codec"
	"github.com/cadence-audio/cadence/pkg/format"
)

type PlayerState uint8

const (
	PlayerStopped PlayerState = iota
	PlayerPlaying
	PlayerPaused
)

// Player is a Node that generates audio from a decoder: a file or stream
// player. The decoder is adapted to the node's sample rate and channel
// count at construction, so Generate is a straight pull.
type Player struct {
	*Node

	mu      sync.Mutex
	dec     codec.Decoder
	state   PlayerState
	looping bool
	onEnd   func()

	readBuf []float32
}

// NewPlayer wraps dec in a player node delivering audio in f. The decoder
// is resampled and channel-mixed as needed.
func NewPlayer(name string, dec codec.Decoder, f format.AudioFormat) (*Player, error) {
	adapted, err := codec.Adapt(dec, f.SampleRate, f.Channels)
	if err != nil {
		return nil, err
	}
	p := &Player{dec: adapted}
	p.Node = NewNode(name, f, p)
	return p, nil
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Play() {
	p.mu.Lock()
	p.state = PlayerPlaying
	p.mu.Unlock()
}

func (p *Player) Pause() {
	p.mu.Lock()
	if p.state == PlayerPlaying {
		p.state = PlayerPaused
	}
	p.mu.Unlock()
}

// Stop halts playback and rewinds to the beginning.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PlayerStopped
	return p.dec.Seek(0)
}

func (p *Player) SetLooping(looping bool) {
	p.mu.Lock()
	p.looping = looping
	p.mu.Unlock()
}

// OnEnd registers a callback fired when the stream reaches its end and the
// player is not looping. It runs on its own goroutine, never on the
// real-time thread.
func (p *Player) OnEnd(f func()) {
	p.mu.Lock()
	p.onEnd = f
	p.mu.Unlock()
}

// Seek moves playback to the given frame offset.
func (p *Player) Seek(frame int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dec.Seek(frame)
}

// Length returns the stream length in frames, or 0 when unknown.
func (p *Player) Length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dec.Length()
}

// Generate pulls decoded samples and mixes them into out. Decoding happens
// on the processing thread; the decoder buffers are reused across periods.
func (p *Player) Generate(out []float32, channels int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PlayerPlaying {
		return
	}

	if cap(p.readBuf) < len(out) {
		p.readBuf = make([]float32, len(out))
	}
	buf := p.readBuf[:len(out)]

	filled := 0
	rewound := false
	for filled < len(buf) {
		n, err := p.dec.Decode(buf[filled:])
		filled += n
		if n > 0 {
			rewound = false
		}
		if err == nil && n > 0 {
			continue
		}
		if errors.Is(err, io.EOF) || n == 0 {
			// One rewind attempt per stall, so an empty looping stream
			// cannot spin the real-time thread.
			if p.looping && !rewound {
				if seekErr := p.dec.Seek(0); seekErr == nil {
					rewound = true
					continue
				}
			}
			p.state = PlayerStopped
			if p.onEnd != nil {
				go p.onEnd()
			}
			break
		}
		p.state = PlayerStopped
		break
	}

	mixAdd(out, buf[:filled])
}

// Dispose stops playback, closes the decoder and tears down the node.
func (p *Player) Dispose() {
	p.mu.Lock()
	p.state = PlayerStopped
	dec := p.dec
	p.mu.Unlock()

	if dec != nil {
		dec.Close()
	}
	p.Node.Dispose()
}
