package audio

import (
	"math"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/pkg/errors"

	"github.com/mhcoelhosilva/mpc-cli/internal/voice"
)

var ErrSourceClosed = errors.New("audio source closed")

// Source plays one decoded sample. It renders silence while idle so its
// output stream can stay open between triggers.
type Source struct {
	buffer  *beep.Buffer
	quality int
	obs     voice.Observer

	mu      sync.Mutex
	rate    float64
	gain    *effects.Gain
	stream  beep.Streamer
	playing bool
	closed  bool
	frames  [][2]float64
	player  *Player
}

func newSource(buffer *beep.Buffer, volume float64, quality int, obs voice.Observer) *Source {
	return &Source{
		buffer:  buffer,
		quality: clampQuality(quality),
		obs:     obs,
		rate:    1,
		gain:    &effects.Gain{Gain: volume - 1},
	}
}

func (s *Source) SetRate(rate float64) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

// SetVolume applies immediately, including to a sample already sounding.
func (s *Source) SetVolume(level float64) {
	s.mu.Lock()
	s.gain.Gain = level - 1
	s.mu.Unlock()
}

// Start rewinds to frame zero and plays at the current rate.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	s.gain.Streamer = beep.ResampleRatio(s.quality, s.rate, s.buffer.Streamer(0, s.buffer.Len()))
	s.stream = s.gain
	s.playing = true
	return nil
}

func (s *Source) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Source) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Process implements SampleSource. Observer calls happen after the lock is
// released.
func (s *Source) Process(dst []float32) {
	clear(dst)
	n := len(dst) / 2

	s.mu.Lock()
	if !s.playing || n == 0 {
		s.mu.Unlock()
		return
	}
	if cap(s.frames) < n {
		s.frames = make([][2]float64, n)
	}
	frames := s.frames[:n]

	filled, done := 0, false
	for filled < n {
		k, ok := s.stream.Stream(frames[filled:])
		filled += k
		if !ok || k == 0 {
			done = true
			break
		}
	}
	err := s.stream.Err()
	if err != nil {
		done = true
	}

	var sum float64
	for i, f := range frames[:filled] {
		dst[2*i] = float32(f[0])
		dst[2*i+1] = float32(f[1])
		sum += f[0]*f[0] + f[1]*f[1]
	}
	if done {
		s.playing = false
		s.stream = nil
	}
	obs := s.obs
	s.mu.Unlock()

	if obs == nil {
		return
	}
	obs.OnAmplitude(math.Sqrt(sum / float64(2*n)))
	if done {
		obs.OnComplete(err)
	}
}

// Close stops output and releases the player.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.playing = false
	s.stream = nil
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player == nil {
		return nil
	}
	return player.Stop()
}
