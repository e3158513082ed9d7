// Package sequencer records timed sample triggers and replays them as a loop.
//
// Times are kept as float64 seconds relative to the recording start. During
// playback the loop position is the elapsed time modulo the sequence length,
// and a single cursor walks the sorted points, resetting when the position
// wraps.
package sequencer

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTickInterval is the driver period used by Run when none is given.
const DefaultTickInterval = time.Millisecond

// startPosition sits just below zero so a point recorded at t=0 passes the
// first tick's <= check and a position of exactly 0 is not read as a wrap.
const startPosition = -0.001

// Point is one recorded trigger.
type Point struct {
	Key   rune
	Time  float64 // seconds from recording start
	Pitch float64 // semitones
}

// TriggerFunc is called for every point that comes due during playback.
type TriggerFunc func(key rune, pitch float64)

type Options struct {
	Clock     Clock
	OnTrigger TriggerFunc
	Logger    *log.Logger
}

type Sequencer struct {
	clock     Clock
	onTrigger TriggerFunc
	logger    *log.Logger

	recording atomic.Bool
	playing   atomic.Bool

	mu          sync.Mutex
	points      []Point
	length      float64
	recordStart time.Time
	playStart   time.Time
	index       int
	prevPos     float64
}

func New(onTrigger TriggerFunc) *Sequencer {
	return NewWithOptions(Options{OnTrigger: onTrigger})
}

func NewWithOptions(opts Options) *Sequencer {
	s := &Sequencer{
		clock:     opts.Clock,
		onTrigger: opts.OnTrigger,
		logger:    opts.Logger,
		prevPos:   startPosition,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// ToggleRecording starts a fresh recording, or finishes the current one:
// the length is fixed, points are sorted, and playback restarts from the top.
func (s *Sequencer) ToggleRecording() {
	now := s.clock.Now()

	s.mu.Lock()
	if s.recording.Load() {
		s.length = now.Sub(s.recordStart).Seconds()
		s.recording.Store(false)
		sort.SliceStable(s.points, func(i, j int) bool {
			return s.points[i].Time < s.points[j].Time
		})
		n, length := len(s.points), s.length
		s.startPlaybackLocked(now)
		s.mu.Unlock()
		s.logger.Info("recording stopped", "points", n, "length", time.Duration(length*float64(time.Second)))
		return
	}
	s.recordStart = now
	s.length = 0
	s.points = nil
	s.recording.Store(true)
	s.mu.Unlock()
	s.logger.Info("recording started")
}

// RecordKey appends a point while recording and does nothing otherwise.
func (s *Sequencer) RecordKey(key rune, pitch float64) {
	if !s.recording.Load() {
		return
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording.Load() {
		return
	}
	s.points = append(s.points, Point{
		Key:   key,
		Time:  now.Sub(s.recordStart).Seconds(),
		Pitch: pitch,
	})
}

// TogglePlaying starts playback from the top or stops it. Stopping keeps the
// recorded sequence.
func (s *Sequencer) TogglePlaying() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing.Load() {
		s.index = 0
		s.prevPos = startPosition
		s.playing.Store(false)
		return
	}
	s.startPlaybackLocked(now)
}

func (s *Sequencer) startPlaybackLocked(now time.Time) {
	s.playStart = now
	s.index = 0
	s.prevPos = startPosition
	s.playing.Store(true)
}

// Tick fires every point whose time has been reached since the previous
// tick. It is a no-op unless playing a non-empty sequence of positive length.
// Callbacks run after the lock is released, in non-decreasing time order.
func (s *Sequencer) Tick() {
	if !s.playing.Load() {
		return
	}
	now := s.clock.Now()

	s.mu.Lock()
	if !s.playing.Load() || len(s.points) == 0 || s.length <= 0 {
		s.mu.Unlock()
		return
	}

	elapsed := now.Sub(s.playStart).Seconds()
	pos := math.Mod(elapsed, s.length)

	if pos < s.prevPos {
		// wrapped
		s.index = 0
	}
	var due []Point
	for s.index < len(s.points) && s.points[s.index].Time <= pos {
		due = append(due, s.points[s.index])
		s.index++
	}
	s.prevPos = pos
	s.mu.Unlock()

	for _, pt := range due {
		s.fire(pt)
	}
}

func (s *Sequencer) fire(pt Point) {
	if s.onTrigger == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("trigger callback panicked", "key", string(pt.Key), "pitch", pt.Pitch, "panic", r)
		}
	}()
	s.onTrigger(pt.Key, pt.Pitch)
}

// Run calls Tick every interval until ctx is done.
func (s *Sequencer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Sequencer) IsRecording() bool { return s.recording.Load() }
func (s *Sequencer) IsPlaying() bool   { return s.playing.Load() }

// Points returns a copy of the recorded sequence.
func (s *Sequencer) Points() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Length is the duration of the last completed recording.
func (s *Sequencer) Length() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.length * float64(time.Second))
}
