// Package mpccli is a keyboard-driven sampler: keys trigger pre-loaded
// samples, shift+key plays one sample chromatically across the piano row,
// and a loop recorder replays what was played.
package mpccli

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhcoelhosilva/mpc-cli/internal/config"
	"github.com/mhcoelhosilva/mpc-cli/internal/processor"
	"github.com/mhcoelhosilva/mpc-cli/internal/sequencer"
	"github.com/mhcoelhosilva/mpc-cli/internal/voice"
)

// EventKind tags values delivered on the Watch channel.
type EventKind int

const (
	// EventSequencerTrigger is a recorded point fired during loop playback.
	EventSequencerTrigger EventKind = iota
	// EventVoiceComplete is a voice reaching the end of its sample. Err is set
	// when the backend failed mid-playback.
	EventVoiceComplete
)

func (k EventKind) String() string {
	switch k {
	case EventSequencerTrigger:
		return "sequencer-trigger"
	case EventVoiceComplete:
		return "voice-complete"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind  EventKind
	Key   rune
	Pitch float64
	Err   error
}

const watchBuffer = 64

type Option func(*engineConfig)

type engineConfig struct {
	logger      *log.Logger
	clock       sequencer.Clock
	amplitude   processor.AmplitudeFunc
	stopTimeout time.Duration
}

func WithLogger(logger *log.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

// WithClock replaces the wall clock used for recording and loop playback.
func WithClock(clock sequencer.Clock) Option {
	return func(cfg *engineConfig) {
		cfg.clock = clock
	}
}

// WithAmplitudeObserver receives per-buffer levels for every sample.
// The callback runs on audio goroutines; keep work brief and non-blocking.
func WithAmplitudeObserver(fn func(key rune, level float64)) Option {
	return func(cfg *engineConfig) {
		cfg.amplitude = fn
	}
}

func WithStopTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.stopTimeout = d
	}
}

// Engine wires the voice registry, the loop sequencer and pitch-mode state
// behind a single key handler.
type Engine struct {
	logger *log.Logger
	proc   *processor.Processor
	seq    *sequencer.Sequencer

	mu        sync.Mutex
	pitchMode bool
	pitchKey  rune
	octave    int

	eventCh   chan Event
	eventChMu sync.Mutex
	closeOnce sync.Once
}

func New(backend voice.Backend, opts ...Option) *Engine {
	cfg := engineConfig{
		logger:      log.Default(),
		stopTimeout: voice.DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}

	e := &Engine{logger: cfg.logger}
	e.proc = processor.New(backend,
		processor.WithLogger(cfg.logger),
		processor.WithStopTimeout(cfg.stopTimeout),
		processor.WithCompletionCallback(func(key rune, err error) {
			e.sendEvent(Event{Kind: EventVoiceComplete, Key: key, Err: err})
		}),
	)
	if cfg.amplitude != nil {
		e.proc.SetAmplitudeCallback(cfg.amplitude)
	}
	e.seq = sequencer.NewWithOptions(sequencer.Options{
		Clock:     cfg.clock,
		Logger:    cfg.logger,
		OnTrigger: e.onSequencerTrigger,
	})
	return e
}

func (e *Engine) onSequencerTrigger(key rune, pitch float64) {
	err := e.proc.Trigger(key, pitch)
	e.sendEvent(Event{Kind: EventSequencerTrigger, Key: key, Pitch: pitch, Err: err})
}

// RegisterSamples binds each sample to its key and returns how many
// registered. A failing sample leaves only its own key unbound.
func (e *Engine) RegisterSamples(samples []config.Sample) int {
	n := 0
	for _, s := range samples {
		if err := e.proc.Register(s.Key, s.Path, s.Volume); err != nil {
			continue
		}
		n++
	}
	e.logger.Info("samples registered", "ok", n, "total", len(samples))
	return n
}

// Trigger plays key at semitones and records it when recording.
func (e *Engine) Trigger(key rune, semitones float64) error {
	err := e.proc.Trigger(key, semitones)
	e.seq.RecordKey(key, semitones)
	return err
}

// SetAmplitudeObserver replaces the amplitude listener. Pass nil to detach.
func (e *Engine) SetAmplitudeObserver(fn func(key rune, level float64)) {
	e.proc.SetAmplitudeCallback(fn)
}

// Status is a display snapshot. Keys lists the registered trigger keys.
type Status struct {
	Recording bool
	Playing   bool
	PitchMode bool
	PitchKey  rune
	Octave    int
	Keys      []rune
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		PitchMode: e.pitchMode,
		PitchKey:  e.pitchKey,
		Octave:    e.octave,
	}
	e.mu.Unlock()
	st.Recording = e.seq.IsRecording()
	st.Playing = e.seq.IsPlaying()
	st.Keys = e.proc.Keys()
	return st
}

// Points returns the recorded loop and its length.
func (e *Engine) Points() ([]sequencer.Point, time.Duration) {
	return e.seq.Points(), e.seq.Length()
}

// Run drives loop playback every tickInterval until ctx is done.
func (e *Engine) Run(ctx context.Context, tickInterval time.Duration) {
	e.seq.Run(ctx, tickInterval)
}

// Watch returns a channel that receives sequencer triggers and voice
// completions. Events are dropped when the channel is full. Only the most
// recent Watch channel receives events.
func (e *Engine) Watch() <-chan Event {
	ch := make(chan Event, watchBuffer)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

func (e *Engine) sendEvent(ev Event) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Close halts loop playback and releases every voice. Triggers after Close
// report processor.ErrClosed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.seq.IsPlaying() {
			e.seq.TogglePlaying()
		}
		e.proc.Close()
		e.logger.Info("engine closed")
	})
}
