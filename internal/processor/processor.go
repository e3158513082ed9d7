// Package processor maps trigger keys to sample voices.
package processor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/mhcoelhosilva/mpc-cli/internal/voice"
)

var (
	ErrUnknownKey = errors.New("no sample registered for key")
	ErrClosed     = errors.New("processor closed")
)

// AmplitudeFunc receives per-buffer RMS levels tagged with their key.
// It runs on audio backend goroutines; keep it short and non-blocking.
type AmplitudeFunc func(key rune, level float64)

type Option func(*Processor)

func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStopTimeout bounds each voice's teardown on Close.
func WithStopTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.stopTimeout = d
	}
}

// WithCompletionCallback is installed on every voice registered afterwards.
func WithCompletionCallback(cb func(key rune, err error)) Option {
	return func(p *Processor) {
		p.onComplete = cb
	}
}

// Processor owns one voice per key. A single lock serializes registration,
// lookup, and the pitch-then-start pair of every trigger.
type Processor struct {
	backend     voice.Backend
	logger      *log.Logger
	stopTimeout time.Duration
	onComplete  func(key rune, err error)

	mu        sync.Mutex
	voices    map[rune]*voice.Voice
	amplitude atomic.Pointer[AmplitudeFunc]
	closed    bool
}

func New(backend voice.Backend, opts ...Option) *Processor {
	p := &Processor{
		backend:     backend,
		logger:      log.Default(),
		stopTimeout: voice.DefaultStopTimeout,
		voices:      make(map[rune]*voice.Voice),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register prepares a voice for key. On failure the error is logged, the key
// stays unbound and the error is returned; other keys are untouched.
// Re-registering a key replaces its voice.
func (p *Processor) Register(key rune, path string, volume float64) error {
	v := voice.New(p.backend, path, volume,
		voice.WithLogger(p.logger),
		voice.WithStopTimeout(p.stopTimeout),
	)
	// Preparation decodes the whole file, so it runs outside the lock.
	if err := v.Prepare(); err != nil {
		p.logger.Error("failed to register sample", "key", string(key), "path", path, "err", err)
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		v.Stop()
		return ErrClosed
	}
	if p.amplitude.Load() != nil {
		v.SetAmplitudeCallback(p.forward(key))
	}
	if p.onComplete != nil {
		cb := p.onComplete
		v.SetCompletionCallback(func(err error) { cb(key, err) })
	}
	old := p.voices[key]
	p.voices[key] = v
	p.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	p.logger.Info("registered sample", "key", string(key), "path", path, "volume", v.Volume())
	return nil
}

// Trigger sets the voice pitch and (re)starts it. Unregistered keys return
// ErrUnknownKey and are otherwise ignored.
func (p *Processor) Trigger(key rune, semitones float64) error {
	err := p.trigger(key, semitones)
	switch {
	case err == nil, errors.Is(err, ErrClosed):
	case errors.Is(err, ErrUnknownKey):
		p.logger.Debug("no sample registered", "key", string(key))
	default:
		p.logger.Warn("failed to play sample", "key", string(key), "err", err)
	}
	return err
}

func (p *Processor) trigger(key rune, semitones float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	v, ok := p.voices[key]
	if !ok {
		return errors.Wrapf(ErrUnknownKey, "%q", key)
	}
	v.SetPitch(semitones)
	return v.Start()
}

// Play triggers key at its unshifted pitch.
func (p *Processor) Play(key rune) error {
	return p.Trigger(key, 0)
}

// SetAmplitudeCallback forwards amplitude from every current and future
// voice as (key, level). Pass nil to detach.
func (p *Processor) SetAmplitudeCallback(cb AmplitudeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb == nil {
		p.amplitude.Store(nil)
	} else {
		p.amplitude.Store(&cb)
	}
	for key, v := range p.voices {
		if cb == nil {
			v.SetAmplitudeCallback(nil)
			continue
		}
		v.SetAmplitudeCallback(p.forward(key))
	}
}

// forward loads the callback at call time so audio goroutines never wait
// on the registry lock.
func (p *Processor) forward(key rune) func(float64) {
	return func(level float64) {
		if cb := p.amplitude.Load(); cb != nil {
			(*cb)(key, level)
		}
	}
}

// Keys returns the registered keys in ascending order.
func (p *Processor) Keys() []rune {
	p.mu.Lock()
	keys := make([]rune, 0, len(p.voices))
	for k := range p.voices {
		keys = append(keys, k)
	}
	p.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.voices)
}

func (p *Processor) IsPlaying(key rune) bool {
	p.mu.Lock()
	v, ok := p.voices[key]
	p.mu.Unlock()
	return ok && v.State() == voice.Playing
}

// Close stops every voice. Voices are detached under the lock and stopped
// without it, so completion callbacks re-entering the processor cannot
// deadlock against teardown.
func (p *Processor) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	voices := p.voices
	p.voices = make(map[rune]*voice.Voice)
	p.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
}
