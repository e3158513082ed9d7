// Package voice implements a single pre-buffered, re-triggerable sample voice.
//
// A Voice owns one backend Source. The source is prepared once and stays
// ready at position zero, so Start only flips playback on. Completion and
// amplitude notifications arrive on backend goroutines through the Observer
// interface the Voice implements.
package voice

import (
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// DefaultStopTimeout bounds how long Stop waits for the backend to release.
const DefaultStopTimeout = time.Second

var (
	ErrResource    = errors.New("audio resource unavailable")
	ErrNotPrepared = errors.New("voice not prepared")
	ErrBackend     = errors.New("audio backend failure")
	ErrDestroyed   = errors.New("voice destroyed")
)

// Observer receives asynchronous notifications from a Source. Sources must
// not call it while holding their own locks.
type Observer interface {
	OnAmplitude(level float64)
	OnComplete(err error)
}

// Source is one prepared playback path owned by the audio backend.
type Source interface {
	// SetRate sets the playback rate used by the next Start.
	SetRate(rate float64)
	SetVolume(level float64)
	// Start plays from position zero, interrupting any playback in progress.
	Start() error
	Playing() bool
	Close() error
}

// Backend builds sources for sample files.
type Backend interface {
	Prepare(path string, volume float64, obs Observer) (Source, error)
}

// State is the lifecycle position of a Voice.
type State int32

const (
	Uninitialized State = iota
	Ready
	Playing
	Failed
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Failed:
		return "failed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Rate converts a semitone offset to a playback rate multiplier.
// Pitch and tempo move together.
func Rate(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

type Option func(*Voice)

func WithLogger(logger *log.Logger) Option {
	return func(v *Voice) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func WithStopTimeout(d time.Duration) Option {
	return func(v *Voice) {
		if d > 0 {
			v.stopTimeout = d
		}
	}
}

type Voice struct {
	path        string
	backend     Backend
	logger      *log.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	source  Source
	state   State
	pitch   float64
	volume  float64
	prepErr error

	amplitude  atomic.Pointer[func(float64)]
	completion atomic.Pointer[func(error)]
}

// New returns an unprepared voice for path. Call Prepare before Start.
func New(backend Backend, path string, volume float64, opts ...Option) *Voice {
	v := &Voice{
		path:        path,
		backend:     backend,
		logger:      log.Default(),
		stopTimeout: DefaultStopTimeout,
		volume:      clamp01(volume),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Prepare builds the backend source. On failure the voice becomes Failed
// permanently and the error wraps ErrResource.
func (v *Voice) Prepare() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case Ready, Playing:
		return nil
	case Failed:
		return v.prepErr
	case Destroyed:
		return ErrDestroyed
	}

	if _, err := os.Stat(v.path); err != nil {
		v.fail(errors.Wrapf(ErrResource, "%s: %v", v.path, err))
		return v.prepErr
	}
	if v.backend == nil {
		v.fail(errors.Wrapf(ErrResource, "%s: no backend", v.path))
		return v.prepErr
	}
	src, err := v.backend.Prepare(v.path, v.volume, v)
	if err != nil {
		v.fail(errors.Wrapf(ErrResource, "%s: %v", v.path, err))
		return v.prepErr
	}
	v.source = src
	v.state = Ready
	return nil
}

func (v *Voice) fail(err error) {
	v.state = Failed
	v.prepErr = err
}

// SetPitch stores the semitone offset applied by the next Start.
func (v *Voice) SetPitch(semitones float64) {
	v.mu.Lock()
	v.pitch = semitones
	v.mu.Unlock()
}

func (v *Voice) Pitch() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pitch
}

// Rate returns the playback rate for the current pitch.
func (v *Voice) Rate() float64 {
	return Rate(v.Pitch())
}

// SetVolume clamps level to [0,1] and applies it immediately.
func (v *Voice) SetVolume(level float64) {
	level = clamp01(level)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.volume = level
	if v.source != nil {
		v.source.SetVolume(level)
	}
}

func (v *Voice) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *Voice) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Voice) Path() string { return v.path }

// Start plays the sample from the beginning at the current pitch. A voice
// that is already playing restarts; it never layers a second instance.
func (v *Voice) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != Ready && v.state != Playing {
		return errors.Wrapf(ErrNotPrepared, "%s is %s", v.path, v.state)
	}
	v.source.SetRate(Rate(v.pitch))
	if err := v.source.Start(); err != nil {
		return errors.Wrapf(ErrBackend, "start %s: %v", v.path, err)
	}
	v.state = Playing
	return nil
}

// Stop releases the backend source. It waits at most the stop timeout and
// is safe to call more than once.
func (v *Voice) Stop() {
	v.mu.Lock()
	src := v.source
	v.source = nil
	if v.state == Ready || v.state == Playing {
		v.state = Destroyed
	}
	v.mu.Unlock()

	if src == nil {
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- src.Close()
	}()
	select {
	case err := <-done:
		if err != nil {
			v.logger.Warn("voice close failed", "path", v.path, "err", err)
		}
	case <-time.After(v.stopTimeout):
		v.logger.Warn("voice close timed out, forcing teardown", "path", v.path, "timeout", v.stopTimeout)
	}
}

// SetAmplitudeCallback installs the amplitude listener. Pass nil to remove it.
func (v *Voice) SetAmplitudeCallback(cb func(level float64)) {
	if cb == nil {
		v.amplitude.Store(nil)
		return
	}
	v.amplitude.Store(&cb)
}

// SetCompletionCallback installs a listener for playback end. err is nil on
// natural completion and wraps ErrBackend on a runtime failure.
func (v *Voice) SetCompletionCallback(cb func(err error)) {
	if cb == nil {
		v.completion.Store(nil)
		return
	}
	v.completion.Store(&cb)
}

// OnAmplitude implements Observer.
func (v *Voice) OnAmplitude(level float64) {
	if cb := v.amplitude.Load(); cb != nil {
		(*cb)(clamp01(level))
	}
}

// OnComplete implements Observer. The source is already rewound, so the
// voice returns to Ready without re-preparing.
func (v *Voice) OnComplete(err error) {
	v.mu.Lock()
	if v.state == Playing && (v.source == nil || !v.source.Playing()) {
		v.state = Ready
	}
	v.mu.Unlock()

	if err != nil {
		err = errors.Wrapf(ErrBackend, "%s: %v", v.path, err)
		v.logger.Warn("playback ended with error", "path", v.path, "err", err)
	}
	if cb := v.completion.Load(); cb != nil {
		(*cb)(err)
	}
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
