package voice

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fakeSource struct {
	mu       sync.Mutex
	rate     float64
	volume   float64
	starts   int
	playing  bool
	closed   int
	closeDur time.Duration
	startErr error
}

func (s *fakeSource) SetRate(rate float64) {
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

func (s *fakeSource) SetVolume(level float64) {
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	s.playing = true
	return nil
}

func (s *fakeSource) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSource) finish() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *fakeSource) Close() error {
	if s.closeDur > 0 {
		time.Sleep(s.closeDur)
	}
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

type fakeBackend struct {
	source *fakeSource
	obs    Observer
	err    error
}

func (b *fakeBackend) Prepare(path string, volume float64, obs Observer) (Source, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.obs = obs
	b.source.volume = volume
	return b.source, nil
}

func sampleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kick.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestRate(t *testing.T) {
	cases := []struct {
		semitones float64
		want      float64
	}{
		{0, 1},
		{12, 2},
		{-12, 0.5},
		{24, 4},
		{7, math.Pow(2, 7.0/12)},
	}
	for _, tc := range cases {
		if got := Rate(tc.semitones); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("Rate(%v) = %v, want %v", tc.semitones, got, tc.want)
		}
	}
}

func TestPrepareMissingFileFails(t *testing.T) {
	b := &fakeBackend{source: &fakeSource{}}
	v := New(b, filepath.Join(t.TempDir(), "missing.wav"), 1)
	err := v.Prepare()
	if !errors.Is(err, ErrResource) {
		t.Fatalf("prepare err = %v, want ErrResource", err)
	}
	if v.State() != Failed {
		t.Fatalf("state = %v, want failed", v.State())
	}
	if err := v.Start(); !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("start err = %v, want ErrNotPrepared", err)
	}
}

func TestFailedVoiceNeverBecomesReady(t *testing.T) {
	b := &fakeBackend{source: &fakeSource{}, err: errors.New("no decoder")}
	v := New(b, sampleFile(t), 1)
	if err := v.Prepare(); !errors.Is(err, ErrResource) {
		t.Fatalf("prepare err = %v, want ErrResource", err)
	}
	b.err = nil
	if err := v.Prepare(); err == nil {
		t.Fatalf("second prepare succeeded on a failed voice")
	}
	if v.State() != Failed {
		t.Fatalf("state = %v, want failed", v.State())
	}
}

func TestStartAppliesPitchRate(t *testing.T) {
	src := &fakeSource{}
	v := New(&fakeBackend{source: src}, sampleFile(t), 0.5)
	if err := v.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if v.State() != Ready {
		t.Fatalf("state = %v, want ready", v.State())
	}
	if src.volume != 0.5 {
		t.Fatalf("initial volume = %v, want 0.5", src.volume)
	}
	v.SetPitch(12)
	if err := v.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if src.rate != 2 {
		t.Fatalf("rate = %v, want 2", src.rate)
	}
	if v.State() != Playing {
		t.Fatalf("state = %v, want playing", v.State())
	}
}

func TestRetriggerRestartsInsteadOfLayering(t *testing.T) {
	src := &fakeSource{}
	v := New(&fakeBackend{source: src}, sampleFile(t), 1)
	if err := v.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	v.SetPitch(12)
	_ = v.Start()
	v.SetPitch(-12)
	_ = v.Start()
	if src.starts != 2 {
		t.Fatalf("starts = %d, want 2", src.starts)
	}
	if src.rate != 0.5 {
		t.Fatalf("rate = %v, want 0.5", src.rate)
	}
	if v.State() != Playing {
		t.Fatalf("state = %v, want playing", v.State())
	}
}

func TestCompletionReturnsToReady(t *testing.T) {
	src := &fakeSource{}
	b := &fakeBackend{source: src}
	v := New(b, sampleFile(t), 1)
	if err := v.Prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	var got []error
	v.SetCompletionCallback(func(err error) { got = append(got, err) })

	_ = v.Start()
	src.finish()
	b.obs.OnComplete(nil)
	if v.State() != Ready {
		t.Fatalf("state after completion = %v, want ready", v.State())
	}

	_ = v.Start()
	src.finish()
	b.obs.OnComplete(errors.New("device lost"))
	if v.State() != Ready {
		t.Fatalf("state after failure = %v, want ready", v.State())
	}
	if len(got) != 2 || got[0] != nil || !errors.Is(got[1], ErrBackend) {
		t.Fatalf("completion errors = %v", got)
	}
	if err := v.Start(); err != nil {
		t.Fatalf("retrigger after completion: %v", err)
	}
}

func TestStaleCompletionKeepsPlaying(t *testing.T) {
	src := &fakeSource{}
	b := &fakeBackend{source: src}
	v := New(b, sampleFile(t), 1)
	_ = v.Prepare()
	_ = v.Start()
	// completion from an earlier run races with the restart above
	b.obs.OnComplete(nil)
	if v.State() != Playing {
		t.Fatalf("state = %v, want playing", v.State())
	}
}

func TestSetVolumeClampsAndAppliesLive(t *testing.T) {
	src := &fakeSource{}
	v := New(&fakeBackend{source: src}, sampleFile(t), 3)
	if v.Volume() != 1 {
		t.Fatalf("volume = %v, want clamp to 1", v.Volume())
	}
	_ = v.Prepare()
	v.SetVolume(-1)
	if v.Volume() != 0 || src.volume != 0 {
		t.Fatalf("volume = %v/%v, want 0", v.Volume(), src.volume)
	}
	v.SetVolume(0.25)
	if src.volume != 0.25 {
		t.Fatalf("source volume = %v, want 0.25", src.volume)
	}
}

func TestAmplitudeCallbackClamps(t *testing.T) {
	b := &fakeBackend{source: &fakeSource{}}
	v := New(b, sampleFile(t), 1)
	_ = v.Prepare()
	var levels []float64
	v.SetAmplitudeCallback(func(level float64) { levels = append(levels, level) })
	b.obs.OnAmplitude(0.3)
	b.obs.OnAmplitude(1.7)
	v.SetAmplitudeCallback(nil)
	b.obs.OnAmplitude(0.5)
	if len(levels) != 2 || levels[0] != 0.3 || levels[1] != 1 {
		t.Fatalf("levels = %v", levels)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	v := New(&fakeBackend{source: src}, sampleFile(t), 1)
	_ = v.Prepare()
	_ = v.Start()
	v.Stop()
	v.Stop()
	if src.closed != 1 {
		t.Fatalf("closed = %d, want 1", src.closed)
	}
	if v.State() != Destroyed {
		t.Fatalf("state = %v, want destroyed", v.State())
	}
	if err := v.Start(); !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("start after stop err = %v, want ErrNotPrepared", err)
	}
	if err := v.Prepare(); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("prepare after stop err = %v, want ErrDestroyed", err)
	}
}

func TestStopIsBounded(t *testing.T) {
	src := &fakeSource{closeDur: time.Second}
	v := New(&fakeBackend{source: src}, sampleFile(t), 1, WithStopTimeout(20*time.Millisecond))
	_ = v.Prepare()
	start := time.Now()
	v.Stop()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("stop blocked for %v", elapsed)
	}
}

func TestStartBackendErrorWrapped(t *testing.T) {
	src := &fakeSource{startErr: errors.New("busy")}
	v := New(&fakeBackend{source: src}, sampleFile(t), 1)
	_ = v.Prepare()
	if err := v.Start(); !errors.Is(err, ErrBackend) {
		t.Fatalf("start err = %v, want ErrBackend", err)
	}
	if v.State() != Ready {
		t.Fatalf("state = %v, want ready", v.State())
	}
}
