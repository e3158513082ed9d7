package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

func quietLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf), &buf
}

func TestParseSkipsInvalidEntries(t *testing.T) {
	const doc = `
samples:
  kick:
    path: samples/kick.wav
    key: q
    volume: 0.9
    midi_note: 36
  snare:
    path: /abs/snare.wav
    key: W
  nopath:
    key: e
  nokey:
    path: x.wav
  long:
    path: long.wav
    key: ab
  reserved:
    path: r.wav
    key: "1"
  badnote:
    path: n.wav
    key: n
    midi_note: 200
  loud:
    path: l.wav
    key: l
    volume: loud
`
	logger, logs := quietLogger()
	got, err := Parse([]byte(doc), "/cfg", logger)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("samples = %+v, want 2", got)
	}
	kick, snare := got[0], got[1]
	if kick.Name != "kick" || kick.Key != 'q' || kick.Path != filepath.Join("/cfg", "samples/kick.wav") {
		t.Fatalf("kick = %+v", kick)
	}
	if kick.Volume != 0.9 || kick.MIDINote != 36 {
		t.Fatalf("kick volume/note = %v/%d", kick.Volume, kick.MIDINote)
	}
	if snare.Key != 'w' || snare.Path != "/abs/snare.wav" || snare.Volume != 1 || snare.MIDINote != NoMIDINote {
		t.Fatalf("snare = %+v", snare)
	}
	if n := bytes.Count(logs.Bytes(), []byte("skipping sample")); n != 6 {
		t.Fatalf("warnings = %d, want 6\n%s", n, logs.String())
	}
}

func TestParseClampsVolume(t *testing.T) {
	logger, _ := quietLogger()
	got, err := Parse([]byte("samples:\n  a: {path: a.wav, key: a, volume: 3}\n  b: {path: b.wav, key: b, volume: -1}\n"), "", logger)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got[0].Volume != 1 || got[1].Volume != 0 {
		t.Fatalf("volumes = %v, %v", got[0].Volume, got[1].Volume)
	}
	if got[0].Path != "a.wav" {
		t.Fatalf("path = %q, want unchanged without base dir", got[0].Path)
	}
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	logger, _ := quietLogger()
	got, err := Parse([]byte("samples:\n  a: {path: a.wav, key: q}\n  b: {path: b.wav, key: Q}\n"), "", logger)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("samples = %+v, want only a", got)
	}
}

func TestParseMissingSamplesSection(t *testing.T) {
	logger, _ := quietLogger()
	if _, err := Parse([]byte("other: 1\n"), "", logger); !errors.Is(err, ErrNoSamples) {
		t.Fatalf("err = %v, want ErrNoSamples", err)
	}
	if _, err := Parse([]byte("samples: [unclosed"), "", logger); err == nil {
		t.Fatalf("malformed yaml parsed")
	}
}

func TestLoadResolvesRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.yaml")
	if err := os.WriteFile(path, []byte("samples:\n  hat: {path: hat.wav, key: h}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Path != filepath.Join(dir, "hat.wav") {
		t.Fatalf("samples = %+v", got)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml"), nil); err == nil {
		t.Fatalf("load of missing file succeeded")
	}
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestRuntimeDefaults(t *testing.T) {
	r := DefaultRuntime()
	if err := r.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if r.SampleRate != 48000 || r.TickInterval != time.Millisecond || r.StopTimeout != time.Second {
		t.Fatalf("defaults = %+v", r)
	}
}

func TestRuntimeApplyEnv(t *testing.T) {
	r := DefaultRuntime()
	err := r.ApplyEnv(envMap(map[string]string{
		"MPC_SAMPLE_RATE": "44100",
		"MPC_BUFFER_MS":   "40",
		"MPC_TICK_MS":     "2",
		"MPC_LOG_LEVEL":   "debug",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if r.SampleRate != 44100 || r.BufferSize != 40*time.Millisecond || r.TickInterval != 2*time.Millisecond || r.LogLevel != "debug" {
		t.Fatalf("runtime = %+v", r)
	}
}

func TestRuntimeApplyEnvRejectsGarbage(t *testing.T) {
	cases := []map[string]string{
		{"MPC_SAMPLE_RATE": "fast"},
		{"MPC_SAMPLE_RATE": "10"},
		{"MPC_BUFFER_MS": "0"},
		{"MPC_TICK_MS": "-1"},
	}
	for _, env := range cases {
		r := DefaultRuntime()
		if err := r.ApplyEnv(envMap(env)); !errors.Is(err, ErrInvalidRuntime) {
			t.Fatalf("ApplyEnv(%v) err = %v, want ErrInvalidRuntime", env, err)
		}
	}
}
