// Package config loads the sample definitions and runtime settings.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mhcoelhosilva/mpc-cli/internal/keymap"
)

var (
	ErrInvalidSample = errors.New("invalid sample definition")
	ErrNoSamples     = errors.New("config has no samples section")
)

// NoMIDINote marks a sample without a MIDI trigger.
const NoMIDINote = -1

// Sample is one validated sample definition.
type Sample struct {
	Name     string
	Key      rune
	Path     string
	Volume   float64
	MIDINote int
}

type sampleEntry struct {
	Path     string   `yaml:"path"`
	Key      string   `yaml:"key"`
	Volume   *float64 `yaml:"volume"`
	MIDINote *int     `yaml:"midi_note"`
}

type file struct {
	Samples map[string]yaml.Node `yaml:"samples"`
}

// Load reads the samples file at path. Invalid entries are logged and
// skipped; only an unreadable file or a missing samples section is an error.
func Load(path string, logger *log.Logger) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data, filepath.Dir(path), logger)
}

// Parse decodes YAML sample definitions. Relative sample paths resolve
// against baseDir. Samples are returned sorted by name.
func Parse(data []byte, baseDir string, logger *log.Logger) ([]Sample, error) {
	if logger == nil {
		logger = log.Default()
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if f.Samples == nil {
		return nil, ErrNoSamples
	}

	names := make([]string, 0, len(f.Samples))
	for name := range f.Samples {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[rune]string)
	out := make([]Sample, 0, len(names))
	for _, name := range names {
		node := f.Samples[name]
		var entry sampleEntry
		if err := node.Decode(&entry); err != nil {
			logger.Warn("skipping sample", "name", name, "err", errors.Wrap(err, "decode sample"))
			continue
		}
		s, err := validate(name, entry, baseDir)
		if err != nil {
			logger.Warn("skipping sample", "name", name, "err", err)
			continue
		}
		if prev, dup := seen[s.Key]; dup {
			logger.Warn("skipping sample", "name", name,
				"err", errors.Wrapf(ErrInvalidSample, "key %q already used by %s", s.Key, prev))
			continue
		}
		seen[s.Key] = name
		if s.Volume != clampVolume(s.Volume) {
			logger.Warn("volume out of range, clamping", "name", name, "volume", s.Volume)
			s.Volume = clampVolume(s.Volume)
		}
		out = append(out, s)
	}
	return out, nil
}

func validate(name string, e sampleEntry, baseDir string) (Sample, error) {
	if e.Path == "" {
		return Sample{}, errors.Wrap(ErrInvalidSample, "missing path")
	}
	if e.Key == "" {
		return Sample{}, errors.Wrap(ErrInvalidSample, "missing key")
	}
	if utf8.RuneCountInString(e.Key) != 1 {
		return Sample{}, errors.Wrapf(ErrInvalidSample, "key %q is not a single character", e.Key)
	}
	key, _ := utf8.DecodeRuneInString(e.Key)
	key = unicode.ToLower(key)
	if keymap.IsControl(key) {
		return Sample{}, errors.Wrapf(ErrInvalidSample, "key %q is reserved", e.Key)
	}

	s := Sample{
		Name:     name,
		Key:      key,
		Path:     e.Path,
		Volume:   1,
		MIDINote: NoMIDINote,
	}
	if !filepath.IsAbs(s.Path) && baseDir != "" {
		s.Path = filepath.Join(baseDir, s.Path)
	}
	if e.Volume != nil {
		s.Volume = *e.Volume
	}
	if e.MIDINote != nil {
		if *e.MIDINote < 0 || *e.MIDINote > 127 {
			return Sample{}, errors.Wrapf(ErrInvalidSample, "midi_note %d out of range", *e.MIDINote)
		}
		s.MIDINote = *e.MIDINote
	}
	return s, nil
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
