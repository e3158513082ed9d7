// Package midiin turns note-on messages from a MIDI port into sample triggers.
package midiin

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/mhcoelhosilva/mpc-cli/internal/config"
)

// TriggerFunc plays the sample bound to key at the given pitch.
type TriggerFunc func(key rune, semitones float64) error

type Listener struct {
	notes   map[uint8]rune
	trigger TriggerFunc
	logger  *log.Logger

	mu   sync.Mutex
	stop func()
}

// New maps every sample with a MIDI note to its trigger key.
func New(samples []config.Sample, trigger TriggerFunc, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.Default()
	}
	notes := make(map[uint8]rune)
	for _, s := range samples {
		if s.MIDINote == config.NoMIDINote {
			continue
		}
		notes[uint8(s.MIDINote)] = s.Key
	}
	return &Listener{notes: notes, trigger: trigger, logger: logger}
}

// Len is the number of mapped notes.
func (l *Listener) Len() int { return len(l.notes) }

// Handle triggers the key mapped to a note-on message. Note-on with zero
// velocity is a note-off and is ignored, like every other message type.
func (l *Listener) Handle(msg gomidi.Message) bool {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return false
	}
	key, ok := l.notes[note]
	if !ok {
		l.logger.Debug("unmapped midi note", "note", note, "channel", channel)
		return false
	}
	if err := l.trigger(key, 0); err != nil {
		l.logger.Debug("midi trigger failed", "note", note, "key", string(key), "err", err)
		return false
	}
	return true
}

// Open starts listening on the input port whose name matches portName.
func (l *Listener) Open(portName string) error {
	in, err := gomidi.FindInPort(portName)
	if err != nil {
		return errors.Wrapf(err, "midi input %q", portName)
	}
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		l.Handle(msg)
	})
	if err != nil {
		return errors.Wrapf(err, "listen to %q", in.String())
	}

	l.mu.Lock()
	prev := l.stop
	l.stop = stop
	l.mu.Unlock()
	if prev != nil {
		prev()
	}
	l.logger.Info("midi input open", "port", in.String(), "notes", len(l.notes))
	return nil
}

// Close stops listening. It is safe to call without Open.
func (l *Listener) Close() {
	l.mu.Lock()
	stop := l.stop
	l.stop = nil
	l.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Ports lists the available MIDI input port names.
func Ports() []string {
	var names []string
	for _, in := range gomidi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}
