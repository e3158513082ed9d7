package mpccli

import (
	"github.com/mhcoelhosilva/mpc-cli/internal/keymap"
)

// Action reports what HandleKey did with a key.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionTrigger
	ActionToggleRecording
	ActionTogglePlaying
	ActionEnterPitchMode
	ActionExitPitchMode
	ActionOctave
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionQuit:
		return "quit"
	case ActionTrigger:
		return "trigger"
	case ActionToggleRecording:
		return "toggle-recording"
	case ActionTogglePlaying:
		return "toggle-playing"
	case ActionEnterPitchMode:
		return "enter-pitch-mode"
	case ActionExitPitchMode:
		return "exit-pitch-mode"
	case ActionOctave:
		return "octave"
	default:
		return "unknown"
	}
}

// HandleKey dispatches one key press. Calls are expected from a single input
// goroutine; the status it changes may be read concurrently via Status.
//
// In pitch mode the piano row plays the pitch-mode sample at
// offset+octave semitones and z/x shift the octave. The transport keys 1 and
// 2 work in both modes.
func (e *Engine) HandleKey(key rune, shift bool) Action {
	switch {
	case key == keymap.KeyEscape:
		return ActionQuit
	case key == keymap.KeyExitPitch:
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.pitchMode {
			return ActionNone
		}
		e.pitchMode = false
		e.logger.Debug("pitch mode off", "key", string(e.pitchKey))
		return ActionExitPitchMode
	case shift:
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.pitchMode {
			return ActionNone
		}
		e.pitchMode = true
		e.pitchKey = key
		e.octave = 0
		e.logger.Debug("pitch mode on", "key", string(key))
		return ActionEnterPitchMode
	case key == keymap.KeyRecord:
		e.seq.ToggleRecording()
		return ActionToggleRecording
	case key == keymap.KeyPlay:
		e.seq.TogglePlaying()
		return ActionTogglePlaying
	}

	e.mu.Lock()
	if !e.pitchMode {
		e.mu.Unlock()
		e.seq.RecordKey(key, 0)
		if err := e.proc.Trigger(key, 0); err != nil {
			return ActionNone
		}
		return ActionTrigger
	}

	switch key {
	case keymap.KeyOctaveDown:
		e.octave -= 12
		e.mu.Unlock()
		return ActionOctave
	case keymap.KeyOctaveUp:
		e.octave += 12
		e.mu.Unlock()
		return ActionOctave
	}
	offset := keymap.PitchOffset(key)
	if offset == keymap.NoPitch {
		e.mu.Unlock()
		return ActionNone
	}
	target, semitones := e.pitchKey, float64(offset+e.octave)
	e.mu.Unlock()

	err := e.proc.Trigger(target, semitones)
	e.seq.RecordKey(target, semitones)
	if err != nil {
		return ActionNone
	}
	return ActionTrigger
}
