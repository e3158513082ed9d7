// Package tui is the interactive terminal front end: it renders one level
// bar per sample plus transport and pitch-mode status, and feeds key presses
// to the engine.
package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	mpccli "github.com/mhcoelhosilva/mpc-cli"
	"github.com/mhcoelhosilva/mpc-cli/internal/config"
	"github.com/mhcoelhosilva/mpc-cli/internal/keymap"
)

const (
	barWidth    = 40
	decayFactor = 0.95
)

// Controller is the part of the engine the UI drives.
type Controller interface {
	HandleKey(key rune, shift bool) mpccli.Action
	Status() mpccli.Status
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle   = lipgloss.NewStyle().Bold(true)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	recStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	playStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	pitchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

type Model struct {
	ctrl     Controller
	meter    *Meter
	names    map[rune]string
	refresh  time.Duration
	quitting bool
}

func NewModel(ctrl Controller, meter *Meter, samples []config.Sample, refresh time.Duration) Model {
	names := make(map[rune]string, len(samples))
	for _, s := range samples {
		names[s.Key] = s.Name
	}
	if refresh <= 0 {
		refresh = 16 * time.Millisecond
	}
	return Model{ctrl: ctrl, meter: meter, names: names, refresh: refresh}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.ctrl.HandleKey(keymap.KeyEscape, false)
			m.quitting = true
			return m, tea.Quit
		case tea.KeySpace:
			m.ctrl.HandleKey(keymap.KeyExitPitch, false)
		case tea.KeyRunes:
			for _, r := range msg.Runes {
				if m.ctrl.HandleKey(unicode.ToLower(r), unicode.IsUpper(r)) == mpccli.ActionQuit {
					m.quitting = true
					return m, tea.Quit
				}
			}
		}

	case tickMsg:
		m.meter.Decay(decayFactor)
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.ctrl.Status()

	var b strings.Builder
	b.WriteString(titleStyle.Render("MPC-CLI"))
	b.WriteString("\n\n")
	for _, key := range st.Keys {
		b.WriteString(m.row(key, m.meter.Level(key)))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(transportLine(st))
	b.WriteByte('\n')
	b.WriteString(pitchLine(st))
	b.WriteByte('\n')
	if st.PitchMode {
		b.WriteString(dimStyle.Render("space: exit pitch mode  esc: quit"))
	} else {
		b.WriteString(dimStyle.Render("esc: quit"))
	}
	b.WriteByte('\n')
	return b.String()
}

func (m Model) row(key rune, level float64) string {
	filled := int(level * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	name := m.names[key]
	if len(name) > 12 {
		name = name[:12]
	}
	bar := barStyle.Render(strings.Repeat("█", filled)) + emptyStyle.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%s %-12s [%s] %3d%%", keyStyle.Render("["+string(key)+"]"), name, bar, int(level*100))
}

func transportLine(st mpccli.Status) string {
	switch {
	case st.Recording:
		return recStyle.Render("[● REC]") + " 1: stop recording"
	case st.Playing:
		return playStyle.Render("[▶ PLAY]") + " 2: stop"
	default:
		return dimStyle.Render("1: record  2: play")
	}
}

func pitchLine(st mpccli.Status) string {
	if !st.PitchMode {
		return dimStyle.Render("shift+key: pitch mode")
	}
	return pitchStyle.Render(fmt.Sprintf("[♪ PITCH %c | octave %+d]", st.PitchKey, st.Octave/12)) +
		"  awsedftgyhujk: notes  z/x: octave"
}
