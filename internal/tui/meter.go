package tui

import "sync"

// Meter holds the latest amplitude per key. Set is called from audio
// goroutines; keep it minimal.
type Meter struct {
	mu     sync.Mutex
	levels map[rune]float64
}

func NewMeter() *Meter {
	return &Meter{levels: make(map[rune]float64)}
}

// Set records the newest level for key, clamped to [0,1].
func (m *Meter) Set(key rune, level float64) {
	if level < 0 || level != level {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	m.mu.Lock()
	m.levels[key] = level
	m.mu.Unlock()
}

func (m *Meter) Level(key rune) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[key]
}

// Decay scales every level by factor so bars fall between updates.
func (m *Meter) Decay(factor float64) {
	m.mu.Lock()
	for k, v := range m.levels {
		v *= factor
		if v < 1e-4 {
			v = 0
		}
		m.levels[k] = v
	}
	m.mu.Unlock()
}
