package config

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidRuntime = errors.New("invalid runtime setting")

// Runtime holds the engine and output settings.
type Runtime struct {
	SampleRate      int
	BufferSize      time.Duration
	TickInterval    time.Duration
	RefreshInterval time.Duration
	StopTimeout     time.Duration
	Quality         int
	LogLevel        string
}

func DefaultRuntime() Runtime {
	return Runtime{
		SampleRate:      48000,
		BufferSize:      20 * time.Millisecond,
		TickInterval:    time.Millisecond,
		RefreshInterval: 16 * time.Millisecond,
		StopTimeout:     time.Second,
		Quality:         4,
		LogLevel:        "info",
	}
}

// ApplyEnv overrides settings from MPC_* variables. lookup is usually
// os.LookupEnv.
func (r *Runtime) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MPC_SAMPLE_RATE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidRuntime, "MPC_SAMPLE_RATE=%q", v)
		}
		r.SampleRate = n
	}
	if v, ok := lookup("MPC_BUFFER_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidRuntime, "MPC_BUFFER_MS=%q", v)
		}
		r.BufferSize = time.Duration(n) * time.Millisecond
	}
	if v, ok := lookup("MPC_TICK_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidRuntime, "MPC_TICK_MS=%q", v)
		}
		r.TickInterval = time.Duration(n) * time.Millisecond
	}
	if v, ok := lookup("MPC_LOG_LEVEL"); ok && v != "" {
		r.LogLevel = v
	}
	return r.Validate()
}

func (r Runtime) Validate() error {
	switch {
	case r.SampleRate < 8000 || r.SampleRate > 192000:
		return errors.Wrapf(ErrInvalidRuntime, "sample rate %d", r.SampleRate)
	case r.BufferSize <= 0:
		return errors.Wrapf(ErrInvalidRuntime, "buffer size %v", r.BufferSize)
	case r.TickInterval <= 0:
		return errors.Wrapf(ErrInvalidRuntime, "tick interval %v", r.TickInterval)
	case r.RefreshInterval <= 0:
		return errors.Wrapf(ErrInvalidRuntime, "refresh interval %v", r.RefreshInterval)
	case r.StopTimeout <= 0:
		return errors.Wrapf(ErrInvalidRuntime, "stop timeout %v", r.StopTimeout)
	case r.Quality < 1 || r.Quality > 64:
		return errors.Wrapf(ErrInvalidRuntime, "resample quality %d", r.Quality)
	}
	return nil
}
