// Package audio is the playback backend: samples are decoded with beep and
// each prepared source owns one float32 player on the shared ebiten context.
package audio

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"

	"github.com/mhcoelhosilva/mpc-cli/internal/voice"
)

const (
	DefaultSampleRate = 48000
	DefaultBufferSize = 20 * time.Millisecond
	DefaultQuality    = 4
)

type Options struct {
	SampleRate int
	BufferSize time.Duration
	// Quality is the beep resampler quality, 1 to 64.
	Quality int
	Logger  *log.Logger
}

// Context implements voice.Backend.
type Context struct {
	ctx        *ebitaudio.Context
	sampleRate int
	bufferSize time.Duration
	quality    int
	logger     *log.Logger
}

func NewContext(opts Options) (*Context, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx, err := sharedAudioContext(opts.SampleRate)
	if err != nil {
		return nil, errors.Wrap(err, "audio context")
	}
	opts.Logger.Debug("audio context ready", "rate", opts.SampleRate, "buffer", opts.BufferSize, "quality", opts.Quality)
	return &Context{
		ctx:        ctx,
		sampleRate: opts.SampleRate,
		bufferSize: opts.BufferSize,
		quality:    clampQuality(opts.Quality),
		logger:     opts.Logger,
	}, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }

// Prepare decodes path fully and opens its output stream. Starting the
// returned source never touches the file system.
func (c *Context) Prepare(path string, volume float64, obs voice.Observer) (voice.Source, error) {
	buf, err := Decode(path, beep.SampleRate(c.sampleRate), c.quality)
	if err != nil {
		return nil, err
	}
	src := newSource(buf, volume, c.quality, obs)
	pl, err := newPlayer(c.ctx, src, c.bufferSize)
	if err != nil {
		return nil, err
	}
	src.player = pl
	pl.Play()
	c.logger.Debug("sample decoded", "path", path, "frames", buf.Len(),
		"duration", beep.SampleRate(c.sampleRate).D(buf.Len()))
	return src, nil
}
