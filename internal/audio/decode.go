package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decode reads the whole file at path into memory at the given rate.
// The decoder is chosen by file extension.
func Decode(path string, rate beep.SampleRate, quality int) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sample")
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(clampQuality(quality), format.SampleRate, rate, streamer)
	}

	bufFormat := format
	bufFormat.SampleRate = rate
	buf := beep.NewBuffer(bufFormat)
	buf.Append(s)
	if err := streamer.Err(); err != nil {
		return nil, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return buf, nil
}

// clampQuality keeps the resampler quality inside the range beep accepts.
func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 64 {
		return 64
	}
	return q
}
