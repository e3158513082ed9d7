// Package input decodes raw terminal bytes into sampler key events for
// headless operation.
package input

import (
	"bufio"
	"context"
	"io"
	"unicode"

	"github.com/pkg/errors"

	"github.com/mhcoelhosilva/mpc-cli/internal/keymap"
)

const ctrlC = 3

// HandleFunc receives one key event and returns false to stop reading.
type HandleFunc func(key rune, shift bool) bool

// ReadKeys feeds key events from r to handle until handle returns false, r is
// exhausted, or ctx is done. Uppercase letters arrive as their lowercase key
// with shift set, space releases pitch mode, and Ctrl-C is read as Esc.
// Terminal escape sequences such as arrow keys are dropped.
func ReadKeys(ctx context.Context, r io.Reader, handle HandleFunc) error {
	type event struct {
		key   rune
		shift bool
		err   error
	}
	events := make(chan event)
	done := make(chan struct{})
	defer close(done)

	go func() {
		br := bufio.NewReader(r)
		for {
			key, shift, err := next(br)
			select {
			case events <- event{key, shift, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.err != nil {
				if errors.Is(ev.err, io.EOF) {
					return nil
				}
				return errors.Wrap(ev.err, "read keys")
			}
			if !handle(ev.key, ev.shift) {
				return nil
			}
		}
	}
}

func next(br *bufio.Reader) (rune, bool, error) {
	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			return 0, false, err
		}
		switch {
		case ch == ctrlC:
			return keymap.KeyEscape, false, nil
		case ch == keymap.KeyEscape:
			if skipSequence(br) {
				continue
			}
			return keymap.KeyEscape, false, nil
		case ch == ' ':
			return keymap.KeyExitPitch, false, nil
		case unicode.IsUpper(ch):
			return unicode.ToLower(ch), true, nil
		case ch == '\r' || ch == '\n' || ch == '\t':
			continue
		case unicode.IsPrint(ch):
			return ch, false, nil
		}
	}
}

// skipSequence consumes a CSI or SS3 sequence already waiting in the buffer
// and reports whether one was found.
func skipSequence(br *bufio.Reader) bool {
	if br.Buffered() == 0 {
		return false
	}
	b, err := br.Peek(1)
	if err != nil || (b[0] != '[' && b[0] != 'O') {
		return false
	}
	_, _ = br.ReadByte()
	for br.Buffered() > 0 {
		c, err := br.ReadByte()
		if err != nil || (c >= 0x40 && c <= 0x7e) {
			break
		}
	}
	return true
}
