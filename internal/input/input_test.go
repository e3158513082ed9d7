package input

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mhcoelhosilva/mpc-cli/internal/keymap"
)

type keyEvent struct {
	key   rune
	shift bool
}

func collect(t *testing.T, in string) []keyEvent {
	t.Helper()
	var got []keyEvent
	err := ReadKeys(context.Background(), strings.NewReader(in), func(key rune, shift bool) bool {
		got = append(got, keyEvent{key, shift})
		return true
	})
	if err != nil {
		t.Fatalf("read keys: %v", err)
	}
	return got
}

func TestReadKeysDecodesShiftAndControls(t *testing.T) {
	got := collect(t, "qQ1 \x1b\x03\n2")
	want := []keyEvent{
		{'q', false},
		{'q', true},
		{'1', false},
		{keymap.KeyExitPitch, false},
		{keymap.KeyEscape, false},
		{keymap.KeyEscape, false},
		{'2', false},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReadKeysSkipsEscapeSequences(t *testing.T) {
	got := collect(t, "a\x1b[Ab\x1bOPc")
	if len(got) != 3 || got[0].key != 'a' || got[1].key != 'b' || got[2].key != 'c' {
		t.Fatalf("events = %v, want a b c", got)
	}
}

func TestReadKeysStopsWhenHandlerDeclines(t *testing.T) {
	var n int
	err := ReadKeys(context.Background(), strings.NewReader("abcdef"), func(rune, bool) bool {
		n++
		return n < 2
	})
	if err != nil {
		t.Fatalf("read keys: %v", err)
	}
	if n != 2 {
		t.Fatalf("handled %d keys, want 2", n)
	}
}

func TestReadKeysReturnsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ReadKeys(ctx, pr, func(rune, bool) bool { return true })
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ReadKeys did not return after cancel")
	}
}

func TestReadKeysSurfacesReadErrors(t *testing.T) {
	pr, pw := io.Pipe()
	_ = pw.CloseWithError(io.ErrClosedPipe)
	if err := ReadKeys(context.Background(), pr, func(rune, bool) bool { return true }); err == nil {
		t.Fatalf("read error swallowed")
	}
}
