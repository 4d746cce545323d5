package speech

import (
	"context"
	"errors"
	"testing"
	"time"
)

type startCall struct {
	path string
	args []string
}

func newTestCommand(installed map[string]bool) (*Command, *[]startCall) {
	calls := &[]startCall{}
	c := NewCommand("")
	c.lookPath = func(name string) (string, error) {
		if installed[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	c.start = func(_ context.Context, path string, args ...string) (func() error, error) {
		*calls = append(*calls, startCall{path: path, args: args})
		return func() error { return nil }, nil
	}
	return c, calls
}

func TestSpeakUnavailable(t *testing.T) {
	c, calls := newTestCommand(nil)
	err := c.Speak(context.Background(), "hello", "en-US")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("nothing should start, got %v", *calls)
	}
	if c.Available() {
		t.Fatal("expected Available() false")
	}
}

func TestSpeakUsesFirstInstalledEngine(t *testing.T) {
	c, calls := newTestCommand(map[string]bool{"espeak": true})
	if err := c.Speak(context.Background(), "Good morning", ""); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one start, got %d", len(*calls))
	}
	call := (*calls)[0]
	if call.path != "/usr/bin/espeak" {
		t.Fatalf("unexpected engine %s", call.path)
	}
	want := []string{"-v", "en-us", "--", "Good morning"}
	if len(call.args) != len(want) {
		t.Fatalf("args = %q, want %q", call.args, want)
	}
	for i, arg := range want {
		if call.args[i] != arg {
			t.Fatalf("arg %d: got %q want %q", i, call.args[i], arg)
		}
	}
}

func TestSpeakPrefersConfiguredBinary(t *testing.T) {
	c, calls := newTestCommand(map[string]bool{"mytts": true, "espeak-ng": true})
	c.candidates = append([]string{"mytts"}, c.candidates...)
	if err := c.Speak(context.Background(), "hi", "fr_FR"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	call := (*calls)[0]
	if call.path != "/usr/bin/mytts" || call.args[1] != "fr-fr" {
		t.Fatalf("unexpected call %+v", call)
	}
}

func TestSpeakBlankTextIsNoop(t *testing.T) {
	c, calls := newTestCommand(nil)
	if err := c.Speak(context.Background(), "  ", "en-US"); err != nil {
		t.Fatalf("blank text should not error, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatal("blank text should not start playback")
	}
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	c := NewCommand("").WithTimeout(0)
	if c.timeout != time.Minute {
		t.Fatalf("timeout = %v", c.timeout)
	}
	c.WithTimeout(5 * time.Second)
	if c.timeout != 5*time.Second {
		t.Fatalf("timeout = %v", c.timeout)
	}
}

func TestSpeakTextIsNeverAnOption(t *testing.T) {
	c, calls := newTestCommand(map[string]bool{"espeak-ng": true})
	text := "-w/tmp/clobbered"
	if err := c.Speak(context.Background(), text, "en-US"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	args := (*calls)[0].args
	end := -1
	for i, arg := range args {
		if arg == "--" {
			end = i
			break
		}
	}
	if end < 0 {
		t.Fatalf("no end-of-options marker in %q", args)
	}
	if len(args) != end+2 || args[end+1] != text {
		t.Fatalf("text must be the only argument after --, got %q", args)
	}
	for _, arg := range args[:end] {
		if arg == text {
			t.Fatalf("text passed before --: %q", args)
		}
	}
}
