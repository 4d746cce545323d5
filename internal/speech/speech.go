// Package speech reads sentences aloud through a local synthesis engine.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

const DefaultLocale = "en-US"

var ErrUnavailable = errors.New("speech synthesis unavailable")

type Speaker interface {
	Speak(ctx context.Context, text, locale string) error
}

// Command speaks through an espeak-compatible binary ("<bin> -v <voice> -- <text>").
type Command struct {
	candidates []string
	timeout    time.Duration
	lookPath   func(string) (string, error)
	start      func(ctx context.Context, path string, args ...string) (func() error, error)
}

// NewCommand tries binary first, then the usual espeak names.
func NewCommand(binary string) *Command {
	candidates := []string{}
	if strings.TrimSpace(binary) != "" {
		candidates = append(candidates, binary)
	}
	candidates = append(candidates, "espeak-ng", "espeak")
	return &Command{
		candidates: candidates,
		timeout:    time.Minute,
		lookPath:   exec.LookPath,
		start:      startProcess,
	}
}

// WithTimeout caps how long a single playback may run. Non-positive values
// are ignored.
func (c *Command) WithTimeout(d time.Duration) *Command {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// Available reports whether any engine binary is installed.
func (c *Command) Available() bool {
	_, err := c.resolve()
	return err == nil
}

// Speak starts playback and returns without waiting for it to finish.
func (c *Command) Speak(_ context.Context, text, locale string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	path, err := c.resolve()
	if err != nil {
		return err
	}
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}

	// Playback outlives the request that triggered it.
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	// "--" ends option parsing; sentence text is never an engine flag.
	wait, err := c.start(ctx, path, "-v", voiceFor(locale), "--", text)
	if err != nil {
		cancel()
		return fmt.Errorf("start speech: %w", err)
	}
	go func() {
		defer cancel()
		if err := wait(); err != nil {
			log.Printf("speech: %s exited: %v", path, err)
		}
	}()
	return nil
}

func (c *Command) resolve() (string, error) {
	for _, candidate := range c.candidates {
		if path, err := c.lookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s installed", ErrUnavailable, strings.Join(c.candidates, ", "))
}

// voiceFor maps a BCP 47 locale to an espeak voice name, "en-US" -> "en-us".
func voiceFor(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

func startProcess(ctx context.Context, path string, args ...string) (func() error, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}
