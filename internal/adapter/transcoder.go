package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mmcdole/starlight/internal/domain"
)

// Transcoder converts sound containers with external programs.
type Transcoder struct {
	chains [][]step // candidate chains, first runnable wins
	logger *slog.Logger

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// step is one external program invocation. {src} and {dst} in args are
// replaced by the step's input and output.
type step struct {
	command string
	args    []string
	ext     string // output extension when the step is not the last one
}

// chains registry - decoders tried in order when no command is configured
var defaultChains = [][]step{
	{
		{command: "vgmstream-cli", args: []string{"-o", "{dst}", "{src}"}, ext: ".wav"},
		{command: "ffmpeg", args: []string{"-y", "-loglevel", "error", "-i", "{src}", "-b:a", "128k", "{dst}"}},
	},
	{
		{command: "ffmpeg", args: []string{"-y", "-loglevel", "error", "-i", "{src}", "-b:a", "128k", "{dst}"}},
	},
}

// NewTranscoder creates a transcoder. A configured command replaces the
// built-in chains.
func NewTranscoder(cfg TranscodeConfig, logger *slog.Logger) *Transcoder {
	if logger == nil {
		logger = slog.Default()
	}
	chains := defaultChains
	if cfg.Command != "" {
		args := cfg.Args
		if len(args) == 0 {
			args = []string{"{src}", "{dst}"}
		}
		chains = [][]step{{{command: cfg.Command, args: args}}}
	}
	return &Transcoder{
		chains:   chains,
		logger:   logger,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// chain returns the first candidate chain whose programs are all installed.
func (t *Transcoder) chain() ([]step, error) {
	for _, c := range t.chains {
		ok := true
		for _, s := range c {
			if _, err := t.lookPath(s.command); err != nil {
				t.logger.Debug("transcoder not available", "command", s.command, "error", err)
				ok = false
				break
			}
		}
		if ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no transcoder installed", domain.ErrTranscodeFailed)
}

// Transcode converts src into dst, reporting one progress tick per step.
func (t *Transcoder) Transcode(ctx context.Context, src, dst string, onProgress domain.TranscodeFunc) (string, error) {
	steps, err := t.chain()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := filepath.Base(dst)
	report := func(done int) {
		if onProgress != nil {
			onProgress(domain.TranscodeProgress{
				Current:  done,
				Total:    len(steps),
				Progress: 100 * float64(done) / float64(len(steps)),
				Name:     name,
			})
		}
	}
	report(0)

	var temps []string
	defer func() {
		for _, p := range temps {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				t.logger.Warn("failed to remove intermediate file", "path", p, "error", err)
			}
		}
	}()

	in := src
	for i, s := range steps {
		out := dst
		if i < len(steps)-1 {
			out = strings.TrimSuffix(dst, filepath.Ext(dst)) + s.ext
			temps = append(temps, out)
		}
		args := expandArgs(s.args, in, out)
		t.logger.Info("transcoding", "command", s.command, "args", args)
		if err := t.run(ctx, s.command, args...); err != nil {
			t.discard(dst)
			return "", fmt.Errorf("%w: %v", domain.ErrTranscodeFailed, err)
		}
		in = out
		report(i + 1)
	}
	return dst, nil
}

// discard removes a partial output so a later run does not take it for a
// finished file.
func (t *Transcoder) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("failed to remove partial output", "path", path, "error", err)
	}
}

func expandArgs(args []string, src, dst string) []string {
	out := make([]string, len(args))
	r := strings.NewReplacer("{src}", src, "{dst}", dst)
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

var _ domain.Transcoder = (*Transcoder)(nil)
