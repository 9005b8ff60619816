// Package device wraps the host's power and screen controls.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Hooks are the device calls the board makes around its refresh loop.
// Errors are informational; the board runs without them.
type Hooks interface {
	PreventSleep(ctx context.Context) error
	AllowSleep(ctx context.Context) error
	FullRefresh(ctx context.Context) error
}

// Runner executes a command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Kindle drives the screensaver and e-ink controller through lipc and eips
type Kindle struct {
	run Runner
}

type KindleOption func(*Kindle)

// WithRunner replaces command execution
func WithRunner(run Runner) KindleOption {
	return func(k *Kindle) {
		if run != nil {
			k.run = run
		}
	}
}

func NewKindle(opts ...KindleOption) *Kindle {
	k := &Kindle{run: execRunner}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kindle) PreventSleep(ctx context.Context) error {
	return k.exec(ctx, "lipc-set-prop", "com.lab126.powerd", "preventScreenSaver", "1")
}

func (k *Kindle) AllowSleep(ctx context.Context) error {
	return k.exec(ctx, "lipc-set-prop", "com.lab126.powerd", "preventScreenSaver", "0")
}

// FullRefresh flashes the whole panel to clear ghosting
func (k *Kindle) FullRefresh(ctx context.Context) error {
	return k.exec(ctx, "eips", "-f")
}

func (k *Kindle) exec(ctx context.Context, name string, args ...string) error {
	out, err := k.run(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	slog.Debug("Device command ran", "command", name, "args", args)
	return nil
}

// Noop is used on hosts without device controls
type Noop struct{}

func (Noop) PreventSleep(context.Context) error { return nil }
func (Noop) AllowSleep(context.Context) error   { return nil }
func (Noop) FullRefresh(context.Context) error  { return nil }

// New returns the hooks for kind: "kindle" or anything else for Noop
func New(kind string) Hooks {
	if strings.EqualFold(kind, "kindle") {
		return NewKindle()
	}
	return Noop{}
}
