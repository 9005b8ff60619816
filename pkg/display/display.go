// Package display draws boards.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bvgboard/pkg/metrics"
	"bvgboard/pkg/types"
)

// Renderer shows one board. Implementations must not retain the board's
// departure slice after Render returns.
type Renderer interface {
	Render(ctx context.Context, board types.Board) error
}

// Named renderers report their name in logs and metrics
type Named interface {
	Name() string
}

// Name returns r's name, or its type when it has none
func Name(r Renderer) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}

type multi []Renderer

// Multi renders to every non-nil renderer in order. A failing renderer does
// not stop the others; the errors are joined.
func Multi(renderers ...Renderer) Renderer {
	var m multi
	for _, r := range renderers {
		if r == nil {
			continue
		}
		if inner, ok := r.(multi); ok {
			m = append(m, inner...)
			continue
		}
		m = append(m, r)
	}
	return m
}

func (m multi) Render(ctx context.Context, board types.Board) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(ctx, board); err != nil {
			name := Name(r)
			slog.Warn("Renderer failed", "renderer", name, "cycle_id", board.CycleID, "error", err)
			metrics.RecordRenderError(ctx, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (m multi) Name() string {
	return "multi"
}
