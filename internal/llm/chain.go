// ABOUTME: Ordered model fallback chain walked iteratively with a depth guard
// ABOUTME: Waits with jittered exponential backoff before each fallback step
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harper/bookbuddy/internal/util"
)

// MaxChainDepth bounds how many models a single call may try
const MaxChainDepth = 5

var (
	// ErrNoModels is returned when a chain has nothing to try
	ErrNoModels = errors.New("no models configured")
	// ErrChainExhausted wraps the per-model errors once every model has failed
	ErrChainExhausted = errors.New("all models failed")
)

// ModelChain is an ordered list of model identifiers, primary first
type ModelChain struct {
	Models    []string
	BaseDelay time.Duration
}

// NewModelChain creates a chain, dropping empty and duplicate entries
func NewModelChain(models []string, baseDelay time.Duration) ModelChain {
	seen := make(map[string]bool, len(models))
	var clean []string
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		clean = append(clean, m)
	}
	return ModelChain{Models: clean, BaseDelay: baseDelay}
}

// Primary returns the first model, or "" for an empty chain
func (c ModelChain) Primary() string {
	if len(c.Models) == 0 {
		return ""
	}
	return c.Models[0]
}

// Walk calls fn with each model in order until one succeeds.
// At most MaxChainDepth models are tried.
func (c ModelChain) Walk(ctx context.Context, fn func(ctx context.Context, model string) error) error {
	if len(c.Models) == 0 {
		return ErrNoModels
	}

	depth := min(len(c.Models), MaxChainDepth)
	var errs []error
	for step := 0; step < depth; step++ {
		if step > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(c.BaseDelay, step)); err != nil {
				return err
			}
		}

		model := c.Models[step]
		err := fn(ctx, model)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", model, err))

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %w", ErrChainExhausted, errors.Join(errs...))
}
