// Package fallback implements the shared "attempt tiers in order, first
// success wins" cascade used by catalog acquisition and access resolution.
package fallback

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Tier is one ordered acquisition strategy.
type Tier[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain runs tiers in order and returns the first successful value along
// with the winning tier's name. Failures are logged and swallowed; only if
// every tier fails does Chain return an error.
func Chain[T any](ctx context.Context, logger *log.Logger, tiers ...Tier[T]) (T, string, error) {
	var zero T
	for _, tier := range tiers {
		v, err := tier.Run(ctx)
		if err == nil {
			return v, tier.Name, nil
		}
		if logger != nil {
			logger.Warn("tier failed", "tier", tier.Name, "err", err)
		}
	}
	return zero, "", fmt.Errorf("all %d tiers failed", len(tiers))
}
