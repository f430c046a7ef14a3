package retry

import (
	"context"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// Node wraps a node function with retry.
// Transient failures (per cfg.RetryableFunc, defaulting to IsRetryable)
// are retried inside the node's single engine step: the run sees one node
// execution and one state merge no matter how many attempts ran.
//
// The node's context spans all attempts, so a node timeout configured on
// the engine bounds the whole retry loop, not each attempt.
//
// Example:
//
//	g.AddNode("fetch", retry.Node(retry.Default, fetchFn))
func Node(cfg Config, fn stategraph.NodeFunc) stategraph.NodeFunc {
	return func(ctx stategraph.Context, state stategraph.State) (stategraph.PartialState, error) {
		result := DoContext(ctx, cfg, func(context.Context) (stategraph.PartialState, error) {
			return fn(ctx, state)
		})
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Value, nil
	}
}
