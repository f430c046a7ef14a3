package stategraph

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
)

// ExprCase pairs a boolean expression with the label to return when it
// holds. See package expr for the expression syntax.
type ExprCase struct {
	// When is a boolean expression evaluated against the current state,
	// e.g. "status == 'failed' and attempts < 3".
	When string

	// Then is the label returned when the expression holds. With a label
	// map on the conditional edge it is looked up there; without one it
	// is the next node ID (or END) directly.
	Then string
}

// ExprRouter builds a RouterFunc from a list of expression cases.
// Cases are evaluated in order against the post-merge state; the first
// expression that holds wins. When none hold, the router returns
// fallback.
//
// An expression that fails to evaluate is logged and treated as a
// non-match, so a broken rule never masks the rules after it.
//
// Example:
//
//	g.AddConditionalEdge("check", stategraph.ExprRouter([]stategraph.ExprCase{
//	    {When: "status == 'failed' and attempts < 3", Then: "retry"},
//	    {When: "status == 'failed'", Then: "escalate"},
//	}, "done"), map[string]string{
//	    "retry":    "fetch",
//	    "escalate": "notify",
//	    "done":     stategraph.END,
//	})
func ExprRouter(cases []ExprCase, fallback string) RouterFunc {
	return func(ctx Context, state State) string {
		for _, c := range cases {
			ok, err := expr.Eval(c.When, state)
			if err != nil {
				ctx.Logger().Warn("routing expression failed",
					"expression", c.When,
					"error", err)
				continue
			}
			if ok {
				return c.Then
			}
		}
		return fallback
	}
}
