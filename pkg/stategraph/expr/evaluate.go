package expr

import (
	"strings"
)

// BinaryOp is a function that compares two values and returns a boolean result.
type BinaryOp func(left, right any) bool

// Evaluator evaluates boolean expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary operator.
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates a boolean expression against the provided variables.
// Pass a run's State directly as vars to route on it.
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	return e.evaluateCondition(expr, vars)
}

// Eval is a convenience function that evaluates an expression using
// the default evaluator (no custom operators).
func Eval(expr string, vars map[string]any) (bool, error) {
	return New().Evaluate(expr, vars)
}

// logical operators, loosest binding first. Splitting on the loosest
// operator first gives the conventional precedence: or < and < not.
var orOps = []string{" || ", " or "}
var andOps = []string{" && ", " and "}

// evaluateCondition evaluates a condition expression.
// Supports: ==, !=, <, >, <=, >=, contains, and/&&, or/||, not/!
func (e *Evaluator) evaluateCondition(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}

	// Handle OR (lowest precedence, split on first occurrence)
	for _, op := range orOps {
		if parts := strings.SplitN(expr, op, 2); len(parts) == 2 {
			left, errL := e.evaluateCondition(parts[0], vars)
			if errL != nil {
				return false, errL
			}
			right, errR := e.evaluateCondition(parts[1], vars)
			if errR != nil {
				return false, errR
			}
			return left || right, nil
		}
	}

	// Handle AND
	for _, op := range andOps {
		if parts := strings.SplitN(expr, op, 2); len(parts) == 2 {
			left, errL := e.evaluateCondition(parts[0], vars)
			if errL != nil {
				return false, errL
			}
			right, errR := e.evaluateCondition(parts[1], vars)
			if errR != nil {
				return false, errR
			}
			return left && right, nil
		}
	}

	// Handle negation with "not " prefix
	if strings.HasPrefix(expr, "not ") {
		inner := strings.TrimPrefix(expr, "not ")
		result, err := e.evaluateCondition(strings.TrimSpace(inner), vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	// Handle negation with "!" prefix ("!=" never reaches here as a prefix)
	if strings.HasPrefix(expr, "!") {
		inner := strings.TrimPrefix(expr, "!")
		result, err := e.evaluateCondition(strings.TrimSpace(inner), vars)
		if err != nil {
			return false, err
		}
		return !result, nil
	}

	// Define built-in operators in order (longer operators first to avoid partial matches)
	builtinOps := []struct {
		op      string
		compare BinaryOp
	}{
		{"==", compareEquals},
		{"!=", compareNotEquals},
		{">=", compareGTE},
		{"<=", compareLTE},
		{">", compareGT},
		{"<", compareLT},
		{" contains ", compareContains},
	}

	// Try built-in operators
	for _, op := range builtinOps {
		if parts := strings.SplitN(expr, op.op, 2); len(parts) == 2 {
			left := Resolve(strings.TrimSpace(parts[0]), vars)
			right := Resolve(strings.TrimSpace(parts[1]), vars)
			return op.compare(left, right), nil
		}
	}

	// Try custom operators (wrap with spaces for word boundaries)
	for name, fn := range e.customOps {
		opPattern := " " + name + " "
		if parts := strings.SplitN(expr, opPattern, 2); len(parts) == 2 {
			left := Resolve(strings.TrimSpace(parts[0]), vars)
			right := Resolve(strings.TrimSpace(parts[1]), vars)
			return fn(left, right), nil
		}
	}

	// Single value: literals evaluate for truthiness, identifiers look up
	// the variable. An identifier missing from vars is false, so routing
	// rules can reference keys a run may not have set yet.
	if val, isLiteral := literal(expr); isLiteral {
		return IsTruthy(val), nil
	}
	val, ok := vars[expr]
	if !ok {
		return false, nil
	}
	return IsTruthy(val), nil
}
