package expr

import (
	"fmt"
	"strings"
)

// Compare applies one comparison operator to two already-resolved values.
// It is the one-shot form of what Evaluate does after parsing; use it when
// the operator arrives separately from the operands (e.g. structured rule
// definitions). Returns an error for unknown operators.
func Compare(left, right any, op string) (bool, error) {
	switch op {
	case "==":
		return compareEquals(left, right), nil
	case "!=":
		return compareNotEquals(left, right), nil
	case "<":
		return compareLT(left, right), nil
	case ">":
		return compareGT(left, right), nil
	case "<=":
		return compareLTE(left, right), nil
	case ">=":
		return compareGTE(left, right), nil
	case "contains":
		return compareContains(left, right), nil
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// Equality is string-based so numbers that arrive as float64 from a JSON
// round-trip still compare equal to their integer literals.
func compareEquals(left, right any) bool {
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func compareNotEquals(left, right any) bool {
	return fmt.Sprintf("%v", left) != fmt.Sprintf("%v", right)
}

// Ordering comparisons are numeric.

func compareLT(left, right any) bool {
	return ToFloat64(left) < ToFloat64(right)
}

func compareGT(left, right any) bool {
	return ToFloat64(left) > ToFloat64(right)
}

func compareLTE(left, right any) bool {
	return ToFloat64(left) <= ToFloat64(right)
}

func compareGTE(left, right any) bool {
	return ToFloat64(left) >= ToFloat64(right)
}

func compareContains(left, right any) bool {
	return strings.Contains(fmt.Sprintf("%v", left), fmt.Sprintf("%v", right))
}
