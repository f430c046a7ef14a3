/*
Package expr provides boolean expression evaluation over run state.

# Overview

expr implements a small expression language for routing decisions that
are written as strings rather than Go functions, e.g. in YAML-configured
graphs. An expression is evaluated against a map of variables; a run's
State can be passed as that map directly.

# Expression Syntax

	<expr> := <comparison>
	        | <expr> 'or' <expr>   | <expr> '||' <expr>
	        | <expr> 'and' <expr>  | <expr> '&&' <expr>
	        | 'not' <expr>
	        | '!' <expr>
	        | <value>

	<comparison> := <value> <op> <value>
	<op> := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains'
	<value> := 'string' | "string" | number | true | false | null | identifier

Logical operators must be surrounded by spaces. or binds loosest, then
and, then not; a not negates everything to its right up to the next and
or or, so "not status == 'error'" reads as not(status == 'error').
There is no parenthesis grouping.

# Operators

Comparison operators:

	==         Equal (string comparison)
	!=         Not equal (string comparison)
	<          Less than (numeric comparison)
	>          Greater than (numeric comparison)
	<=         Less than or equal (numeric comparison)
	>=         Greater than or equal (numeric comparison)
	contains   String contains substring

Logical operators:

	and, &&    Logical AND
	or, ||     Logical OR
	not, !     Logical NOT (prefix)

# Value Types

Values can be:

  - Quoted strings: 'hello' or "hello"
  - Numbers: 42, 3.14, -1
  - Booleans: true, false
  - Null: null, nil
  - Variables: referenced by name from the vars map

# Examples

Routing against state:

	state := map[string]any{"status": "failed", "attempts": 3}
	expr.Eval("status == 'failed' and attempts < 5", state) // true
	expr.Eval("status == 'completed' || attempts >= 5", state) // false

Contains operator:

	message contains 'error'    // true if message contains "error"

Bare variables:

	approved                    // truthy check; false when the key is absent
	not cancelled

A bare identifier missing from the vars map evaluates to false, so a
rule can reference a key a run has not set yet. In comparisons an
unquoted identifier absent from vars resolves to its own name, which
lets `status == failed` work without quotes.

# Custom Operators

Register custom binary operators:

	e := expr.New(
	    expr.WithCustomOperator("matches", func(left, right any) bool {
	        pattern := fmt.Sprintf("%v", right)
	        value := fmt.Sprintf("%v", left)
	        matched, _ := regexp.MatchString(pattern, value)
	        return matched
	    }),
	)
	result, _ := e.Evaluate("name matches '^test.*'", vars)

# Truthiness

Single values are evaluated for truthiness:

  - nil/null: false
  - bool: the boolean value
  - string: false if empty, true otherwise
  - numbers (int, int64, float64): false if zero, true otherwise
  - other types: true
*/
package expr
