package config

import (
	"os"
	"regexp"
)

// Environment reference patterns: ${VAR} and $VAR.
var (
	bracePattern  = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)(?:\b|$)`)
)

// ExpandEnv replaces ${VAR} and $VAR references in s with the values of
// the named environment variables. References to unset variables are
// left unchanged. Braced references expand first, so ${HOST}NAME reads
// the HOST variable while $HOSTNAME reads HOSTNAME.
func ExpandEnv(s string) string {
	return expand(s, os.LookupEnv)
}

func expand(s string, lookup func(string) (string, bool)) string {
	s = bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
	return dollarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1:]
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
}
