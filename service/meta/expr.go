package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// expandEnvExpr replaces ${env.KEY} with the value of KEY and ${env.KEY:-fallback}
// with fallback when KEY is unset or empty. Malformed expressions are kept verbatim.
func expandEnvExpr(value string) string {
	return expand(value, os.LookupEnv)
}

func expand(value string, lookup func(string) (string, bool)) string {
	if !strings.Contains(value, envPrefix) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for {
		start := strings.Index(value, envPrefix)
		if start < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:start])
		rest := value[start+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[start:])
			return b.String()
		}
		key, fallback, hasFallback := strings.Cut(rest[:end], ":-")
		if !isEnvKey(key) {
			b.WriteString(envPrefix)
			value = rest
			continue
		}
		v, ok := lookup(key)
		if (!ok || v == "") && hasFallback {
			v = fallback
		}
		b.WriteString(v)
		value = rest[end+1:]
	}
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
