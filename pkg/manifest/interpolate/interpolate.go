// Package interpolate substitutes environment variables into manifest text.
//
// Supported forms:
//
//	$VAR            value of VAR, or "" when unset
//	${VAR}          same
//	${VAR:-default} default when VAR is unset or empty
//	${VAR-default}  default when VAR is unset
//	$$              a literal "$"
//
// Any other use of "$" is an INVALID_INTERPOLATION error.
package interpolate

import (
	"regexp"
	"strings"

	"github.com/matzehuels/gilt/pkg/errors"
)

// LookupFunc returns the value of a variable and whether it is set.
// os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

var placeholder = regexp.MustCompile(`(?i)\$(?:(\$)|([_a-z][_a-z0-9]*)|\{([_a-z][_a-z0-9]*(?::?-[^}]*)?)\}|())`)

// Interpolate expands placeholders in s using lookup.
func Interpolate(s string, lookup LookupFunc) (string, error) {
	var b strings.Builder
	last := 0

	for _, m := range placeholder.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0:
			v, _ := lookup(s[m[4]:m[5]])
			b.WriteString(v)
		case m[6] >= 0:
			b.WriteString(expandBraced(s[m[6]:m[7]], lookup))
		default:
			line, col := position(s, m[0])
			return "", errors.New(errors.ErrCodeInvalidInterpolation,
				"invalid placeholder at line %d, col %d", line, col)
		}
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// expandBraced expands the inside of ${...}.
func expandBraced(expr string, lookup LookupFunc) string {
	if name, def, ok := strings.Cut(expr, ":-"); ok {
		if v, set := lookup(name); set && v != "" {
			return v
		}
		return def
	}
	if name, def, ok := strings.Cut(expr, "-"); ok {
		if v, set := lookup(name); set {
			return v
		}
		return def
	}
	v, _ := lookup(expr)
	return v
}

// position returns the 1-based line and column of byte offset i.
func position(s string, i int) (line, col int) {
	before := s[:i]
	line = strings.Count(before, "\n") + 1
	col = i - strings.LastIndex(before, "\n")
	return line, col
}
