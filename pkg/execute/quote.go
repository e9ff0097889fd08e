// pkg/execute/quote.go

package execute

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s quoted for bash. Strings that cannot be quoted (they
// contain a NUL byte) come back with %q quoting so logs still show them.
func Quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return q
}

// CommandString renders a command line that could be pasted into a shell.
func CommandString(command string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, Quote(command))
	for _, a := range args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}
