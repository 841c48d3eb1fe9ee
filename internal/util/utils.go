package util

import (
	"bytes"
	"fmt"
	"strings"
)

// SourceContext formats the lines around errLine for a parse error
// report: up to two preceding lines for context, then the offending line
// marked with an arrow. Returns "" when errLine is out of range.
func SourceContext(src string, errLine int) string {
	lines := strings.Split(strings.TrimSuffix(src, "\n"), "\n")
	if errLine < 1 || errLine > len(lines) {
		return ""
	}

	start := errLine - 2
	if start < 1 {
		start = 1
	}

	var out bytes.Buffer
	for i := start; i <= errLine; i++ {
		if i == errLine {
			fmt.Fprintf(&out, "  >  %3d | %s\n", i, lines[i-1])
		} else {
			fmt.Fprintf(&out, "     %3d | %s\n", i, lines[i-1])
		}
	}
	return out.String()
}

// ErrorLine extracts the leading "line N:" position from a parse error
// message, or 0 when the message carries none.
func ErrorLine(msg string) int {
	var line int
	if _, err := fmt.Sscanf(msg, "line %d:", &line); err != nil {
		return 0
	}
	return line
}
