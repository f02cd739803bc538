package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// Expand replaces ${env.NAME} with the value of NAME; unset variables
// expand to "".  Malformed expressions are kept literally.
func Expand(text string) string {
	var sb strings.Builder
	for {
		before, after, found := strings.Cut(text, envPrefix)
		sb.WriteString(before)
		if !found {
			return sb.String()
		}
		name, rest, closed := strings.Cut(after, "}")
		if !closed || !isName(name) {
			sb.WriteString(envPrefix)
			text = after
			continue
		}
		sb.WriteString(os.Getenv(name))
		text = rest
	}
}

func isName(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
