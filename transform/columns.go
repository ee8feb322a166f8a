package transform

import (
	"regexp"
	"strings"
)

var surroundingQuotes = regexp.MustCompile(`^['"]|['"]$`)

// NormalizeColumnName maps a provider column label to the canonical warehouse
// name: trimmed, surrounding quotes removed, upper-cased, spaces as underscores.
// "Adj Close" becomes "ADJ_CLOSE".
func NormalizeColumnName(label string) string {
	name := strings.TrimSpace(label)
	name = surroundingQuotes.ReplaceAllString(name, "")
	name = strings.ToUpper(name)
	return strings.ReplaceAll(name, " ", "_")
}
