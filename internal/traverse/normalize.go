package traverse

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTarget turns an extracted descriptor into a vertex key.
// Path-query prefixes ("$.") and spaces are stripped and the result is NFC
// normalized, so visually identical descriptors share one vertex.
func NormalizeTarget(raw string) string {
	s := strings.ReplaceAll(raw, "$.", "")
	s = strings.ReplaceAll(s, " ", "")
	return norm.NFC.String(s)
}
