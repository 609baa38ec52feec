// Package sanitize cleans user-supplied display text. Uses bluemonday's
// strict policy to strip every HTML element, so names shown next to meeting
// minutes and in notification emails never carry markup.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict policy, initialized on first use.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all markup and control characters from input and collapses
// runs of whitespace. The result is plain text, not HTML: entities are
// decoded, so callers still escape it when rendering.
func Text(input string) string {
	if input == "" {
		return ""
	}

	stripped := html.UnescapeString(getPolicy().Sanitize(input))

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range stripped {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
