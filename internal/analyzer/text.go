package analyzer

import (
	"bytes"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	whitespace = regexp.MustCompile(`\s+`)

	// nonText matches elements whose content is never visible text.
	// StrictPolicy drops their tags but keeps what is inside.
	nonText = regexp.MustCompile(`(?is)<(script|style|noscript)\b[^>]*>.*?</(script|style|noscript)\s*>`)
)

// textExtractor turns markup into plain visible text.
// bluemonday policies are safe for concurrent use once built, but building
// one is not free, so they are pooled.
type textExtractor struct {
	pool sync.Pool
}

func newTextExtractor() *textExtractor {
	return &textExtractor{
		pool: sync.Pool{
			New: func() any {
				return bluemonday.StrictPolicy()
			},
		},
	}
}

// Text strips every tag from markup and collapses whitespace.
func (e *textExtractor) Text(markup []byte) string {
	policy, _ := e.pool.Get().(*bluemonday.Policy)
	defer e.pool.Put(policy)

	stripped := nonText.ReplaceAll(markup, []byte(" "))
	text := policy.SanitizeReader(bytes.NewReader(stripped)).String()
	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
