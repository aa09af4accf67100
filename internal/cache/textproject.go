package cache

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/raibid-labs/scryhub/internal/domain"
)

var stripPolicy = bluemonday.StrictPolicy()

// PlainTextProjection reduces an item's content to the text the FTS5 index
// stores: Markdown is rendered to HTML via goldmark and then stripped,
// HTML/email bodies are stripped directly, everything else uses the
// content's own PlainText.
func PlainTextProjection(c domain.ItemContent) string {
	switch v := c.(type) {
	case domain.MarkdownContent:
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(v.Body), &buf); err != nil {
			return v.Body
		}
		return strings.TrimSpace(stripPolicy.Sanitize(buf.String()))
	case domain.HTMLContent:
		return strings.TrimSpace(stripPolicy.Sanitize(v.Body))
	case domain.EmailContent:
		if v.BodyHTML != nil && (v.BodyText == nil || *v.BodyText == "") {
			return strings.TrimSpace(stripPolicy.Sanitize(*v.BodyHTML))
		}
		return c.PlainText()
	default:
		return c.PlainText()
	}
}
