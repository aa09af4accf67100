package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raibid-labs/scryhub/internal/domain"
)

func TestPlainTextProjectionStripsMarkdown(t *testing.T) {
	got := PlainTextProjection(domain.MarkdownContent{Body: "# Title\n\nSome **bold** text."})
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "bold")
}

func TestPlainTextProjectionStripsHTML(t *testing.T) {
	got := PlainTextProjection(domain.HTMLContent{Body: "<p>Hello <b>world</b></p>"})
	assert.NotContains(t, got, "<")
	assert.Contains(t, got, "Hello")
	assert.Contains(t, got, "world")
}

func TestPlainTextProjectionPrefersEmailBodyText(t *testing.T) {
	text := "plain body"
	html := "<p>rich body</p>"
	got := PlainTextProjection(domain.EmailContent{BodyText: &text, BodyHTML: &html})
	assert.Equal(t, text, got)
}

func TestPlainTextProjectionFallsBackToPlainTextForOtherKinds(t *testing.T) {
	got := PlainTextProjection(domain.TextContent{Body: "already plain"})
	assert.Equal(t, "already plain", got)
}
