package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemContent is the tagged union of content an Item can carry. It is the Go
// analogue of the original Rust `ItemContent` enum: a sealed set of kinds,
// each exposing enough to render a list row and to build a plain-text
// projection for full-text indexing.
type ItemContent interface {
	Kind() string
	PlainText() string
}

type contentEnvelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func encodeContent(c ItemContent) (contentEnvelope, error) {
	if c == nil {
		return contentEnvelope{}, fmt.Errorf("nil item content")
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return contentEnvelope{}, err
	}
	return contentEnvelope{Kind: c.Kind(), Value: raw}, nil
}

func decodeContent(env contentEnvelope) (ItemContent, error) {
	switch env.Kind {
	case "text":
		var v TextContent
		return v, json.Unmarshal(env.Value, &v)
	case "markdown":
		var v MarkdownContent
		return v, json.Unmarshal(env.Value, &v)
	case "html":
		var v HTMLContent
		return v, json.Unmarshal(env.Value, &v)
	case "email":
		var v EmailContent
		return v, json.Unmarshal(env.Value, &v)
	case "article":
		var v ArticleContent
		return v, json.Unmarshal(env.Value, &v)
	case "video":
		var v VideoContent
		return v, json.Unmarshal(env.Value, &v)
	case "track":
		var v TrackContent
		return v, json.Unmarshal(env.Value, &v)
	case "task":
		var v TaskContent
		return v, json.Unmarshal(env.Value, &v)
	case "event":
		var v EventContent
		return v, json.Unmarshal(env.Value, &v)
	case "bookmark":
		var v BookmarkContent
		return v, json.Unmarshal(env.Value, &v)
	case "generic":
		var v GenericContent
		return v, json.Unmarshal(env.Value, &v)
	default:
		return nil, fmt.Errorf("unknown item content kind %q", env.Kind)
	}
}

// TextContent is plain-text body content.
type TextContent struct {
	Body string `json:"body"`
}

func (c TextContent) Kind() string      { return "text" }
func (c TextContent) PlainText() string { return c.Body }

// MarkdownContent is Markdown-formatted body content. Its plain-text
// projection strips formatting via goldmark for FTS indexing (see
// internal/cache/textproject.go) rather than here, so PlainText returns the raw
// source — callers that need stripped text use cache.PlainTextProjection.
type MarkdownContent struct {
	Body string `json:"body"`
}

func (c MarkdownContent) Kind() string      { return "markdown" }
func (c MarkdownContent) PlainText() string { return c.Body }

// HTMLContent is raw HTML body content (sanitized before display/indexing).
type HTMLContent struct {
	Body string `json:"body"`
}

func (c HTMLContent) Kind() string      { return "html" }
func (c HTMLContent) PlainText() string { return c.Body }

// EmailContent mirrors a single email message.
type EmailContent struct {
	Subject  string  `json:"subject"`
	BodyText *string `json:"body_text,omitempty"`
	BodyHTML *string `json:"body_html,omitempty"`
	Snippet  string  `json:"snippet"`
}

func (c EmailContent) Kind() string { return "email" }
func (c EmailContent) PlainText() string {
	if c.BodyText != nil {
		return *c.BodyText
	}
	return c.Snippet
}

// ArticleContent is a web article or long-form post.
type ArticleContent struct {
	Summary     *string `json:"summary,omitempty"`
	FullContent *string `json:"full_content,omitempty"`
}

func (c ArticleContent) Kind() string { return "article" }
func (c ArticleContent) PlainText() string {
	if c.FullContent != nil {
		return *c.FullContent
	}
	if c.Summary != nil {
		return *c.Summary
	}
	return ""
}

// VideoContent describes a video item.
type VideoContent struct {
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	ViewCount       *uint64 `json:"view_count,omitempty"`
	Description     *string `json:"description,omitempty"`
}

func (c VideoContent) Kind() string { return "video" }
func (c VideoContent) PlainText() string {
	if c.Description != nil {
		return *c.Description
	}
	return ""
}

// TrackContent describes a music track.
type TrackContent struct {
	Album      *string  `json:"album,omitempty"`
	DurationMS *int     `json:"duration_ms,omitempty"`
	Artists    []string `json:"artists,omitempty"`
}

func (c TrackContent) Kind() string      { return "track" }
func (c TrackContent) PlainText() string { return "" }

// TaskContent describes a to-do/task item.
type TaskContent struct {
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	DueDate     *string `json:"due_date,omitempty"`
}

func (c TaskContent) Kind() string { return "task" }
func (c TaskContent) PlainText() string {
	if c.Description != nil {
		return *c.Description
	}
	return ""
}

// EventContent describes a calendar event. Start, End, and IsAllDay are
// mandatory per the event's wire contract; Location and Description are not.
type EventContent struct {
	Description *string   `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    *string   `json:"location,omitempty"`
	IsAllDay    bool      `json:"is_all_day"`
}

func (c EventContent) Kind() string { return "event" }
func (c EventContent) PlainText() string {
	if c.Description != nil {
		return *c.Description
	}
	return ""
}

// BookmarkContent is a saved link with an optional note.
type BookmarkContent struct {
	Note *string `json:"note,omitempty"`
}

func (c BookmarkContent) Kind() string { return "bookmark" }
func (c BookmarkContent) PlainText() string {
	if c.Note != nil {
		return *c.Note
	}
	return ""
}

// GenericContent is the fallback for content that does not fit another kind.
type GenericContent struct {
	Body *string `json:"body,omitempty"`
}

func (c GenericContent) Kind() string { return "generic" }
func (c GenericContent) PlainText() string {
	if c.Body != nil {
		return *c.Body
	}
	return ""
}
