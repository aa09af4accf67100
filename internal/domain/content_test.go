package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentVariantsRoundTripThroughItemJSON(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loc := "Room 2"
	body := "hi"

	cases := []ItemContent{
		TextContent{Body: "plain"},
		MarkdownContent{Body: "# heading"},
		HTMLContent{Body: "<p>hi</p>"},
		EmailContent{Subject: "hello", Snippet: "hi"},
		ArticleContent{Summary: &body},
		VideoContent{Description: &body},
		TrackContent{Artists: []string{"A", "B"}},
		TaskContent{Completed: true},
		EventContent{Start: start, End: end, IsAllDay: false, Location: &loc},
		BookmarkContent{Note: &body},
		GenericContent{Body: &body},
	}

	for _, c := range cases {
		item := Item{ID: "p:1", StreamID: "p:feed:x", Title: "t", Content: c}
		raw, err := json.Marshal(item)
		require.NoError(t, err, "%T", c)

		var got Item
		require.NoError(t, json.Unmarshal(raw, &got), "%T", c)
		assert.Equal(t, c.Kind(), got.Content.Kind(), "%T", c)
		assert.Equal(t, c, got.Content, "%T must round-trip byte-for-byte through the JSON envelope", c)
	}
}

func TestEventContentPreservesTimeRangeAndAllDayFlag(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	c := EventContent{Start: start, End: end, IsAllDay: true}

	item := Item{ID: "cal:1", StreamID: "cal:feed:x", Title: "offsite", Content: c}
	raw, err := json.Marshal(item)
	require.NoError(t, err)

	var got Item
	require.NoError(t, json.Unmarshal(raw, &got))
	ev, ok := got.Content.(EventContent)
	require.True(t, ok)
	assert.True(t, ev.Start.Equal(start))
	assert.True(t, ev.End.Equal(end))
	assert.True(t, ev.IsAllDay)
}

func TestDecodeContentRejectsUnknownKind(t *testing.T) {
	_, err := decodeContent(contentEnvelope{Kind: "not-a-real-kind", Value: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestEncodeContentRejectsNil(t *testing.T) {
	_, err := encodeContent(nil)
	assert.Error(t, err)
}
