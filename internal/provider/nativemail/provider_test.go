package nativemail

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raibid-labs/scryhub/internal/domain"
)

func testProvider() *Provider {
	return New(Config{ProviderID: "gmail", Host: "imap.example.com", Port: 993, TLS: true, Username: "me@example.com"})
}

func TestNewAppliesDefaults(t *testing.T) {
	p := New(Config{ProviderID: "gmail", Username: "me@example.com"})
	assert.Equal(t, "INBOX", p.cfg.Mailbox)
	assert.Equal(t, 50, p.cfg.FetchLimit)
}

func TestCapabilitiesDeclaresFeedsOnly(t *testing.T) {
	p := testProvider()
	caps := p.Capabilities()
	assert.True(t, caps.HasFeeds)
	assert.False(t, caps.HasCollections)
	assert.False(t, caps.HasSavedItems)
	assert.False(t, caps.HasCommunities)
}

func TestListFeedsReturnsMailboxStream(t *testing.T) {
	p := testProvider()
	streams, err := p.ListFeeds(context.Background())
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "INBOX", streams[0].Name)
	assert.Equal(t, domain.StreamTypeFeed, streams[0].Type)
}

func TestGetFeedItemsRejectsUnknownFeed(t *testing.T) {
	p := testProvider()
	_, err := p.GetFeedItems(context.Background(), domain.FeedID("not-mine"))
	assert.Error(t, err)
}

func TestExecuteActionRejectsUnknownAction(t *testing.T) {
	p := testProvider()
	_, err := p.ExecuteAction(context.Background(), domain.Item{}, "archive-all", nil)
	assert.Error(t, err)
}

func TestToItemMapsEnvelopeAndFlags(t *testing.T) {
	p := testProvider()
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &imapclient.FetchMessageBuffer{
		UID: 42,
		Envelope: &imap.Envelope{
			Subject: "hello",
			Date:    when,
			From:    []imap.Address{{Name: "Ada", Mailbox: "ada", Host: "example.com"}},
		},
		Flags: []imap.Flag{imap.FlagSeen},
	}
	item := p.toItem(msg)
	assert.Equal(t, "hello", item.Title)
	assert.True(t, item.IsRead, "expected IsRead from \\Seen flag")
	require.NotNil(t, item.Author)
	assert.Equal(t, "Ada", item.Author.Name)
	require.NotNil(t, item.Published)
	assert.True(t, item.Published.Equal(when))

	content, ok := item.Content.(domain.EmailContent)
	require.True(t, ok)
	assert.Equal(t, "hello", content.Subject)
}
