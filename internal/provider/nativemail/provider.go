// Package nativemail is one of the hub's native (non-plugin) providers: a
// read-only IMAP inbox feed. It exists to exercise the Provider contract
// end-to-end with a real protocol client instead of only through plugins,
// and to give the Email content variant a concrete producer. Grounded on
// the imapclient usage in the pack's takitani-miau repo (internal/imap),
// adapted from that CLI's synchronous fetch-on-demand flow into the
// Provider.Sync polling shape this daemon expects.
package nativemail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
)

// Config describes one IMAP account this provider polls.
type Config struct {
	ProviderID string
	Host       string
	Port       int
	TLS        bool
	Username   string
	Password   string
	Mailbox    string // defaults to "INBOX"
	FetchLimit int    // most recent N messages per sync, defaults to 50
}

// Provider polls a single IMAP mailbox and surfaces it as one feed stream.
type Provider struct {
	cfg      Config
	lastSync *time.Time
	errCount int
}

// New returns a Provider for cfg, applying Mailbox/FetchLimit defaults.
func New(cfg Config) *Provider {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 50
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) ID() string   { return p.cfg.ProviderID }
func (p *Provider) Name() string { return "IMAP: " + p.cfg.Username }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{HasFeeds: true}
}

func (p *Provider) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	var (
		client *imapclient.Client
		err    error
	)
	if p.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	if err := client.Login(p.cfg.Username, p.cfg.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return client, nil
}

// HealthCheck opens and immediately closes a connection to confirm the
// account's credentials and network reachability.
func (p *Provider) HealthCheck(ctx context.Context) (provider.Health, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return provider.Health{IsHealthy: false, Message: err.Error(), LastSync: p.lastSync, ErrorCount: p.errCount}, nil
	}
	defer client.Close()
	return provider.Health{IsHealthy: true, LastSync: p.lastSync, ErrorCount: p.errCount}, nil
}

func (p *Provider) streamID() domain.StreamID {
	return domain.NewStreamID(p.cfg.ProviderID, "feed", strings.ToLower(p.cfg.Mailbox))
}

func (p *Provider) feedID() domain.FeedID {
	return domain.NewFeedID(p.cfg.ProviderID, strings.ToLower(p.cfg.Mailbox))
}

func (p *Provider) fetchRecent(ctx context.Context, limit int) ([]*imapclient.FetchMessageBuffer, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	selectData, err := client.Select(p.cfg.Mailbox, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("select mailbox %s: %w", p.cfg.Mailbox, err)
	}
	if selectData.NumMessages == 0 {
		return nil, nil
	}

	if limit <= 0 || limit > p.cfg.FetchLimit {
		limit = p.cfg.FetchLimit
	}
	total := selectData.NumMessages
	start := uint32(1)
	if total > uint32(limit) {
		start = total - uint32(limit) + 1
	}
	seqSet := imap.SeqSet{}
	seqSet.AddRange(start, total)

	bodySection := &imap.FetchItemBodySection{}
	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{
		Flags:       true,
		Envelope:    true,
		UID:         true,
		RFC822Size:  true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	messages, err := fetchCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return messages, nil
}

// Sync connects, selects the configured mailbox, and fetches its most
// recent FetchLimit messages by sequence number.
func (p *Provider) Sync(ctx context.Context) (provider.SyncResult, error) {
	start := time.Now()
	messages, err := p.fetchRecent(ctx, p.cfg.FetchLimit)
	if err != nil {
		p.errCount++
		return provider.SyncResult{Success: false, Errors: []string{err.Error()}, DurationMS: time.Since(start).Milliseconds()}, err
	}
	now := time.Now()
	p.lastSync = &now
	return provider.SyncResult{
		Success:    true,
		ItemsAdded: len(messages),
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// AvailableActions reports no plugin-style actions; mark-read/archive flow
// through the cache layer directly rather than an IMAP round-trip per call.
func (p *Provider) AvailableActions(item domain.Item) []provider.Action { return nil }

func (p *Provider) ExecuteAction(ctx context.Context, item domain.Item, actionID string, params map[string]any) (provider.ActionResult, error) {
	return provider.ActionResult{}, fmt.Errorf("nativemail: unknown action %q", actionID)
}

// ListFeeds reports the single mailbox feed this provider exposes.
func (p *Provider) ListFeeds(ctx context.Context) ([]domain.Stream, error) {
	return []domain.Stream{{
		ID:         p.streamID(),
		Name:       p.cfg.Mailbox,
		ProviderID: p.cfg.ProviderID,
		Type:       domain.StreamTypeFeed,
	}}, nil
}

// GetFeedItems fetches and converts the mailbox's recent messages into
// domain items carrying EmailContent, with the text/plain and text/html
// body parts extracted via emersion/go-message's mail reader.
func (p *Provider) GetFeedItems(ctx context.Context, feedID domain.FeedID) ([]domain.Item, error) {
	if feedID != p.feedID() {
		return nil, fmt.Errorf("nativemail: unknown feed %q", feedID)
	}
	messages, err := p.fetchRecent(ctx, p.cfg.FetchLimit)
	if err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(messages))
	for _, msg := range messages {
		items = append(items, p.toItem(msg))
	}
	return items, nil
}

// extractBody finds the raw RFC822 body attached to msg's single fetched
// body section and splits it into text/plain and text/html parts. Any part
// it cannot parse is silently skipped — a malformed body part must not
// break the rest of the sync.
func extractBody(msg *imapclient.FetchMessageBuffer) (text, html *string) {
	raw := msg.FindBodySection(&imap.FetchItemBodySection{})
	if raw == nil {
		return nil, nil
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		s := string(body)
		switch contentType {
		case "text/plain":
			if text == nil {
				text = &s
			}
		case "text/html":
			if html == nil {
				html = &s
			}
		}
	}
	return text, html
}

func (p *Provider) toItem(msg *imapclient.FetchMessageBuffer) domain.Item {
	it := domain.Item{
		ID:       domain.NewItemID(p.cfg.ProviderID, fmt.Sprintf("%d", msg.UID)),
		StreamID: p.streamID(),
	}
	var snippet string
	if msg.Envelope != nil {
		it.Title = msg.Envelope.Subject
		published := msg.Envelope.Date
		it.Published = &published
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			name := from.Name
			if name == "" {
				name = from.Mailbox
			}
			email := fmt.Sprintf("%s@%s", from.Mailbox, from.Host)
			it.Author = &domain.Author{Name: name, Email: &email}
		}
		snippet = msg.Envelope.Subject
	}
	for _, flag := range msg.Flags {
		if flag == imap.FlagSeen {
			it.IsRead = true
		}
	}
	text, html := extractBody(msg)
	if text != nil {
		snippet = snippetOf(*text)
	}
	it.Content = domain.EmailContent{Subject: it.Title, BodyText: text, BodyHTML: html, Snippet: snippet}
	return it
}

// snippetOf returns the first line of body, trimmed, as a short preview.
func snippetOf(body string) string {
	line := strings.SplitN(strings.TrimSpace(body), "\n", 2)[0]
	const maxLen = 200
	if len(line) > maxLen {
		return line[:maxLen]
	}
	return line
}

var _ provider.FeedProvider = (*Provider)(nil)
var _ provider.Provider = (*Provider)(nil)
