// Package nativepop3 is the hub's second native provider: a read-only POP3
// inbox feed, sibling to nativemail's IMAP feed. Grounded on goatflow's own
// POP3 connector test (internal/email/inbound/connector/pop3_test.go),
// which documents a pop3Connection contract of Auth/Uidl/List/RetrRaw/Dele/
// Quit over github.com/knadh/go-pop3 — that shape is reused here directly
// against the real go-pop3 client instead of goatflow's fake.
package nativepop3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/knadh/go-pop3"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
)

// Config describes one POP3 mailbox this provider polls.
type Config struct {
	ProviderID string
	Host       string
	Port       int
	TLS        bool
	Username   string
	Password   string
	// DeleteAfterFetch issues Dele for every message retrieved in a sync.
	// Off by default: a read-only aggregator should not drain the mailbox
	// of a provider a user may also read with a real mail client.
	DeleteAfterFetch bool
	FetchLimit       int // most recent N messages per sync, defaults to 50
	DialTimeout      time.Duration
}

// Provider polls a single POP3 mailbox and surfaces it as one feed stream.
// Unlike nativemail's IMAP session (which can re-select the same mailbox
// state every sync), POP3 has no persistent UID-to-flag mapping across
// connections beyond UIDL, so a provider instance tracks which UIDs it has
// already surfaced in-memory to avoid resurfacing them on every poll when
// DeleteAfterFetch is off.
type Provider struct {
	cfg      Config
	lastSync *time.Time
	errCount int

	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns a Provider for cfg, applying FetchLimit/DialTimeout defaults.
func New(cfg Config) *Provider {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 50
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Provider{cfg: cfg, seen: make(map[string]struct{})}
}

func (p *Provider) ID() string   { return p.cfg.ProviderID }
func (p *Provider) Name() string { return "POP3: " + p.cfg.Username }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{HasFeeds: true}
}

func (p *Provider) streamID() domain.StreamID {
	return domain.NewStreamID(p.cfg.ProviderID, "feed", "inbox")
}

func (p *Provider) feedID() domain.FeedID {
	return domain.NewFeedID(p.cfg.ProviderID, "inbox")
}

func (p *Provider) connect() (*pop3.Conn, error) {
	client := pop3.New(pop3.Opt{
		Host:        p.cfg.Host,
		Port:        p.cfg.Port,
		TLSEnabled:  p.cfg.TLS,
		DialTimeout: p.cfg.DialTimeout,
	})
	conn, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("pop3 connect %s:%d: %w", p.cfg.Host, p.cfg.Port, err)
	}
	if err := conn.Auth(p.cfg.Username, p.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("pop3 auth: %w", err)
	}
	return conn, nil
}

func (p *Provider) safeQuit(conn *pop3.Conn) {
	if err := conn.Quit(); err != nil {
		// best-effort: a failed QUIT after we already have what we came for
		// is not worth surfacing as a sync error.
		_ = err
	}
}

// HealthCheck opens and immediately closes a connection to confirm the
// account's credentials and network reachability.
func (p *Provider) HealthCheck(ctx context.Context) (provider.Health, error) {
	conn, err := p.connect()
	if err != nil {
		return provider.Health{IsHealthy: false, Message: err.Error(), LastSync: p.lastSync, ErrorCount: p.errCount}, nil
	}
	p.safeQuit(conn)
	return provider.Health{IsHealthy: true, LastSync: p.lastSync, ErrorCount: p.errCount}, nil
}

type fetchedMessage struct {
	uid string
	raw []byte
}

// fetchRecent lists the mailbox via UIDL (falling back to the plain list if
// the server doesn't implement UIDL) and retrieves up to FetchLimit messages
// not already seen. With consume set, the retrieved UIDs are recorded as
// seen and, if DeleteAfterFetch is set, deleted from the server; without it
// the mailbox and the seen set are left as they were.
func (p *Provider) fetchRecent(ctx context.Context, consume bool) ([]fetchedMessage, error) {
	conn, err := p.connect()
	if err != nil {
		return nil, err
	}
	defer p.safeQuit(conn)

	ids, err := conn.Uidl(0)
	if err != nil {
		ids, err = conn.List(0)
		if err != nil {
			return nil, fmt.Errorf("pop3 list: %w", err)
		}
	}

	p.mu.Lock()
	pending := make([]pop3.MessageID, 0, len(ids))
	for _, id := range ids {
		if _, ok := p.seen[id.UID]; !ok {
			pending = append(pending, id)
		}
	}
	p.mu.Unlock()

	if len(pending) > p.cfg.FetchLimit {
		pending = pending[len(pending)-p.cfg.FetchLimit:]
	}

	messages := make([]fetchedMessage, 0, len(pending))
	var deleteIDs []int
	for _, id := range pending {
		buf, err := conn.RetrRaw(id.ID)
		if err != nil {
			continue // a single unreadable message must not fail the whole sync
		}
		messages = append(messages, fetchedMessage{uid: id.UID, raw: buf.Bytes()})
		deleteIDs = append(deleteIDs, id.ID)
	}
	if !consume {
		return messages, nil
	}

	p.mu.Lock()
	for _, m := range messages {
		p.seen[m.uid] = struct{}{}
	}
	p.mu.Unlock()

	if p.cfg.DeleteAfterFetch && len(deleteIDs) > 0 {
		if err := conn.Dele(deleteIDs...); err != nil {
			return messages, fmt.Errorf("pop3 dele: %w", err)
		}
	}
	return messages, nil
}

// Sync connects, lists the mailbox via UIDL, and fetches messages not
// already seen by this provider instance, without marking them seen or
// deleting them, so the GetFeedItems call that follows still surfaces them.
func (p *Provider) Sync(ctx context.Context) (provider.SyncResult, error) {
	start := time.Now()
	messages, err := p.fetchRecent(ctx, false)
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

func (p *Provider) AvailableActions(item domain.Item) []provider.Action { return nil }

func (p *Provider) ExecuteAction(ctx context.Context, item domain.Item, actionID string, params map[string]any) (provider.ActionResult, error) {
	return provider.ActionResult{}, fmt.Errorf("nativepop3: unknown action %q", actionID)
}

// ListFeeds reports the single inbox feed this provider exposes.
func (p *Provider) ListFeeds(ctx context.Context) ([]domain.Stream, error) {
	return []domain.Stream{{
		ID:         p.streamID(),
		Name:       "Inbox",
		ProviderID: p.cfg.ProviderID,
		Type:       domain.StreamTypeFeed,
	}}, nil
}

// GetFeedItems fetches the mailbox's unseen messages, marks them seen
// (deleting them when DeleteAfterFetch is set), and converts each raw
// RFC822 payload into a domain item carrying EmailContent.
func (p *Provider) GetFeedItems(ctx context.Context, feedID domain.FeedID) ([]domain.Item, error) {
	if feedID != p.feedID() {
		return nil, fmt.Errorf("nativepop3: unknown feed %q", feedID)
	}
	messages, err := p.fetchRecent(ctx, true)
	if err != nil {
		return nil, err
	}
	items := make([]domain.Item, 0, len(messages))
	for _, m := range messages {
		items = append(items, p.toItem(m))
	}
	return items, nil
}

func (p *Provider) toItem(m fetchedMessage) domain.Item {
	it := domain.Item{
		ID:       domain.NewItemID(p.cfg.ProviderID, m.uid),
		StreamID: p.streamID(),
	}
	mr, err := mail.CreateReader(bytes.NewReader(m.raw))
	if err != nil {
		it.Content = domain.EmailContent{Snippet: "(unparseable message)"}
		return it
	}
	if subject, err := mr.Header.Subject(); err == nil {
		it.Title = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		it.Published = &date
	}
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		from := addrs[0]
		email := from.Address
		it.Author = &domain.Author{Name: from.Name, Email: &email}
	}

	var text, html *string
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
	snippet := it.Title
	if text != nil {
		snippet = snippetOf(*text)
	}
	it.Content = domain.EmailContent{Subject: it.Title, BodyText: text, BodyHTML: html, Snippet: snippet}
	return it
}

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
