package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raibid-labs/scryhub/internal/cache"
	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
	"github.com/raibid-labs/scryhub/internal/registry"
)

// stubProvider fails its first failUntil calls then always succeeds,
// recording every Sync call for assertions.
type stubProvider struct {
	id        string
	mu        sync.Mutex
	calls     int
	failUntil int
	feed      []domain.Item
}

func (p *stubProvider) ID() string   { return p.id }
func (p *stubProvider) Name() string { return p.id }
func (p *stubProvider) HealthCheck(ctx context.Context) (provider.Health, error) {
	return provider.Health{IsHealthy: true}, nil
}
func (p *stubProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{HasFeeds: true}
}
func (p *stubProvider) AvailableActions(item domain.Item) []provider.Action { return nil }
func (p *stubProvider) ExecuteAction(ctx context.Context, item domain.Item, id string, params map[string]any) (provider.ActionResult, error) {
	return provider.ActionResult{}, fmt.Errorf("no actions")
}

func (p *stubProvider) Sync(ctx context.Context) (provider.SyncResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failUntil {
		return provider.SyncResult{Success: false, Errors: []string{"boom"}}, fmt.Errorf("boom")
	}
	return provider.SyncResult{Success: true, ItemsAdded: len(p.feed)}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) ListFeeds(ctx context.Context) ([]domain.Stream, error) {
	return []domain.Stream{{ID: domain.NewStreamID(p.id, "feed", "main"), ProviderID: p.id, Name: "main", Type: domain.StreamTypeFeed}}, nil
}

func (p *stubProvider) GetFeedItems(ctx context.Context, feedID domain.FeedID) ([]domain.Item, error) {
	return p.feed, nil
}

var _ provider.FeedProvider = (*stubProvider)(nil)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), cache.NewMetrics())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSchedulerIngestsSuccessfulSync(t *testing.T) {
	c := newTestCache(t)
	reg := registry.New()
	item := domain.Item{ID: "stub:1", Title: "hello", Content: domain.TextContent{Body: "hi"}}
	p := &stubProvider{id: "stub", feed: []domain.Item{item}}
	reg.Register(p)

	sched := New(reg, c, 0, WithBackoff(5*time.Millisecond, 50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx, map[string]ProviderSchedule{"stub": {Interval: 50 * time.Millisecond}}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		items, err := c.GetItems(domain.NewStreamID("stub", "feed", "main"), cache.ItemQueryOptions{IncludeRead: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(items) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("item never reached the cache via a scheduled sync")
}

func TestSchedulerBackoffAfterRepeatedFailures(t *testing.T) {
	c := newTestCache(t)
	reg := registry.New()
	p := &stubProvider{id: "flaky", failUntil: 3}
	reg.Register(p)

	sched := New(reg, c, 0, WithBackoff(20*time.Millisecond, 200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sched.Start(ctx, map[string]ProviderSchedule{"flaky": {Interval: 10 * time.Millisecond}}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.callCount() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if p.callCount() < 3 {
		t.Fatalf("expected at least 3 sync attempts, got %d", p.callCount())
	}
	state, err := c.GetSyncState("flaky")
	if err != nil {
		t.Fatal(err)
	}
	if state.ErrorCount < 1 {
		t.Fatalf("expected a nonzero error count after failures, got %d", state.ErrorCount)
	}

	// Let it recover past failUntil and confirm the error count resets.
	for time.Now().Before(deadline.Add(2 * time.Second)) {
		state, err = c.GetSyncState("flaky")
		if err != nil {
			t.Fatal(err)
		}
		if state.ErrorCount == 0 && state.LastSync != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected error count to reset to 0 after recovery, got %+v", state)
}

func TestSchedulerTriggerSyncCoalesces(t *testing.T) {
	c := newTestCache(t)
	reg := registry.New()
	p := &stubProvider{id: "stub"}
	reg.Register(p)

	sched := New(reg, c, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// A long interval means only the manual triggers should drive syncs
	// beyond the initial immediate tick.
	if err := sched.Start(ctx, map[string]ProviderSchedule{"stub": {Interval: time.Hour}}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond) // let the first-tick sync land

	var triggered int32
	for i := 0; i < 5; i++ {
		if err := sched.TriggerSync("stub"); err == nil {
			atomic.AddInt32(&triggered, 1)
		}
	}
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt32(&triggered); got != 5 {
		t.Errorf("TriggerSync accepted %d of 5 triggers, want all 5 (coalesced, not rejected)", got)
	}
	if got := p.callCount(); got >= 1+5 {
		t.Errorf("sync ran %d times for 5 back-to-back triggers, want them coalesced", got)
	}

	if err := sched.TriggerSync("unknown"); err == nil {
		t.Error("expected error triggering an unregistered provider")
	}
}

func TestSchedulerShutdownDrains(t *testing.T) {
	c := newTestCache(t)
	reg := registry.New()
	p := &stubProvider{id: "stub"}
	reg.Register(p)

	sched := New(reg, c, 0, WithDrainDeadline(time.Second))
	ctx := context.Background()
	if err := sched.Start(ctx, map[string]ProviderSchedule{"stub": {Interval: time.Hour}}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := sched.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
