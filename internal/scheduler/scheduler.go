// Package scheduler drives periodic per-provider synchronization: it polls
// registered providers on their configured interval, writes what they
// report into the cache, tracks per-provider sync state and backs off on
// repeated failure, per SPEC_FULL.md §4.F. Adapted from the teacher's
// internal/services/scheduler (functional options, prometheus metrics,
// graceful worker-pool shutdown), generalized from a single cron-style job
// table to one long-lived task per registered provider.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raibid-labs/scryhub/internal/cache"
	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
	"github.com/raibid-labs/scryhub/internal/registry"
)

// cronDescriptorParser accepts the "@every <duration>" descriptor form,
// which is all a fixed per-provider polling interval needs from
// robfig/cron's spec language.
var cronDescriptorParser = cron.NewParser(cron.Descriptor)

// ProviderSchedule is one provider's configured polling cadence, taken from
// hubconfig's providers.<id>.sync_interval_minutes and expressed as a
// robfig/cron schedule so provider tasks compute their next run the same
// way a cron-driven job table would, rather than a bare ticker.
type ProviderSchedule struct {
	Interval time.Duration
}

// cronSchedule returns the "@every" cron.Schedule this ProviderSchedule
// describes.
func (ps ProviderSchedule) cronSchedule() (cron.Schedule, error) {
	return cronDescriptorParser.Parse(fmt.Sprintf("@every %s", ps.Interval))
}

// Scheduler owns one background task per scheduled provider.
type Scheduler struct {
	reg   *registry.Registry
	cache *cache.Cache

	opts options

	maxItemsPerStream int

	mu       sync.Mutex
	tasks    map[string]*providerTask
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	started  bool
}

type providerTask struct {
	id       string
	schedule cron.Schedule
	trigger  chan struct{}

	mu      sync.Mutex
	syncing bool
}

// New returns a Scheduler reading providers from reg and persisting to c.
// maxItemsPerStream is forwarded to cache.UpsertItems on every sync
// (hubconfig's cache.max_items_per_stream).
func New(reg *registry.Registry, c *cache.Cache, maxItemsPerStream int, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	return &Scheduler{
		reg:               reg,
		cache:             c,
		opts:              o,
		maxItemsPerStream: maxItemsPerStream,
		tasks:             make(map[string]*providerTask),
	}
}

// Start launches one task per provider named in schedules that is currently
// registered. Starting twice is a no-op-returning error; call Shutdown
// first to restart.
func (s *Scheduler) Start(ctx context.Context, schedules map[string]ProviderSchedule) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	for id, sched := range schedules {
		p, ok := s.reg.Get(id)
		if !ok {
			s.opts.Logger.Warn("scheduler: provider scheduled but not registered, skipping", "provider", id)
			continue
		}
		cronSched, err := sched.cronSchedule()
		if err != nil {
			s.opts.Logger.Warn("scheduler: invalid schedule, skipping", "provider", id, "error", err)
			continue
		}
		task := &providerTask{id: id, schedule: cronSched, trigger: make(chan struct{}, 1)}
		s.mu.Lock()
		s.tasks[id] = task
		s.mu.Unlock()

		s.wg.Add(1)
		go s.run(runCtx, task, p)
	}
	return nil
}

// Shutdown cancels every task and waits up to the configured drain deadline
// for in-flight syncs to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	deadline := s.opts.DrainDeadline
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("scheduler: shutdown drain deadline (%s) exceeded", deadline)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerSync requests an out-of-band sync for providerID. Per spec §4.F, a
// trigger while a sync is already running is coalesced — at most one
// pending trigger is queued, never a backlog.
func (s *Scheduler) TriggerSync(providerID string) error {
	s.mu.Lock()
	task, ok := s.tasks[providerID]
	s.mu.Unlock()
	if !ok {
		return &domain.ProviderNotFoundError{ProviderID: providerID}
	}
	select {
	case task.trigger <- struct{}{}:
	default:
		// a trigger is already pending; coalesce.
	}
	return nil
}

// Status returns every provider's recorded sync state, read straight from
// the cache (the source of truth across restarts).
func (s *Scheduler) Status() (map[string]cache.SyncState, error) {
	states, err := s.cache.GetAllSyncStates()
	if err != nil {
		return nil, err
	}
	out := make(map[string]cache.SyncState, len(states))
	for _, st := range states {
		out[st.ProviderID] = st
	}
	return out, nil
}

func (s *Scheduler) run(ctx context.Context, task *providerTask, p provider.Provider) {
	defer s.wg.Done()

	wait := time.Duration(0) // first tick fires immediately
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-task.trigger:
			timer.Stop()
		}

		s.syncOnce(ctx, task, p)

		state, err := s.cache.GetSyncState(task.id)
		if err != nil {
			s.opts.Logger.Error("scheduler: read sync state failed", "provider", task.id, "error", err)
			wait = s.opts.BackoffBase
			continue
		}
		if state.LastError != nil {
			wait = backoffWait(state.ErrorCount, s.opts.BackoffBase, s.opts.BackoffCeil)
		} else {
			wait = time.Until(task.schedule.Next(time.Now()))
			if wait < 0 {
				wait = 0
			}
		}
	}
}

// syncOnce runs a single sync pass for p. It is the sole place that calls
// provider.Sync — within one provider, calls are strictly serial (spec
// §4.F ordering guarantees), enforced here by the task's own single
// goroutine rather than an explicit lock.
func (s *Scheduler) syncOnce(ctx context.Context, task *providerTask, p provider.Provider) {
	task.mu.Lock()
	task.syncing = true
	task.mu.Unlock()
	defer func() {
		task.mu.Lock()
		task.syncing = false
		task.mu.Unlock()
	}()

	if err := s.cache.SetSyncInProgress(task.id, true); err != nil {
		s.opts.Logger.Error("scheduler: set sync in progress failed", "provider", task.id, "error", err)
	}
	s.mirrorStatus(task.id, cache.SyncState{ProviderID: task.id, InProgress: true})

	stop := s.opts.Metrics.recordRun(task.id)
	result, syncErr := p.Sync(ctx)
	if syncErr == nil && !result.Success && len(result.Errors) > 0 {
		syncErr = fmt.Errorf("%s", result.Errors[0])
	}
	stop(syncErr == nil)

	if syncErr == nil {
		if fp, ok := p.(provider.FeedProvider); ok {
			syncErr = s.ingestFeeds(ctx, fp, task.id)
		}
	}

	if err := s.cache.RecordSyncResult(task.id, syncErr); err != nil {
		s.opts.Logger.Error("scheduler: record sync result failed", "provider", task.id, "error", err)
	}
	if syncErr != nil {
		s.opts.Logger.Warn("scheduler: sync failed", "provider", task.id, "error", syncErr)
	}
	final, _ := s.cache.GetSyncState(task.id)
	s.mirrorStatus(task.id, final)
}

// ingestFeeds lists a feed provider's streams and writes each one's recent
// items into the cache — the "write returned items via cache.upsert_items"
// step spec §4.F describes; Sync() returns only a SyncResult summary, never
// the items themselves, so feed listing is the separate read path that
// actually produces items.
func (s *Scheduler) ingestFeeds(ctx context.Context, fp provider.FeedProvider, providerID string) error {
	feeds, err := fp.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}
	for _, feed := range feeds {
		if err := s.cache.UpsertStream(feed); err != nil {
			return fmt.Errorf("upsert stream %s: %w", feed.ID, err)
		}
		items, err := fp.GetFeedItems(ctx, domain.FeedID(feed.ID))
		if err != nil {
			return fmt.Errorf("get feed items %s: %w", feed.ID, err)
		}
		if err := s.cache.UpsertItems(feed.ID, items, s.maxItemsPerStream); err != nil {
			return fmt.Errorf("upsert items %s: %w", feed.ID, err)
		}
	}
	_ = providerID
	return nil
}

// mirrorStatus writes a fast-read replica of sync state to Redis when
// configured; failures are logged, never propagated, since Redis here is
// strictly a cache-of-a-cache (the sqlite cache package remains
// authoritative).
func (s *Scheduler) mirrorStatus(providerID string, st cache.SyncState) {
	if s.opts.Redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := "scryhub:sync_state:" + providerID
	val := "in_progress"
	if !st.InProgress {
		val = "idle"
	}
	if err := s.opts.Redis.Set(ctx, key, val, time.Minute).Err(); err != nil {
		s.opts.Logger.Debug("scheduler: redis status mirror failed", "provider", providerID, "error", err)
	}
}
