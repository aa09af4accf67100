// Package provider defines the contract every stream-service integration
// implements, and the optional capability-conditional sub-interfaces a
// provider can additionally satisfy.
package provider

import (
	"context"
	"time"

	"github.com/raibid-labs/scryhub/internal/domain"
)

// Health reports whether a provider is reachable right now.
type Health struct {
	IsHealthy bool       `json:"is_healthy"`
	Message   string     `json:"message,omitempty"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	ErrorCount int       `json:"error_count"`
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Success      bool     `json:"success"`
	ItemsAdded   int      `json:"items_added"`
	ItemsUpdated int      `json:"items_updated"`
	ItemsRemoved int      `json:"items_removed"`
	Errors       []string `json:"errors,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
}

// Capabilities declares which optional sub-interfaces a provider implements
// and which OAuth provider (if any) it authenticates against.
type Capabilities struct {
	HasFeeds       bool    `json:"has_feeds"`
	HasCollections bool    `json:"has_collections"`
	HasSavedItems  bool    `json:"has_saved_items"`
	HasCommunities bool    `json:"has_communities"`
	OAuthProvider  *string `json:"oauth_provider,omitempty"`
}

// Action is a provider-declared, arbitrary operation exposed beyond the
// fixed stream/collection contract (e.g. "archive all", "mark all read").
type Action struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ActionResult is the outcome of executing an Action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Provider is the contract every stream-service integration implements.
// The four capability-conditional operations below live on separate
// interfaces (FeedProvider, CollectionProvider, SavedItemsProvider,
// CommunityProvider); callers gate access to them behind the matching
// Capabilities flag, never a bare type assertion alone.
type Provider interface {
	ID() string
	Name() string
	HealthCheck(ctx context.Context) (Health, error)
	Sync(ctx context.Context) (SyncResult, error)
	Capabilities() Capabilities
	AvailableActions(item domain.Item) []Action
	ExecuteAction(ctx context.Context, item domain.Item, actionID string, params map[string]any) (ActionResult, error)
}

// FeedProvider is implemented by providers whose Capabilities().HasFeeds is
// true.
type FeedProvider interface {
	ListFeeds(ctx context.Context) ([]domain.Stream, error)
	GetFeedItems(ctx context.Context, feedID domain.FeedID) ([]domain.Item, error)
}

// CollectionProvider is implemented by providers whose
// Capabilities().HasCollections is true.
type CollectionProvider interface {
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	GetCollectionItems(ctx context.Context, collectionID domain.CollectionID) ([]domain.Item, error)
	AddToCollection(ctx context.Context, collectionID domain.CollectionID, itemID domain.ItemID) error
	RemoveFromCollection(ctx context.Context, collectionID domain.CollectionID, itemID domain.ItemID) error
	CreateCollection(ctx context.Context, name string) (domain.Collection, error)
}

// SavedItemsProvider is implemented by providers whose
// Capabilities().HasSavedItems is true.
type SavedItemsProvider interface {
	ListSavedItems(ctx context.Context) ([]domain.Item, error)
}

// CommunityProvider is implemented by providers whose
// Capabilities().HasCommunities is true.
type CommunityProvider interface {
	ListCommunities(ctx context.Context) ([]domain.Stream, error)
}
