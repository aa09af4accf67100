package views

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
	"github.com/raibid-labs/scryhub/internal/registry"
)

type savedProvider struct {
	id    string
	items []domain.Item
}

func (p *savedProvider) ID() string   { return p.id }
func (p *savedProvider) Name() string { return p.id }
func (p *savedProvider) HealthCheck(ctx context.Context) (provider.Health, error) {
	return provider.Health{IsHealthy: true}, nil
}
func (p *savedProvider) Sync(ctx context.Context) (provider.SyncResult, error) {
	return provider.SyncResult{Success: true}, nil
}
func (p *savedProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{HasSavedItems: true}
}
func (p *savedProvider) AvailableActions(item domain.Item) []provider.Action { return nil }
func (p *savedProvider) ExecuteAction(ctx context.Context, item domain.Item, actionID string, params map[string]any) (provider.ActionResult, error) {
	return provider.ActionResult{}, nil
}
func (p *savedProvider) ListSavedItems(ctx context.Context) ([]domain.Item, error) {
	return p.items, nil
}

// failingSavedProvider always errors on ListSavedItems, to exercise the
// skip-and-continue aggregation contract.
type failingSavedProvider struct {
	savedProvider
}

func (p *failingSavedProvider) ListSavedItems(ctx context.Context) ([]domain.Item, error) {
	return nil, fmt.Errorf("%s: unreachable", p.id)
}

type collectionProvider struct {
	id   string
	cols []domain.Collection
}

func (p *collectionProvider) ID() string   { return p.id }
func (p *collectionProvider) Name() string { return p.id }
func (p *collectionProvider) HealthCheck(ctx context.Context) (provider.Health, error) {
	return provider.Health{IsHealthy: true}, nil
}
func (p *collectionProvider) Sync(ctx context.Context) (provider.SyncResult, error) {
	return provider.SyncResult{Success: true}, nil
}
func (p *collectionProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{HasCollections: true}
}
func (p *collectionProvider) AvailableActions(item domain.Item) []provider.Action { return nil }
func (p *collectionProvider) ExecuteAction(ctx context.Context, item domain.Item, actionID string, params map[string]any) (provider.ActionResult, error) {
	return provider.ActionResult{}, nil
}
func (p *collectionProvider) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return p.cols, nil
}

// failingCollectionProvider always errors on ListCollections, to exercise
// the skip-and-continue aggregation contract.
type failingCollectionProvider struct {
	collectionProvider
}

func (p *failingCollectionProvider) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return nil, fmt.Errorf("%s: unreachable", p.id)
}

func ptr[T any](v T) *T { return &v }

func TestGetAllSavedItemsDedupesByURL(t *testing.T) {
	shared := "https://example.com/a"
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	reg := registry.New()
	reg.Register(&savedProvider{id: "reddit", items: []domain.Item{
		{ID: "reddit:1", Title: "A", Content: domain.ArticleContent{}, URL: &shared, Updated: &t2},
	}})
	reg.Register(&savedProvider{id: "rss", items: []domain.Item{
		{ID: "rss:1", Title: "A dup", Content: domain.ArticleContent{}, URL: &shared, Updated: &t1},
	}})

	v := New(reg)
	got, err := v.GetAllSavedItems(context.Background(), UnifiedSavedOptions{Sort: SortSavedDateDesc})
	require.NoError(t, err)
	require.Len(t, got, 1, "want 1 merged row")
	assert.Len(t, got[0].ProviderIDs, 2, "want both providers accumulated")
	assert.True(t, got[0].SavedAt.Equal(t1), "SavedAt = %v, want earliest %v", got[0].SavedAt, t1)
}

func TestGetAllSavedItemsKeepsUnkeyedItemsDistinct(t *testing.T) {
	reg := registry.New()
	reg.Register(&savedProvider{id: "spotify", items: []domain.Item{
		{ID: "spotify:1", Title: "Track one", Content: domain.TrackContent{}},
		{ID: "spotify:2", Title: "Track two", Content: domain.TrackContent{}},
	}})

	v := New(reg)
	got, err := v.GetAllSavedItems(context.Background(), UnifiedSavedOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2, "want 2 distinct URL-less items")
}

func TestGetAllSavedItemsSortOrdersAndPagination(t *testing.T) {
	reg := registry.New()
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	reg.Register(&savedProvider{id: "p", items: []domain.Item{
		{ID: "p:1", Title: "early", Content: domain.GenericContent{}, URL: ptr("u1"), Updated: &early},
		{ID: "p:2", Title: "late", Content: domain.GenericContent{}, URL: ptr("u2"), Updated: &late},
	}})

	v := New(reg)
	got, err := v.GetAllSavedItems(context.Background(), UnifiedSavedOptions{Sort: SortSavedDateAsc, Limit: ptr(1)})
	require.NoError(t, err)
	require.Len(t, got, 1, "want [early] first under asc sort + limit 1")
	assert.Equal(t, "early", got[0].Item.Title)
}

func TestContentTypeFilterMapsVariantsToTaxonomy(t *testing.T) {
	cases := []struct {
		content domain.ItemContent
		want    string
	}{
		{domain.TextContent{}, "text"},
		{domain.MarkdownContent{}, "text"},
		{domain.HTMLContent{}, "text"},
		{domain.EmailContent{}, "email"},
		{domain.ArticleContent{}, "article"},
		{domain.VideoContent{}, "video"},
		{domain.TrackContent{}, "track"},
		{domain.TaskContent{}, "task"},
		{domain.EventContent{}, "event"},
		{domain.BookmarkContent{}, "bookmark"},
		{domain.GenericContent{}, "generic"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, contentTypeOf(tc.content), "contentTypeOf(%T)", tc.content)
	}
}

func TestGetAllSavedItemsSkipsFailingProvider(t *testing.T) {
	reg := registry.New()
	reg.Register(&failingSavedProvider{savedProvider{id: "broken"}})
	reg.Register(&savedProvider{id: "ok", items: []domain.Item{
		{ID: "ok:1", Title: "survivor", Content: domain.GenericContent{}},
	}})

	v := New(reg)
	got, err := v.GetAllSavedItems(context.Background(), UnifiedSavedOptions{})
	require.NoError(t, err, "one provider failing must not fail the whole aggregation")
	require.Len(t, got, 1)
	assert.Equal(t, "survivor", got[0].Item.Title)
}

func TestGetAllCollectionsConcatenatesWithoutDedup(t *testing.T) {
	reg := registry.New()
	reg.Register(&collectionProvider{id: "spotify", cols: []domain.Collection{
		{ID: "spotify:1", Name: "Chill"},
	}})
	reg.Register(&collectionProvider{id: "reddit", cols: []domain.Collection{
		{ID: "reddit:1", Name: "Chill"},
	}})

	v := New(reg)
	got, err := v.GetAllCollections(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2, "same-named collections from distinct providers must not be merged")
}

func TestGetAllCollectionsSkipsFailingProvider(t *testing.T) {
	reg := registry.New()
	reg.Register(&failingCollectionProvider{collectionProvider{id: "broken"}})
	reg.Register(&collectionProvider{id: "ok", cols: []domain.Collection{
		{ID: "ok:1", Name: "survivor"},
	}})

	v := New(reg)
	got, err := v.GetAllCollections(context.Background())
	require.NoError(t, err, "one provider failing must not fail the whole aggregation")
	require.Len(t, got, 1)
	assert.Equal(t, "survivor", got[0].Name)
}
