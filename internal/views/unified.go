// Package views computes cross-provider aggregations over whatever the
// registry's providers report — the saved-items merge and collection
// concatenation described in SPEC_FULL.md §4.G.
package views

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
	"github.com/raibid-labs/scryhub/internal/registry"
)

// SortOrder controls how UnifiedSavedItems results are ordered.
type SortOrder string

const (
	SortSavedDateDesc      SortOrder = "saved_desc"
	SortSavedDateAsc       SortOrder = "saved_asc"
	SortPublishedDateDesc  SortOrder = "published_desc"
	SortPublishedDateAsc   SortOrder = "published_asc"
)

// UnifiedSavedOptions controls a saved-items aggregation query.
type UnifiedSavedOptions struct {
	Sort             SortOrder
	Limit            *int
	Offset           int
	ProviderFilter   *string
	ContentTypeFilter *string
}

// UnifiedSavedItem is one row of the saved.all response: an item merged
// across every provider that reports having saved it.
type UnifiedSavedItem struct {
	Item        domain.Item
	ProviderIDs []string
	SavedAt     time.Time
}

// View computes cross-provider aggregations against a registry.
type View struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// New returns a View backed by reg, logging with slog.Default().
func New(reg *registry.Registry) *View {
	return &View{reg: reg, logger: slog.Default()}
}

// NewWithLogger returns a View backed by reg, logging skipped providers with
// logger instead of the default.
func NewWithLogger(reg *registry.Registry, logger *slog.Logger) *View {
	return &View{reg: reg, logger: logger}
}

// contentTypeOf maps an ItemContent to the taxonomy string used by
// ContentTypeFilter, matching the original `matches_content_type` mapping
// exactly (several content kinds collapse onto "text").
func contentTypeOf(c domain.ItemContent) string {
	switch c.(type) {
	case domain.TextContent, domain.MarkdownContent, domain.HTMLContent:
		return "text"
	case domain.EmailContent:
		return "email"
	case domain.ArticleContent:
		return "article"
	case domain.VideoContent:
		return "video"
	case domain.TrackContent:
		return "track"
	case domain.TaskContent:
		return "task"
	case domain.EventContent:
		return "event"
	case domain.BookmarkContent:
		return "bookmark"
	default:
		return "generic"
	}
}

func matchesContentType(c domain.ItemContent, filter string) bool {
	return contentTypeOf(c) == filter
}

// GetAllSavedItems collects every SavedItemsProvider's items, deduplicating
// by canonical URL: items that share a URL are merged into one
// UnifiedSavedItem keeping the earliest SavedAt and accumulating every
// provider ID that reported it saved. Items with no URL are never merged —
// there is no reliable identity to merge them on.
func (v *View) GetAllSavedItems(ctx context.Context, opts UnifiedSavedOptions) ([]UnifiedSavedItem, error) {
	byURL := make(map[string]*UnifiedSavedItem)
	var unkeyed []UnifiedSavedItem

	for _, p := range v.reg.All() {
		if !p.Capabilities().HasSavedItems {
			continue
		}
		if opts.ProviderFilter != nil && p.ID() != *opts.ProviderFilter {
			continue
		}
		sp, ok := p.(provider.SavedItemsProvider)
		if !ok {
			continue
		}
		items, err := sp.ListSavedItems(ctx)
		if err != nil {
			v.logger.Warn("views: list saved items failed, skipping provider", "provider", p.ID(), "error", err)
			continue
		}
		now := time.Now()
		for _, it := range items {
			if opts.ContentTypeFilter != nil && !matchesContentType(it.Content, *opts.ContentTypeFilter) {
				continue
			}
			savedAt := now
			if it.Updated != nil {
				savedAt = *it.Updated
			}
			if it.URL == nil || *it.URL == "" {
				unkeyed = append(unkeyed, UnifiedSavedItem{Item: it, ProviderIDs: []string{p.ID()}, SavedAt: savedAt})
				continue
			}
			key := *it.URL
			if existing, ok := byURL[key]; ok {
				existing.ProviderIDs = append(existing.ProviderIDs, p.ID())
				if savedAt.Before(existing.SavedAt) {
					existing.SavedAt = savedAt
				}
				continue
			}
			byURL[key] = &UnifiedSavedItem{Item: it, ProviderIDs: []string{p.ID()}, SavedAt: savedAt}
		}
	}

	merged := make([]UnifiedSavedItem, 0, len(byURL)+len(unkeyed))
	for _, u := range byURL {
		merged = append(merged, *u)
	}
	merged = append(merged, unkeyed...)

	sortItems(merged, opts.Sort)

	if opts.Offset > 0 {
		if opts.Offset >= len(merged) {
			return []UnifiedSavedItem{}, nil
		}
		merged = merged[opts.Offset:]
	}
	if opts.Limit != nil && *opts.Limit < len(merged) {
		merged = merged[:*opts.Limit]
	}
	return merged, nil
}

func sortItems(items []UnifiedSavedItem, order SortOrder) {
	switch order {
	case SortSavedDateAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].SavedAt.Before(items[j].SavedAt) })
	case SortPublishedDateDesc:
		sort.SliceStable(items, func(i, j int) bool { return publishedOf(items[i]).After(publishedOf(items[j])) })
	case SortPublishedDateAsc:
		sort.SliceStable(items, func(i, j int) bool { return publishedOf(items[i]).Before(publishedOf(items[j])) })
	default: // SortSavedDateDesc is the default
		sort.SliceStable(items, func(i, j int) bool { return items[i].SavedAt.After(items[j].SavedAt) })
	}
}

func publishedOf(u UnifiedSavedItem) time.Time {
	if u.Item.Published != nil {
		return *u.Item.Published
	}
	return time.Time{}
}

// GetAllCollections concatenates every CollectionProvider's collections with
// no deduplication — collections are provider-scoped by construction
// ("<provider>:<local-id>"), so no two providers can collide.
func (v *View) GetAllCollections(ctx context.Context) ([]domain.Collection, error) {
	var all []domain.Collection
	for _, p := range v.reg.All() {
		if !p.Capabilities().HasCollections {
			continue
		}
		cp, ok := p.(provider.CollectionProvider)
		if !ok {
			continue
		}
		cols, err := cp.ListCollections(ctx)
		if err != nil {
			v.logger.Warn("views: list collections failed, skipping provider", "provider", p.ID(), "error", err)
			continue
		}
		all = append(all, cols...)
	}
	return all, nil
}
