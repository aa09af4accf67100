package rpcservice

import (
	"context"
	"encoding/json"

	"github.com/raibid-labs/scryhub/internal/cache"
	"github.com/raibid-labs/scryhub/internal/domain"
)

func init() {
	registerHandler("search.query", handleSearchQuery)
}

type searchFiltersParams struct {
	StreamID    *domain.StreamID `json:"stream_id"`
	ContentType *string          `json:"content_type"`
	IsRead      *bool            `json:"is_read"`
	IsSaved     *bool            `json:"is_saved"`
}

type searchQueryParams struct {
	Query   string              `json:"query"`
	Filters json.RawMessage     `json:"filters"`
	Limit   int                 `json:"limit"`
}

func handleSearchQuery(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p searchQueryParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, invalidParamsf("query is required")
	}
	if err := validateSearchFilters(p.Filters); err != nil {
		return nil, err
	}
	var f searchFiltersParams
	if len(p.Filters) > 0 {
		if err := json.Unmarshal(p.Filters, &f); err != nil {
			return nil, invalidParamsf("filters: %v", err)
		}
	}
	return s.Cache.SearchItems(p.Query, p.Limit, cache.SearchFilter{
		StreamID:    f.StreamID,
		ContentType: f.ContentType,
		IsRead:      f.IsRead,
		IsSaved:     f.IsSaved,
	})
}
