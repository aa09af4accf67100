package rpcservice

import (
	"context"
	"encoding/json"

	"github.com/raibid-labs/scryhub/internal/views"
)

func init() {
	registerHandler("saved.all", handleSavedAll)
}

type savedAllParams struct {
	Sort           *string `json:"sort"`
	Limit          *int    `json:"limit"`
	Offset         int     `json:"offset"`
	ProviderID     *string `json:"provider_id"`
	ContentType    *string `json:"content_type"`
}

func handleSavedAll(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p savedAllParams
	if len(params) > 0 {
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
	}
	opts := views.UnifiedSavedOptions{
		Offset:            p.Offset,
		Limit:             p.Limit,
		ProviderFilter:    p.ProviderID,
		ContentTypeFilter: p.ContentType,
	}
	if p.Sort != nil {
		switch views.SortOrder(*p.Sort) {
		case views.SortSavedDateDesc, views.SortSavedDateAsc, views.SortPublishedDateDesc, views.SortPublishedDateAsc:
			opts.Sort = views.SortOrder(*p.Sort)
		default:
			return nil, invalidParamsf("unknown sort order %q", *p.Sort)
		}
	}
	return s.Views.GetAllSavedItems(ctx, opts)
}
