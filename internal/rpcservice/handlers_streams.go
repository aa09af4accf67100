package rpcservice

import (
	"context"
	"encoding/json"

	"github.com/raibid-labs/scryhub/internal/cache"
	"github.com/raibid-labs/scryhub/internal/domain"
)

func init() {
	registerHandler("streams.list", handleStreamsList)
	registerHandler("items.list", handleItemsList)
	registerHandler("items.mark_read", handleItemsMarkRead)
	registerHandler("items.mark_unread", handleItemsMarkUnread)
	registerHandler("items.archive", handleItemsArchive)
	registerHandler("items.save", handleItemsSave)
	registerHandler("items.unsave", handleItemsUnsave)
}

func handleStreamsList(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	return s.Cache.GetStreams("")
}

type itemsListParams struct {
	StreamID    domain.StreamID `json:"stream_id"`
	IncludeRead bool            `json:"include_read"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
}

func handleItemsList(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p itemsListParams
	// items.list takes a bare stream_id string per spec §6, but also accepts
	// the object form above for the optional paging fields get_items exposes.
	if err := json.Unmarshal(params, &p.StreamID); err == nil && p.StreamID != "" {
		return s.Cache.GetItems(p.StreamID, cache.ItemQueryOptions{IncludeRead: true})
	}
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.StreamID == "" {
		return nil, invalidParamsf("stream_id is required")
	}
	return s.Cache.GetItems(p.StreamID, cache.ItemQueryOptions{IncludeRead: p.IncludeRead, Limit: p.Limit, Offset: p.Offset})
}

type itemIDParams struct {
	ItemID domain.ItemID `json:"item_id"`
}

func decodeItemID(params json.RawMessage) (domain.ItemID, error) {
	var id domain.ItemID
	if err := json.Unmarshal(params, &id); err == nil && id != "" {
		return id, nil
	}
	var p itemIDParams
	if err := unmarshalParams(params, &p); err != nil {
		return "", err
	}
	if p.ItemID == "" {
		return "", invalidParamsf("item_id is required")
	}
	return p.ItemID, nil
}

func handleItemsMarkRead(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	id, err := decodeItemID(params)
	if err != nil {
		return nil, err
	}
	return nil, s.Cache.SetItemFlag(id, "is_read", true)
}

func handleItemsMarkUnread(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	id, err := decodeItemID(params)
	if err != nil {
		return nil, err
	}
	return nil, s.Cache.SetItemFlag(id, "is_read", false)
}

func handleItemsArchive(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	id, err := decodeItemID(params)
	if err != nil {
		return nil, err
	}
	return nil, s.Cache.SetItemFlag(id, "is_archived", true)
}

func handleItemsSave(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	id, err := decodeItemID(params)
	if err != nil {
		return nil, err
	}
	return nil, s.Cache.SetItemFlag(id, "is_saved", true)
}

func handleItemsUnsave(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	id, err := decodeItemID(params)
	if err != nil {
		return nil, err
	}
	return nil, s.Cache.SetItemFlag(id, "is_saved", false)
}
