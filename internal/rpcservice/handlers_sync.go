package rpcservice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/raibid-labs/scryhub/internal/cache"
)

func init() {
	registerHandler("sync.status", handleSyncStatus)
	registerHandler("sync.trigger", handleSyncTrigger)
}

// syncStatusEntry is one provider's row of sync.status() → { provider_id:
// {last_sync?, is_syncing, error?} }, per spec §6.
type syncStatusEntry struct {
	LastSync   *string `json:"last_sync,omitempty"`
	IsSyncing  bool    `json:"is_syncing"`
	Error      *string `json:"error,omitempty"`
	ErrorCount int     `json:"error_count"`
}

func handleSyncStatus(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var states []cache.SyncState
	var err error
	if s.Scheduler != nil {
		m, serr := s.Scheduler.Status()
		if serr != nil {
			return nil, serr
		}
		for _, st := range m {
			states = append(states, st)
		}
	} else {
		states, err = s.Cache.GetAllSyncStates()
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]syncStatusEntry, len(states))
	for _, st := range states {
		entry := syncStatusEntry{IsSyncing: st.InProgress, ErrorCount: st.ErrorCount, Error: st.LastError}
		if st.LastSync != nil {
			v := st.LastSync.UTC().Format(time.RFC3339Nano)
			entry.LastSync = &v
		}
		out[st.ProviderID] = entry
	}
	return out, nil
}

type syncTriggerParams struct {
	ProviderID string `json:"provider_id"`
}

func handleSyncTrigger(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var p syncTriggerParams
	if err := json.Unmarshal(params, &p.ProviderID); err != nil {
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
	}
	if p.ProviderID == "" {
		return nil, invalidParamsf("provider_id is required")
	}
	if s.Scheduler == nil {
		return nil, invalidParamsf("no scheduler configured")
	}
	return nil, s.Scheduler.TriggerSync(p.ProviderID)
}
