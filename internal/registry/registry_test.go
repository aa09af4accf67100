package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/provider"
)

type mockProvider struct {
	id   string
	caps provider.Capabilities
}

func (m *mockProvider) ID() string   { return m.id }
func (m *mockProvider) Name() string { return m.id }
func (m *mockProvider) HealthCheck(ctx context.Context) (provider.Health, error) {
	return provider.Health{IsHealthy: true}, nil
}
func (m *mockProvider) Sync(ctx context.Context) (provider.SyncResult, error) {
	return provider.SyncResult{Success: true}, nil
}
func (m *mockProvider) Capabilities() provider.Capabilities { return m.caps }
func (m *mockProvider) AvailableActions(item domain.Item) []provider.Action { return nil }
func (m *mockProvider) ExecuteAction(ctx context.Context, item domain.Item, actionID string, params map[string]any) (provider.ActionResult, error) {
	return provider.ActionResult{Success: true}, nil
}

func TestRegisterGetListCount(t *testing.T) {
	r := New()
	r.Register(&mockProvider{id: "rss"})
	r.Register(&mockProvider{id: "reddit"})

	require.Equal(t, 2, r.Count())
	assert.True(t, r.Contains("rss"))
	assert.Equal(t, []string{"reddit", "rss"}, r.List())
}

func TestReplaceProviderKeepsCountStable(t *testing.T) {
	r := New()
	r.Register(&mockProvider{id: "rss", caps: provider.Capabilities{HasFeeds: true}})
	r.Register(&mockProvider{id: "rss", caps: provider.Capabilities{HasFeeds: false}})

	require.Equal(t, 1, r.Count())
	p, ok := r.Get("rss")
	require.True(t, ok)
	assert.False(t, p.Capabilities().HasFeeds, "expected the second registration to win")
}

func TestGetMissingReturnsNotFoundError(t *testing.T) {
	r := New()
	_, err := r.MustGet("ghost")
	assert.Error(t, err)
}

func TestRemoveAndClear(t *testing.T) {
	r := New()
	r.Register(&mockProvider{id: "rss"})
	r.Remove("rss")
	assert.False(t, r.Contains("rss"))

	r.Register(&mockProvider{id: "a"})
	r.Register(&mockProvider{id: "b"})
	r.Clear()
	assert.Equal(t, 0, r.Count())
}
