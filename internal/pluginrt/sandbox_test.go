package pluginrt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raibid-labs/scryhub/internal/domain"
)

type noopHost struct{}

func (noopHost) HTTPGet(ctx context.Context, url string, headers map[string]string) (HTTPResponse, error) {
	return HTTPResponse{Status: 200}, nil
}
func (noopHost) HTTPPost(ctx context.Context, url string, headers map[string]string, body string) (HTTPResponse, error) {
	return HTTPResponse{Status: 200}, nil
}
func (noopHost) GetCredential(ctx context.Context, providerID string) (string, error) {
	return "secret", nil
}
func (noopHost) CacheGet(ctx context.Context, key string) (Value, bool, error) { return nil, false, nil }
func (noopHost) CacheSet(ctx context.Context, key string, value Value, ttlSeconds int) error {
	return nil
}
func (noopHost) Log(ctx context.Context, level, message string) error { return nil }
func (noopHost) NowMillis(ctx context.Context) (int64, error)         { return 0, nil }
func (noopHost) EvalScript(ctx context.Context, source string, scope map[string]Value) (Value, error) {
	return nil, nil
}

func TestSandboxRejectsMissingCapability(t *testing.T) {
	caps := domain.NewCapabilitySet()
	s := NewSandbox(noopHost{}, caps, NewStats())

	_, err := s.HTTPGet(context.Background(), "https://example.com", nil)
	var capErr *domain.MissingCapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, domain.CapNetwork, capErr.Capability)
}

func TestSandboxAllowsGrantedCapability(t *testing.T) {
	caps := domain.NewCapabilitySet()
	caps.Add(domain.CapNetwork)
	s := NewSandbox(noopHost{}, caps, NewStats())

	resp, err := s.HTTPGet(context.Background(), "https://example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
}

func TestSandboxLogAndNowMillisRequireNoCapability(t *testing.T) {
	s := NewSandbox(noopHost{}, domain.NewCapabilitySet(), NewStats())
	assert.NoError(t, s.Log(context.Background(), "info", "hi"))
	_, err := s.NowMillis(context.Background())
	assert.NoError(t, err)
}

func TestSandboxRecordsStats(t *testing.T) {
	caps := domain.NewCapabilitySet()
	caps.Add(domain.CapCredentials)
	stats := NewStats()
	s := NewSandbox(noopHost{}, caps, stats)

	_, err := s.GetCredential(context.Background(), "gmail")
	require.NoError(t, err)
	_, err = s.HTTPGet(context.Background(), "https://example.com", nil)
	assert.Error(t, err, "expected rejection")

	assert.Equal(t, 1, stats.Allowed["get_credential"])
	assert.Equal(t, 1, stats.Rejected["http_get"])
}

func TestSandboxRejectsEvalScriptWithoutCapability(t *testing.T) {
	s := NewSandbox(noopHost{}, domain.NewCapabilitySet(), NewStats())
	_, err := s.EvalScript(context.Background(), "1+1", nil)
	var capErr *domain.MissingCapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, domain.CapScript, capErr.Capability)
}
