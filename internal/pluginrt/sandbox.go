package pluginrt

import (
	"context"

	"github.com/raibid-labs/scryhub/internal/domain"
)

// Sandbox wraps a HostFunctions implementation with a capability check in
// front of every call. A call for a capability the plugin was not granted
// returns a MissingCapabilityError and never reaches the delegate — no
// partial side effects, matching the original host.rs contract.
type Sandbox struct {
	delegate HostFunctions
	caps     domain.CapabilitySet
	stats    *Stats
}

// Stats counts host calls a sandboxed plugin has made, split by whether
// they were allowed or rejected for a missing capability.
type Stats struct {
	Allowed  map[string]int
	Rejected map[string]int
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{Allowed: map[string]int{}, Rejected: map[string]int{}}
}

func (s *Stats) record(fn string, allowed bool) {
	if s == nil {
		return
	}
	if allowed {
		s.Allowed[fn]++
	} else {
		s.Rejected[fn]++
	}
}

// NewSandbox returns a HostFunctions that enforces caps in front of
// delegate, recording every call in stats (stats may be nil).
func NewSandbox(delegate HostFunctions, caps domain.CapabilitySet, stats *Stats) *Sandbox {
	return &Sandbox{delegate: delegate, caps: caps, stats: stats}
}

func (s *Sandbox) check(fn string, cap domain.Capability) error {
	if !s.caps.Has(cap) {
		s.stats.record(fn, false)
		return &domain.MissingCapabilityError{Capability: cap}
	}
	s.stats.record(fn, true)
	return nil
}

func (s *Sandbox) HTTPGet(ctx context.Context, url string, headers map[string]string) (HTTPResponse, error) {
	if err := s.check("http_get", domain.CapNetwork); err != nil {
		return HTTPResponse{}, err
	}
	return s.delegate.HTTPGet(ctx, url, headers)
}

func (s *Sandbox) HTTPPost(ctx context.Context, url string, headers map[string]string, body string) (HTTPResponse, error) {
	if err := s.check("http_post", domain.CapNetwork); err != nil {
		return HTTPResponse{}, err
	}
	return s.delegate.HTTPPost(ctx, url, headers, body)
}

func (s *Sandbox) GetCredential(ctx context.Context, providerID string) (string, error) {
	if err := s.check("get_credential", domain.CapCredentials); err != nil {
		return "", err
	}
	return s.delegate.GetCredential(ctx, providerID)
}

func (s *Sandbox) CacheGet(ctx context.Context, key string) (Value, bool, error) {
	if err := s.check("cache_get", domain.CapCacheRead); err != nil {
		return nil, false, err
	}
	return s.delegate.CacheGet(ctx, key)
}

func (s *Sandbox) CacheSet(ctx context.Context, key string, value Value, ttlSeconds int) error {
	if err := s.check("cache_set", domain.CapCacheWrite); err != nil {
		return err
	}
	return s.delegate.CacheSet(ctx, key, value, ttlSeconds)
}

// Log and NowMillis require no capability — every plugin may log and read
// the clock.
func (s *Sandbox) Log(ctx context.Context, level, message string) error {
	s.stats.record("log", true)
	return s.delegate.Log(ctx, level, message)
}

func (s *Sandbox) NowMillis(ctx context.Context) (int64, error) {
	s.stats.record("now_millis", true)
	return s.delegate.NowMillis(ctx)
}

func (s *Sandbox) EvalScript(ctx context.Context, source string, scope map[string]Value) (Value, error) {
	if err := s.check("eval_script", domain.CapScript); err != nil {
		return nil, err
	}
	return s.delegate.EvalScript(ctx, source, scope)
}
