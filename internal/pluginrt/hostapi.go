package pluginrt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/redis/go-redis/v9"
)

// TokenFetcher resolves a stored OAuth/credential token for a provider ID.
// The concrete implementation talks to the credentials daemon; it is opaque
// to the plugin runtime by design (SPEC_FULL.md §1's "out of scope"
// boundary), so this interface is the entire surface pluginrt depends on.
type TokenFetcher interface {
	FetchToken(ctx context.Context, providerID string) (string, error)
}

// DefaultHostFunctions is the concrete, ungated implementation of
// HostFunctions: a real HTTP client, a Redis-backed per-plugin scratch
// cache, a TokenFetcher, and structured logging. Sandbox wraps this with
// capability checks — nothing here gates anything itself.
type DefaultHostFunctions struct {
	PluginID string
	HTTP     *http.Client
	Redis    *redis.Client
	Tokens   TokenFetcher
	Logger   *slog.Logger
}

// NewDefaultHostFunctions returns a DefaultHostFunctions with sane defaults
// for the fields left zero-valued.
func NewDefaultHostFunctions(pluginID string, rdb *redis.Client, tokens TokenFetcher, logger *slog.Logger) *DefaultHostFunctions {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultHostFunctions{
		PluginID: pluginID,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		Redis:    rdb,
		Tokens:   tokens,
		Logger:   logger,
	}
}

func (h *DefaultHostFunctions) HTTPGet(ctx context.Context, url string, headers map[string]string) (HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HTTPResponse{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.do(req)
}

func (h *DefaultHostFunctions) HTTPPost(ctx context.Context, url string, headers map[string]string, body string) (HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return HTTPResponse{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.do(req)
}

func (h *DefaultHostFunctions) do(req *http.Request) (HTTPResponse, error) {
	resp, err := h.HTTP.Do(req)
	if err != nil {
		return HTTPResponse{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return HTTPResponse{}, err
	}
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return HTTPResponse{Status: resp.StatusCode, Headers: headers, Body: string(body)}, nil
}

func (h *DefaultHostFunctions) GetCredential(ctx context.Context, providerID string) (string, error) {
	if h.Tokens == nil {
		return "", fmt.Errorf("pluginrt: no credential source configured")
	}
	return h.Tokens.FetchToken(ctx, providerID)
}

func (h *DefaultHostFunctions) cacheKey(key string) string {
	return fmt.Sprintf("plugin:%s:%s", h.PluginID, key)
}

// CacheGet reads a plugin's scratch value from Redis. Expiry is handled
// natively by Redis (SET ... EX), so there is no client-side lazy-expiry
// check the way the original's in-process HashMap cache needed.
func (h *DefaultHostFunctions) CacheGet(ctx context.Context, key string) (Value, bool, error) {
	raw, err := h.Redis.Get(ctx, h.cacheKey(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// CacheSet stores a plugin's scratch value. Per spec's cache expiry
// scenario, ttlSeconds < 0 (the ttl argument was omitted entirely) means no
// expiry; ttlSeconds == 0 means expire immediately (the read-side cache_get
// must see it absent after any wait, however small — go-redis's zero
// Duration means "no expiry", so it is not reused here for that case).
func (h *DefaultHostFunctions) CacheSet(ctx context.Context, key string, value Value, ttlSeconds int) error {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	var ttl time.Duration
	switch {
	case ttlSeconds < 0:
		ttl = 0 // redis: no expiry
	case ttlSeconds == 0:
		ttl = time.Millisecond // smallest resolution redis supports: expires almost immediately
	default:
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return h.Redis.Set(ctx, h.cacheKey(key), s, ttl).Err()
}

func (h *DefaultHostFunctions) Log(ctx context.Context, level, message string) error {
	logger := h.Logger.With("plugin", h.PluginID)
	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return nil
}

func (h *DefaultHostFunctions) NowMillis(ctx context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}

// EvalScript runs a short snippet on a fresh goja runtime, the "script"
// capability extension point: a plugin's manifest may declare a capability
// to run a host-provided helper expression against VM-supplied values
// without growing the bytecode instruction set itself. One runtime per call
// keeps scripts from leaking state between plugin invocations.
func (h *DefaultHostFunctions) EvalScript(ctx context.Context, source string, scope map[string]Value) (Value, error) {
	vm := goja.New()
	for k, v := range scope {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("pluginrt: bind script scope %q: %w", k, err)
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result, err := vm.RunString(source)
	if err != nil {
		return nil, fmt.Errorf("pluginrt: eval_script: %w", err)
	}
	return result.Export(), nil
}
