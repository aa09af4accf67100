// Package rpcservice exposes the hub's unified state over a loopback
// JSON-RPC 2.0 socket, per SPEC_FULL.md §4.H. Framing and the per-connection
// goroutine loop are adapted from the teacher's gin middleware chain
// (internal/api), generalized from "one handler per HTTP route" to "one
// handler per dotted RPC method" dispatched over a raw TCP accept loop
// instead of gin's router.
package rpcservice

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/raibid-labs/scryhub/internal/apierrors"
	"github.com/raibid-labs/scryhub/internal/cache"
	"github.com/raibid-labs/scryhub/internal/domain"
	"github.com/raibid-labs/scryhub/internal/registry"
	"github.com/raibid-labs/scryhub/internal/scheduler"
	"github.com/raibid-labs/scryhub/internal/views"
)

// Request is a single JSON-RPC 2.0 call, newline-delimited on the wire.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a single JSON-RPC 2.0 reply.
type Response struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      json.RawMessage    `json:"id,omitempty"`
	Result  any                `json:"result,omitempty"`
	Error   *apierrors.RPCError `json:"error,omitempty"`
}

// handlerFunc implements one RPC method against the shared server state.
type handlerFunc func(ctx context.Context, s *Server, params json.RawMessage) (any, error)

var (
	handlersMu sync.RWMutex
	handlers   = map[string]handlerFunc{}
)

// registerHandler adds method to the dispatch table. Called from each
// handlers_*.go file's init(), mirroring the teacher's
// routing.RegisterHandler("name", fn) registry idiom (internal/routing).
func registerHandler(method string, fn handlerFunc) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	if _, exists := handlers[method]; exists {
		panic("rpcservice: method " + method + " registered twice")
	}
	handlers[method] = fn
}

// Server owns the TCP listener and the shared state every method handler
// reads or mutates: the registry, cache, unified views and scheduler.
type Server struct {
	Registry  *registry.Registry
	Cache     *cache.Cache
	Views     *views.View
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a Server. Call ListenAndServe to start accepting connections.
func New(reg *registry.Registry, c *cache.Cache, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Registry:  reg,
		Cache:     c,
		Views:     views.NewWithLogger(reg, logger),
		Scheduler: sched,
		Logger:    logger,
	}
}

// ListenAndServe binds addr and accepts connections until ctx is canceled,
// each served by its own goroutine. It blocks until the listener is closed.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpcservice: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.Logger.Info("rpcservice: listening", "addr", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("rpcservice: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Shutdown closes the listener and waits for in-flight connections to
// finish handling their current request.
func (s *Server) Shutdown() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

// serveConn reads newline-delimited JSON-RPC requests from conn and writes
// newline-delimited responses, one request at a time, until the connection
// closes or ctx is canceled. Each connection is tagged with a UUIDv4
// correlation ID so its requests can be traced through the log, the same
// role the teacher's request_id middleware plays for an HTTP request
// (streamspace internal/middleware/request_id.go), generalized here to a
// whole long-lived connection instead of a single HTTP round trip.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.New().String()
	logger := s.Logger.With("conn_id", connID)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			logger.Warn("rpcservice: write response failed", "error", err)
			return
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{JSONRPC: "2.0", Error: apierrors.New(apierrors.CodeInvalidParams, "malformed JSON-RPC request")}
	}

	handlersMu.RLock()
	fn, ok := handlers[req.Method]
	handlersMu.RUnlock()
	if !ok {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: &apierrors.RPCError{Code: -32601, Message: "method not found: " + req.Method}}
	}

	result, err := fn(ctx, s, req.Params)
	if err != nil {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: toRPCError(err)}
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// toRPCError maps a handler error to a JSON-RPC error object, passing
// already-typed *apierrors.RPCError through, mapping the internal/domain
// sentinel error types to their registered namespaced code, and wrapping
// anything else as an internal error per SPEC_FULL.md §4.H family
// partitioning.
func toRPCError(err error) *apierrors.RPCError {
	switch e := err.(type) {
	case *apierrors.RPCError:
		return e
	case *domain.ProviderNotFoundError:
		return apierrors.New(apierrors.CodeProviderNotFound, e.Error())
	case *domain.ProviderCapabilityError:
		return apierrors.New(apierrors.CodeCapabilityUnsupported, e.Error())
	case *domain.ItemNotFoundError:
		return apierrors.New(apierrors.CodeItemNotFound, e.Error())
	case *domain.PluginNotFoundError:
		return apierrors.New(apierrors.CodePluginNotFound, e.Error())
	case *domain.MissingCapabilityError:
		return apierrors.New(apierrors.CodeMissingCapability, e.Error())
	default:
		return apierrors.New(apierrors.CodeInternal, err.Error())
	}
}

// unmarshalParams decodes params into dst, returning an invalid-params RPC
// error on failure rather than the raw json error.
func unmarshalParams(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		return apierrors.New(apierrors.CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return apierrors.New(apierrors.CodeInvalidParams, "invalid params: "+err.Error())
	}
	return nil
}

// invalidParamsf builds an invalid-params RPC error with a custom message.
func invalidParamsf(format string, args ...any) error {
	return apierrors.New(apierrors.CodeInvalidParams, fmt.Sprintf(format, args...))
}
