package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
	"github.com/dmmcquay/leelawatcher/internal/ratelimit"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultClientID identifies requests that carry no client ID. Over stdio
// there is exactly one client.
const DefaultClientID = "stdio"

type clientIDKey struct{}

// ContextWithClientID tags ctx with the calling client.
func ContextWithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// Middleware wraps MCP tool handlers with rate limiting, metrics and logging.
type Middleware struct {
	logger      logging.ContextLogger
	metrics     *metrics.PrometheusCollector
	rateLimiter *ratelimit.Limiter
}

// NewMiddleware creates a new middleware instance. metrics and rateLimiter
// may be nil.
func NewMiddleware(logger logging.ContextLogger, metrics *metrics.PrometheusCollector, rateLimiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rateLimiter,
	}
}

// ToolHandler is the function signature for MCP tool handlers.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// WrapTool wraps a tool handler with middleware functionality.
func (m *Middleware) WrapTool(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		clientID := extractClientID(ctx, request)

		m.logger.Info("Tool request received",
			"tool", toolName,
			"client", clientID,
			"arguments", request.Params.Arguments,
		)

		if err := m.rateLimiter.Allow(clientID, toolName); err != nil {
			m.logger.Warn("Rate limit exceeded",
				"tool", toolName,
				"client", clientID,
				"retry_after", m.rateLimiter.RetryAfter(clientID, toolName),
			)
			m.record(toolName, false, start)
			return nil, fmt.Errorf("tool %s: %w", toolName, err)
		}

		result, err := handler(ctx, request)

		if err != nil {
			m.logger.Error("Tool request failed",
				"tool", toolName,
				"client", clientID,
				"error", err,
				"duration", time.Since(start),
			)
		} else {
			m.logger.Info("Tool request completed",
				"tool", toolName,
				"client", clientID,
				"duration", time.Since(start),
			)
		}
		m.record(toolName, err == nil, start)

		return result, err
	}
}

func (m *Middleware) record(toolName string, success bool, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordToolCall(toolName, success, time.Since(start).Seconds())
	}
}

// extractClientID looks in the context, then the arguments.
func extractClientID(ctx context.Context, request mcp.CallToolRequest) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok && clientID != "" {
		return clientID
	}

	if clientID, ok := arguments(request)["clientID"].(string); ok && clientID != "" {
		return clientID
	}

	return DefaultClientID
}
