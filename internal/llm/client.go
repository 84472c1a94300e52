// Package llm wraps the text-completion providers used for intent
// classification behind one narrow interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role    ChatRole
	Content string
}

// Request is a provider-neutral completion request. A negative Temperature
// leaves the provider default in place.
type Request struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Response struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// Client completes a single request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

var ErrNoProvider = errors.New("llm: no provider configured")

// FallbackClient tries Primary and, on any error, Secondary.
type FallbackClient struct {
	Primary   Client
	Secondary Client
	Logger    *slog.Logger
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.Primary == nil && c.Secondary == nil {
		return Response{}, ErrNoProvider
	}
	if c.Primary == nil {
		return c.Secondary.Complete(ctx, req)
	}

	resp, err := c.Primary.Complete(ctx, req)
	if err == nil || c.Secondary == nil {
		return resp, err
	}
	if ctx.Err() != nil {
		return Response{}, err
	}

	if c.Logger != nil {
		c.Logger.Warn("primary llm failed, trying fallback", "error", err)
	}
	resp, ferr := c.Secondary.Complete(ctx, req)
	if ferr != nil {
		return Response{}, fmt.Errorf("llm: primary: %v; fallback: %w", err, ferr)
	}
	return resp, nil
}
