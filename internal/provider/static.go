package provider

import (
	"context"
	"sync"
)

// Static returns a canned reply. It backs tests and the "static" provider
// type, where the configured model string is used as the reply.
type Static struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls []StaticCall
}

// StaticCall records one Complete invocation.
type StaticCall struct {
	SystemPrompt string
	UserPrompt   string
}

func (s *Static) Name() string { return TypeStatic }

func (s *Static) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, StaticCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// Calls returns the invocations seen so far.
func (s *Static) Calls() []StaticCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StaticCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Func adapts a function to CompletionProvider.
type Func func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f Func) Name() string { return "func" }

func (f Func) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}
