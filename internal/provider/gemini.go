package provider

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// Gemini uses the Google GenAI SDK. The client is created on first use so a
// missing key surfaces per query rather than at startup.
type Gemini struct {
	cfg Config

	once   sync.Once
	client *genai.Client
	err    error
}

func NewGemini(cfg Config) *Gemini {
	return &Gemini{cfg: cfg}
}

func (g *Gemini) Name() string { return TypeGemini }

func (g *Gemini) init(ctx context.Context) error {
	g.once.Do(func() {
		if g.cfg.APIKey == "" {
			g.err = fmt.Errorf("%s: %w", TypeGemini, ErrMissingAPIKey)
			return
		}
		g.client, g.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if g.err != nil {
			g.err = fmt.Errorf("failed to create GenAI client: %w", g.err)
		}
	})
	return g.err
}

func (g *Gemini) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := g.init(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens:   int32(g.cfg.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
