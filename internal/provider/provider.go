// Package provider adapts remote text-completion services. Every backend is
// an untrusted oracle: any returned text, including prose or adversarial
// content, is a valid completion, and failures are reported as errors for
// the caller to fold into an UNKNOWN intent.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CompletionProvider sends a system prompt and a user prompt and returns the
// raw completion text.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	ErrMissingAPIKey = errors.New("API key not configured")
	ErrEmptyResponse = errors.New("no completion returned")
)

// Config selects and tunes a backend.
type Config struct {
	Type        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

const (
	TypeGroq   = "groq"
	TypeOpenAI = "openai"
	TypeOllama = "ollama"
	TypeGemini = "gemini"
	TypeStatic = "static"
)

const (
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaBaseURL = "http://localhost:11434/v1"

	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultGeminiModel = "gemini-2.5-flash"

	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1024
	DefaultTimeout     = 30 * time.Second
)

// New builds the backend named by cfg.Type. A missing API key is not an
// error here; Complete reports it so a misconfigured provider degrades to
// the UNKNOWN fallback instead of stopping the shell.
func New(cfg Config) (CompletionProvider, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch strings.ToLower(cfg.Type) {
	case "", TypeGroq:
		return NewOpenAICompatible(TypeGroq, withDefaults(cfg, DefaultGroqBaseURL, DefaultGroqModel), true), nil
	case TypeOpenAI:
		return NewOpenAICompatible(TypeOpenAI, withDefaults(cfg, DefaultOpenAIBaseURL, "gpt-4o-mini"), true), nil
	case TypeOllama:
		return NewOpenAICompatible(TypeOllama, withDefaults(cfg, DefaultOllamaBaseURL, "llama3.1"), false), nil
	case TypeGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		return NewGemini(cfg), nil
	case TypeStatic:
		return &Static{Reply: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

func withDefaults(cfg Config, baseURL, model string) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}
