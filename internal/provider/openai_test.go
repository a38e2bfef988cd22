package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAICompatible_Complete(t *testing.T) {
	var got chatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"MONITOR_CPU\"}"}}]}`))
	})

	p, err := New(Config{Type: TypeGroq, BaseURL: srv.URL + "/", APIKey: "gsk_test"})
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), "system text", "show me cpu")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"MONITOR_CPU"}`, text)

	assert.Equal(t, DefaultGroqModel, got.Model)
	assert.Zero(t, got.Temperature)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system text", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "show me cpu", got.Messages[1].Content)
}

func TestNew_KeepsConfiguredTemperature(t *testing.T) {
	var got chatRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	for _, temp := range []float32{0, 0.7} {
		p, err := New(Config{Type: TypeOllama, BaseURL: srv.URL, Temperature: temp})
		require.NoError(t, err)
		_, err = p.Complete(context.Background(), "s", "u")
		require.NoError(t, err)
		assert.InDelta(t, temp, got.Temperature, 0.0001)
	}
}

func TestOpenAICompatible_MissingKey(t *testing.T) {
	p, err := New(Config{Type: TypeGroq})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "s", "u")
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestOpenAICompatible_OllamaNeedsNoKey(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	p, err := New(Config{Type: TypeOllama, BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestOpenAICompatible_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http status", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "status 401"},
		{"error field", http.StatusOK, `{"error":{"message":"rate limited"}}`, "rate limited"},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse.Error()},
		{"garbage", http.StatusOK, `not json`, "failed to parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			p, err := New(Config{Type: TypeOpenAI, BaseURL: srv.URL, APIKey: "sk-test"})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpenAICompatible_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	p, err := New(Config{Type: TypeGroq, BaseURL: srv.URL, APIKey: "gsk_test"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Complete(ctx, "s", "u")
	assert.Error(t, err)
}
