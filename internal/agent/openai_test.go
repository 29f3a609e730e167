package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-assistant-backend/internal/types"
)

type capturedRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

func newProvider(t *testing.T, handler http.HandlerFunc) *OpenAIResponder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIResponder("sk-test", srv.URL+"/v1", "", zerolog.Nop())
}

func TestOpenAIResponderForwardsHistory(t *testing.T) {
	var got capturedRequest
	var auth, path string
	r := newProvider(t, func(w http.ResponseWriter, req *http.Request) {
		auth = req.Header.Get("Authorization")
		path = req.URL.Path
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  城市运行平稳。 \n"},"finish_reason":"stop"}]}`))
	})

	history := []types.Message{assistant("您好"), user("城市状态如何？")}
	reply, err := r.Generate(context.Background(), history)
	require.NoError(t, err)

	assert.Equal(t, "城市运行平稳。", reply)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	assert.Equal(t, 512, got.MaxTokens)
	assert.Equal(t, history, got.Messages)
}

func TestOpenAIResponderFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, UnavailableReply},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, UnavailableReply},
		{"malformed body", http.StatusOK, `not json`, UnavailableReply},
		{"no choices", http.StatusOK, `{"id":"c2","choices":[]}`, NoReply},
		{"blank content", http.StatusOK, `{"id":"c3","choices":[{"message":{"role":"assistant","content":"   "}}]}`, NoReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			r := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			reply, err := r.Generate(context.Background(), []types.Message{user("hi")})
			require.NoError(t, err)
			assert.Equal(t, tc.want, reply)
			assert.EqualValues(t, 1, calls.Load(), "no retries")
		})
	}
}

func TestOpenAIResponderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewOpenAIResponder("sk-test", url+"/v1", "", zerolog.Nop())
	reply, err := r.Generate(context.Background(), []types.Message{user("hi")})
	require.NoError(t, err)
	assert.Equal(t, UnavailableReply, reply)
}
