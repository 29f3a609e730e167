package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-assistant-backend/internal/types"
)

func TestSendPostsHistory(t *testing.T) {
	var got types.AgentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/agent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(types.AgentResponse{Reply: "您好！很高兴为您服务。"})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	history := []types.Message{{Role: "assistant", Content: "hi"}, {Role: "user", Content: "你好"}}
	reply, err := c.Send(context.Background(), history)
	require.NoError(t, err)

	assert.Equal(t, "您好！很高兴为您服务。", reply)
	assert.Equal(t, history, got.Messages)
}

func TestSendNilHistoryIsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"reply":"x"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Send(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw["messages"]))
}

func TestSendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Send(context.Background(), nil)
	require.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "500")
}

func TestSendBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Send(context.Background(), nil)
	require.Error(t, err)
}

func TestSendTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	_, err := New(srv.URL, 50*time.Millisecond).Send(context.Background(), nil)
	require.Error(t, err)
}

func TestDocURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/docs/flood_report.pdf", New("http://localhost:8080/", 0).DocURL("/docs/flood_report.pdf"))
}
