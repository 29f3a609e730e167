package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"twin-assistant-backend/internal/types"
)

// ErrStatus is wrapped into errors for non-2xx endpoint responses.
var ErrStatus = errors.New("unexpected status")

const maxResponseBytes = 1 << 20

// AgentClient calls POST /api/agent on a running server.
type AgentClient struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A zero timeout leaves requests bounded
// only by their context.
func New(baseURL string, timeout time.Duration) *AgentClient {
	return &AgentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Send implements chat.Transport.
func (c *AgentClient) Send(ctx context.Context, history []types.Message) (string, error) {
	if history == nil {
		history = []types.Message{}
	}
	b, err := json.Marshal(types.AgentRequest{Messages: history})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agent", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e types.ErrorResponse
		_ = json.NewDecoder(body).Decode(&e)
		return "", fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, e.Error)
	}
	var out types.AgentResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	return out.Reply, nil
}

// DocURL resolves a server-relative document path.
func (c *AgentClient) DocURL(path string) string {
	return c.baseURL + path
}
