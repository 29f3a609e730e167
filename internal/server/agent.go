package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"twin-assistant-backend/internal/store"
	"twin-assistant-backend/internal/types"
)

const (
	maxBodyBytes      = 1 << 20
	maxPromptRunes    = 500
	defaultRecentSize = 20
	maxRecentSize     = 100
)

type agentRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// POST /api/agent
// Body { messages: [{role, content}] } -> { reply }
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req agentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("undecodable agent request")
		s.writeError(w, http.StatusBadRequest, errInvalidMessages)
		return
	}
	history, ok := decodeHistory(req.Messages)
	if !ok {
		s.writeError(w, http.StatusBadRequest, errInvalidMessages)
		return
	}

	ctx, cancel := withTimeout(r.Context(), s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	reply, err := s.responder.Generate(ctx, history)
	status := http.StatusOK
	if err != nil {
		log.Error().Err(err).Int("turns", len(history)).Msg("responder failed")
		status = http.StatusInternalServerError
	}
	s.record(r, store.Exchange{
		ID:         uuid.NewString(),
		Mode:       s.responder.Mode(),
		Turns:      len(history),
		Prompt:     truncateRunes(types.LastUserContent(history), maxPromptRunes),
		Reply:      reply,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  start.UTC(),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	s.writeJSON(w, http.StatusOK, types.AgentResponse{Reply: reply})
}

// GET /api/exchanges?limit=N
func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRecentSize)
	}
	out, err := s.exchanges.Recent(r.Context(), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list exchanges failed")
		s.writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	if out == nil {
		out = []store.Exchange{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"exchanges": out})
}

func (s *Server) record(r *http.Request, e store.Exchange) {
	if err := s.exchanges.Record(r.Context(), e); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("exchange", e.ID).Msg("failed to record exchange")
	}
}

// decodeHistory accepts only a JSON array of message objects, each with a
// user or assistant role.
func decodeHistory(raw json.RawMessage) ([]types.Message, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var msgs []types.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}
	for _, m := range msgs {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			return nil, false
		}
	}
	return msgs, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
