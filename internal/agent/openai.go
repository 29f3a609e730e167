package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"twin-assistant-backend/internal/types"
)

const (
	DefaultModel = openai.GPT3Dot5Turbo
	temperature  = 0.5
	maxTokens    = 512
)

// OpenAIResponder forwards the whole history to a chat-completion provider.
// Provider failures are never returned; the caller gets UnavailableReply.
type OpenAIResponder struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAIResponder(apiKey, baseURL, model string, log zerolog.Logger) *OpenAIResponder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIResponder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log.With().Str("component", "openai").Logger(),
	}
}

func (o *OpenAIResponder) Mode() string { return ModeOpenAI }

func (o *OpenAIResponder) Generate(ctx context.Context, history []types.Message) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    convertMessages(history),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		o.log.Warn().Err(err).Int("turns", len(history)).Msg("chat completion failed")
		return UnavailableReply, nil
	}
	if len(resp.Choices) == 0 {
		o.log.Warn().Str("id", resp.ID).Msg("chat completion returned no choices")
		return NoReply, nil
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return NoReply, nil
	}
	return reply, nil
}

func convertMessages(msgs []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
