package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"twin-assistant-backend/internal/types"
)

const (
	ModeRules  = "rules"
	ModeOpenAI = "openai"

	// Replies shown in place of provider failures.
	UnavailableReply = "抱歉，服务暂时不可用。"
	NoReply          = "抱歉，未获取到有效回复。"
)

// Responder produces the next assistant message for a conversation.
type Responder interface {
	Generate(ctx context.Context, history []types.Message) (string, error)
	Mode() string
}

type Options struct {
	// APIKey selects the provider path when non-empty.
	APIKey  string
	BaseURL string
	Model   string
	// RulesFile optionally replaces the built-in rule table.
	RulesFile string
	Logger    zerolog.Logger
}

// New returns an OpenAI-backed responder when a credential is supplied and a
// rule-based one otherwise.
func New(opts Options) (Responder, error) {
	if opts.APIKey != "" {
		return NewOpenAIResponder(opts.APIKey, opts.BaseURL, opts.Model, opts.Logger), nil
	}
	rules := DefaultRules()
	if opts.RulesFile != "" {
		var err error
		rules, err = LoadRules(opts.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load rules %s: %w", opts.RulesFile, err)
		}
	}
	return NewRuleResponder(rules), nil
}
