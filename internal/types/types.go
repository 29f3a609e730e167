package types

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Values are never mutated after
// they are appended to a history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AgentRequest struct {
	Messages []Message `json:"messages"`
}

// AgentResponse is the success body of POST /api/agent.
type AgentResponse struct {
	Reply string `json:"reply"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

// LastUserContent returns the content of the most recent user message in
// history, or "" when there is none.
func LastUserContent(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content
		}
	}
	return ""
}
