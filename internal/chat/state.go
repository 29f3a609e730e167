// Package chat holds the chat session state and the controller that moves it
// between idle and awaiting a reply.
//
// All transitions go through Update, a pure function from (State, Event) to
// the next State plus the effects the caller must run. Controller executes
// those effects against a Transport and a Scheduler, which keeps Update
// testable without timers or a network.
package chat

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"twin-assistant-backend/internal/types"
)

const (
	Greeting = "您好，我是数字孪生助手，请问需要了解哪部分城市信息？"
	// ErrorReply is appended when the agent endpoint cannot be reached.
	ErrorReply = "抱歉，服务暂时不可用。"

	// FloodKeyword short-circuits the agent and answers with the bulletin
	// download instead of text.
	FloodKeyword = "防汛简报"
	FloodDocURL  = "/docs/flood_report.pdf"
	FloodDelay   = 600 * time.Millisecond

	perRuneDelay = 30 * time.Millisecond
	minPace      = 600 * time.Millisecond
	maxPace      = 3000 * time.Millisecond
)

// State is a snapshot of one chat session. Messages is shared between
// snapshots and must be treated as read-only.
type State struct {
	Messages      []types.Message
	PendingInput  string
	AwaitingReply bool
	Typing        bool
	Expanded      bool
}

// NewState returns a session seeded with the assistant greeting.
func NewState() State {
	return State{Messages: []types.Message{{Role: types.RoleAssistant, Content: Greeting}}}
}

// CanSend reports whether SendRequested would start an exchange.
func (s State) CanSend() bool {
	return !s.AwaitingReply && strings.TrimSpace(s.PendingInput) != ""
}

type Event interface{ event() }

type (
	InputChanged   struct{ Text string }
	SendRequested  struct{}
	ReplyArrived   struct{ Reply string }
	ReplyFailed    struct{ Err error }
	ReplyDue       struct{ Content string }
	ToggleExpanded struct{}
)

func (InputChanged) event()   {}
func (SendRequested) event()  {}
func (ReplyArrived) event()   {}
func (ReplyFailed) event()    {}
func (ReplyDue) event()       {}
func (ToggleExpanded) event() {}

type Effect interface{ effect() }

// CallAgent asks the transport for a reply to History.
type CallAgent struct{ History []types.Message }

// Schedule delivers Event after the given delay.
type Schedule struct {
	After time.Duration
	Event Event
}

func (CallAgent) effect() {}
func (Schedule) effect()  {}

// Update applies ev to s. Events that do not apply in the current state
// return s unchanged and no effects.
func Update(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case InputChanged:
		if s.AwaitingReply {
			return s, nil
		}
		s.PendingInput = ev.Text
		return s, nil

	case SendRequested:
		if !s.CanSend() {
			return s, nil
		}
		text := s.PendingInput
		s.Messages = appendMessage(s.Messages, types.Message{Role: types.RoleUser, Content: text})
		s.PendingInput = ""
		s.AwaitingReply = true
		s.Typing = true
		if strings.Contains(text, FloodKeyword) {
			return s, []Effect{Schedule{After: FloodDelay, Event: ReplyDue{}}}
		}
		return s, []Effect{CallAgent{History: s.Messages}}

	case ReplyArrived:
		if !s.AwaitingReply {
			return s, nil
		}
		return s, []Effect{Schedule{After: PaceDelay(ev.Reply), Event: ReplyDue{Content: ev.Reply}}}

	case ReplyDue:
		if !s.AwaitingReply {
			return s, nil
		}
		s.Messages = appendMessage(s.Messages, types.Message{Role: types.RoleAssistant, Content: ev.Content})
		s.AwaitingReply = false
		s.Typing = false
		return s, nil

	case ReplyFailed:
		if !s.AwaitingReply {
			return s, nil
		}
		s.Messages = appendMessage(s.Messages, types.Message{Role: types.RoleAssistant, Content: ErrorReply})
		s.AwaitingReply = false
		s.Typing = false
		return s, nil

	case ToggleExpanded:
		s.Expanded = !s.Expanded
		return s, nil
	}
	return s, nil
}

// PaceDelay is how long a reply is held back before it is shown:
// 30ms per character, clamped to [600ms, 3s].
func PaceDelay(reply string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(reply)) * perRuneDelay
	return min(max(d, minPace), maxPace)
}

func appendMessage(msgs []types.Message, m types.Message) []types.Message {
	return append(slices.Clip(msgs), m)
}
