package chat

import (
	"strings"

	"twin-assistant-backend/internal/types"
)

const (
	TypingLabel   = "正在输入…"
	DownloadLabel = "下载防汛简报"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

type Layout int

const (
	LayoutSplit Layout = iota
	LayoutFull
)

// Link is a download control rendered in place of message text.
type Link struct {
	Label string
	Href  string
}

type Bubble struct {
	Role     string
	Align    Align
	Text     string
	Download *Link
}

// View is everything a renderer needs to draw one frame.
type View struct {
	Layout       Layout
	Bubbles      []Bubble
	Typing       bool
	Input        string
	InputEnabled bool
	SendEnabled  bool
}

func Render(s State) View {
	v := View{
		Layout:       LayoutSplit,
		Bubbles:      make([]Bubble, 0, len(s.Messages)),
		Typing:       s.Typing,
		Input:        s.PendingInput,
		InputEnabled: !s.AwaitingReply,
		SendEnabled:  s.CanSend(),
	}
	if s.Expanded {
		v.Layout = LayoutFull
	}
	for i, m := range s.Messages {
		b := Bubble{Role: m.Role, Align: AlignLeft, Text: m.Content}
		if m.Role == types.RoleUser {
			b.Align = AlignRight
		}
		if isFloodReply(s.Messages, i) {
			b.Text = ""
			b.Download = &Link{Label: DownloadLabel, Href: FloodDocURL}
		}
		v.Bubbles = append(v.Bubbles, b)
	}
	return v
}

// isFloodReply reports whether msgs[i] answers a flood-bulletin request.
func isFloodReply(msgs []types.Message, i int) bool {
	if i == 0 || msgs[i].Role != types.RoleAssistant {
		return false
	}
	prev := msgs[i-1]
	return prev.Role == types.RoleUser && strings.Contains(prev.Content, FloodKeyword)
}
