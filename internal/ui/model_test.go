package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-assistant-backend/internal/chat"
	"twin-assistant-backend/internal/types"
)

func newTestModel(t *testing.T, tr chat.TransportFunc) (Model, *chat.Controller, *chat.ManualScheduler) {
	t.Helper()
	sched := chat.NewManualScheduler()
	ctrl := chat.NewController(tr,
		chat.WithScheduler(sched),
		chat.WithRunner(func(f func()) { f() }),
	)
	t.Cleanup(ctrl.Close)
	return New(ctrl, "http://localhost:8080"), ctrl, sched
}

func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func reply(text string) chat.TransportFunc {
	return func(context.Context, []types.Message) (string, error) { return text, nil }
}

func TestModelShowsGreeting(t *testing.T) {
	m, _, _ := newTestModel(t, reply("ok"))

	require.Len(t, m.state.Messages, 1)
	assert.Contains(t, m.viewport.View(), "数字孪生助手")
	assert.Contains(t, m.View(), "城市数字孪生")
}

func TestModelTypingUpdatesPendingInput(t *testing.T) {
	m, ctrl, _ := newTestModel(t, reply("ok"))

	m = typeText(t, m, "你好")
	assert.Equal(t, "你好", m.input.Value())
	assert.Equal(t, "你好", ctrl.State().PendingInput)
}

func TestModelEnterSendsAndRevealsReply(t *testing.T) {
	m, ctrl, sched := newTestModel(t, reply("您好！"))

	m = typeText(t, m, "你好")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, m.input.Value())
	assert.True(t, m.state.AwaitingReply)
	assert.Contains(t, m.viewport.View(), "你好")
	assert.Contains(t, m.viewport.View(), chat.TypingLabel)

	sched.Advance(chat.PaceDelay("您好！"))
	next, _ := m.Update(stateMsg{rev: 0, state: ctrl.State()})
	m = next.(Model)
	assert.True(t, m.state.AwaitingReply, "stale revision is dropped")

	rev, s := ctrl.Snapshot()
	next, _ = m.Update(stateMsg{rev: rev, state: s})
	m = next.(Model)
	assert.False(t, m.state.AwaitingReply)
	require.Len(t, m.state.Messages, 3)
	assert.Contains(t, m.viewport.View(), "您好！")
	assert.NotContains(t, m.viewport.View(), chat.TypingLabel)
}

func TestModelIgnoresKeysWhileAwaiting(t *testing.T) {
	m, ctrl, _ := newTestModel(t, reply("ok"))

	m = typeText(t, m, "问题")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.state.AwaitingReply)

	m = typeText(t, m, "more")
	assert.Empty(t, m.input.Value())
	assert.Empty(t, ctrl.State().PendingInput)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, ctrl.State().Messages, 2)
}

func TestModelBlankEnterKeepsInput(t *testing.T) {
	m, ctrl, _ := newTestModel(t, reply("ok"))

	m = typeText(t, m, "   ")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "   ", m.input.Value())
	assert.Len(t, ctrl.State().Messages, 1)
}

func TestModelToggleExpandsChat(t *testing.T) {
	m, _, _ := newTestModel(t, reply("ok"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})

	assert.True(t, m.state.Expanded)
	assert.Equal(t, m.width, m.viewport.Width)
	assert.NotContains(t, m.View(), "城市数字孪生")
	assert.Contains(t, m.View(), hintShrink)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})
	assert.False(t, m.state.Expanded)
	assert.Less(t, m.viewport.Width, m.width)
}

func TestModelFloodReplyShowsDownloadLink(t *testing.T) {
	called := false
	m, ctrl, sched := newTestModel(t, func(context.Context, []types.Message) (string, error) {
		called = true
		return "", nil
	})

	m = typeText(t, m, "防汛简报")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	sched.Advance(chat.FloodDelay)

	rev, s := ctrl.Snapshot()
	next, _ := m.Update(stateMsg{rev: rev, state: s})
	m = next.(Model)

	assert.False(t, called)
	assert.Contains(t, m.viewport.View(), chat.DownloadLabel)
	assert.Contains(t, m.viewport.View(), "http://localhost:8080/docs/flood_report.pdf")
}

func TestModelFailureShowsErrorReply(t *testing.T) {
	m, _, _ := newTestModel(t, func(context.Context, []types.Message) (string, error) {
		return "", errors.New("connection refused")
	})

	m = typeText(t, m, "你好")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.state.AwaitingReply)
	assert.Contains(t, m.viewport.View(), chat.ErrorReply)
}

func TestModelQuitKeys(t *testing.T) {
	m, _, _ := newTestModel(t, reply("ok"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
