package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"twin-assistant-backend/internal/chat"
)

const (
	title      = "数字孪生助手"
	hintExpand = "ctrl+f 放大"
	hintShrink = "ctrl+f 缩小"
)

func (m Model) View() string {
	v := chat.Render(m.state)

	chatCol := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(v),
		m.viewport.View(),
		m.renderInput(v),
	)
	if v.Layout == chat.LayoutFull {
		return chatCol
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderPanel(), chatCol)
}

func (m Model) renderHeader(v chat.View) string {
	hint := hintExpand
	if v.Layout == chat.LayoutFull {
		hint = hintShrink
	}
	w := m.chatWidth()
	left := titleStyle.Render(title)
	right := hintStyle.Render(hint)
	gap := max(w-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return headerStyle.Width(w).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderInput(v chat.View) string {
	line := m.input.View()
	if !v.InputEnabled {
		line = hintStyle.Render("› " + placeholder)
	}
	return inputStyle.Width(m.chatWidth()).Render(line)
}

func (m Model) renderPanel() string {
	w := m.panelWidth()
	body := strings.Join([]string{
		titleStyle.Render("城市数字孪生"),
		"",
		hintStyle.Render("回车    发送"),
		hintStyle.Render("ctrl+f  全屏对话"),
		hintStyle.Render("↑/↓     滚动"),
		hintStyle.Render("esc     退出"),
	}, "\n")
	// border (2) + padding (4)
	return panelStyle.Width(max(w-2, 1)).Height(max(m.height-4, 1)).Render(body)
}

func (m Model) renderMessages(v chat.View) string {
	width := m.chatWidth()
	maxBubble := max(width*4/5, 10)

	rows := make([]string, 0, len(v.Bubbles)+1)
	for _, b := range v.Bubbles {
		rows = append(rows, m.renderBubble(b, width, maxBubble))
	}
	if v.Typing {
		typing := assistantBubbleStyle.Render(m.spin.View() + " " + chat.TypingLabel)
		rows = append(rows, lipgloss.PlaceHorizontal(width, lipgloss.Left, typing))
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderBubble(b chat.Bubble, width, maxBubble int) string {
	style := assistantBubbleStyle
	pos := lipgloss.Left
	if b.Align == chat.AlignRight {
		style = userBubbleStyle
		pos = lipgloss.Right
	}

	text := b.Text
	if b.Download != nil {
		text = "⬇ " + b.Download.Label + "\n" + linkStyle.Render(m.docBase+b.Download.Href)
	}

	// frame = padding plus border for the assistant style
	frame := style.GetHorizontalFrameSize()
	inner := min(lipgloss.Width(text), maxBubble-frame)
	bubble := style.Width(max(inner, 1) + style.GetHorizontalPadding()).Render(text)
	return lipgloss.PlaceHorizontal(width, pos, bubble)
}
