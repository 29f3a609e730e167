package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"twin-assistant-backend/internal/chat"
)

// Run starts the terminal program for ctrl and blocks until the user quits.
// The controller is closed on return.
func Run(ctrl *chat.Controller, docBase string, opts ...tea.ProgramOption) error {
	defer ctrl.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(ctrl, docBase), opts...)

	// Send blocks until the program loop reads the message, and the loop may
	// itself be dispatching; hand off on a new goroutine and let the model
	// discard stale revisions.
	unsubscribe := ctrl.Subscribe(func(rev uint64, s chat.State) {
		go p.Send(stateMsg{rev: rev, state: s})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run chat ui: %w", err)
	}
	return nil
}
