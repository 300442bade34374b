// Package tui renders the interactive device picker.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the picker and blocks until the user quits. The controller is closed on return.
func Run(ctx context.Context, ctrl Controller) error {
	defer ctrl.Close()

	p := tea.NewProgram(NewModel(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
