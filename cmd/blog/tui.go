package main

import (
	"github.com/DoctorGattino/blog/cache"
	"github.com/DoctorGattino/blog/demo/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse articles interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context(), cache.WithSingleFlight()); err != nil {
				return err
			}
			username := ""
			if u, ok := a.session.User(); ok {
				username = u.Username
			}

			model := tui.NewModel(a.cache, a.cfg.PageSize, username)
			defer model.Close()

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
}
