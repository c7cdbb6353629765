package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func main() {
	var addr string
	var interval time.Duration

	rootCmd := &cobra.Command{
		Use:   "enipmon",
		Short: "Read-only occupancy dashboard for a running enipd adapter",
		Long: `enipmon polls an enipd adapter's metrics listener and renders its
session table, connection, and delayed-reply queue occupancy.`,
		Example:       `  enipmon --addr 127.0.0.1:8787`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newModel(addr, interval), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run dashboard: %w", err)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "address of the enipd metrics listener")
	rootCmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
