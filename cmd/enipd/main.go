package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "enipd",
		Short: "EtherNet/IP session and CPF adapter",
		Long: `enipd runs a standalone EtherNet/IP encapsulation endpoint: it terminates
TCP/UDP sessions, parses the Common Packet Format, and dispatches CIP
requests into a small object registry behind a configurable access
policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
