package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hush/internal/daemon"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hushd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "hushd %s\n", daemon.Version)
			return nil
		},
	}
}
