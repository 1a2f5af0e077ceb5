package main

import (
	"github.com/gingerrexayers/smt-go/internal/smt/commands"
	"github.com/spf13/cobra"
)

func NewInspectCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect <dag-file>",
		Short: "Show the leaves of a DAG file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Inspect(args[0], jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Dump the DAG as JSON instead of a table")

	return cmd
}
