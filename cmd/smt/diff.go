package main

import (
	"github.com/gingerrexayers/smt-go/internal/smt/commands"
	"github.com/spf13/cobra"
)

func NewDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old-dag-file> <new-dag-file>",
		Short: "Compare two DAG files by content address.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Diff(args[0], args[1])
		},
	}
	return cmd
}
