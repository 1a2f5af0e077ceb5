package main

import (
	"github.com/gingerrexayers/smt-go/internal/smt/commands"
	"github.com/spf13/cobra"
)

func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <dag-file>",
		Short: "Verify the integrity of a DAG file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Verify(args[0])
		},
	}
	return cmd
}
