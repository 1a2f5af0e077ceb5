package main

import (
	"github.com/gingerrexayers/smt-go/internal/smt/commands"
	"github.com/spf13/cobra"
)

func NewRestoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <dag-file> <output-directory>",
		Short: "Recreate the filesystem tree stored in a DAG file.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.Restore(args[0], args[1])
		},
	}
	return cmd
}
