package main

import (
	"github.com/gingerrexayers/smt-go/internal/smt/commands"
	"github.com/spf13/cobra"
)

func NewBuildCommand() *cobra.Command {
	var opts commands.BuildOptions

	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Build a Scionic Merkle DAG from a file or directory.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return commands.Build(target, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file (defaults to <basename>.smt)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "Chunk size in bytes for splitting large files")
	cmd.Flags().BoolVar(&opts.Timestamp, "timestamp", false, "Record a build timestamp on the root leaf")
	cmd.Flags().BoolVar(&opts.Ignore, "ignore", false, "Honor .smtignore patterns in the target directory")

	return cmd
}
