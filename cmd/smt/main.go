package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{Use: "smt"}

	// Add commands
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewRestoreCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewDiffCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
