package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gingerrexayers/smt-go/internal/smt/lib"
)

// Restore is the main function for the 'restore' command. It loads a DAG
// file, verifies it, and materialises the tree under the output directory.
func Restore(dagPath, outputDir string) error {
	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("could not resolve output path: %w", err)
	}

	// 1. Load and verify; never write unverified bytes to disk.
	dag, err := lib.LoadFromFile(dagPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", dagPath, err)
	}
	if err := lib.VerifyDag(dag); err != nil {
		return fmt.Errorf("refusing to restore an unverifiable DAG: %w", err)
	}

	// 2. Clean the output directory so the result is an exact replica.
	if err := os.RemoveAll(absOutputDir); err != nil {
		return fmt.Errorf("failed to clean output directory: %w", err)
	}
	if err := os.MkdirAll(absOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to recreate output directory: %w", err)
	}

	fmt.Printf("💧 Restoring %s to \"%s\"...\n", dag.Root[:16], absOutputDir)

	// 3. Recreate the tree.
	if err := lib.CreateDirectory(dag, absOutputDir); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Println("✅ Restore complete!")
	return nil
}
