// Package commands contains the command-line interface for the smt
// application.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/gingerrexayers/smt-go/internal/smt/lib"
)

// BuildOptions are the flags accepted by the 'build' command. Zero values
// defer to smt.yaml in the target directory and then to the built-in
// defaults.
type BuildOptions struct {
	Output    string
	ChunkSize int
	Timestamp bool
	Ignore    bool
}

// Build is the main function for the 'build' command. It constructs a DAG
// from the target path, labels it, verifies it, and writes the canonical
// encoding to the output file.
func Build(target string, opts BuildOptions) error {
	// 1. Initial setup and validation.
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("could not resolve absolute path for %s: %w", target, err)
	}
	info, err := os.Stat(absTarget)
	if err != nil {
		return fmt.Errorf("target does not exist: %s", absTarget)
	}

	fmt.Printf("🌲 Building merkle DAG for \"%s\"...\n", absTarget)

	// 2. Merge flags with the optional per-directory config file.
	cfg := lib.DefaultConfig()
	if info.IsDir() {
		cfg, err = lib.LoadConfig(absTarget)
		if err != nil {
			log.WithError(err).Warn("ignoring unreadable smt.yaml")
			cfg = lib.DefaultConfig()
		}
	}
	builderCfg := lib.BuilderConfig{
		ChunkSize:        cfg.ChunkSize,
		IncludeTimestamp: cfg.Timestamp || opts.Timestamp,
		UseIgnoreRules:   cfg.Ignore || opts.Ignore,
	}
	if opts.ChunkSize > 0 {
		builderCfg.ChunkSize = opts.ChunkSize
	}

	// 3. Build bottom-up and assign labels.
	dag, err := lib.CreateDag(context.Background(), absTarget, builderCfg)
	if err != nil {
		return fmt.Errorf("error building DAG: %w", err)
	}
	if err := lib.CalculateLabels(dag); err != nil {
		return fmt.Errorf("error labelling DAG: %w", err)
	}

	// 4. Verify before writing anything; a DAG that cannot verify is a bug,
	// not an output.
	if err := lib.VerifyDag(dag); err != nil {
		return fmt.Errorf("built DAG failed verification: %w", err)
	}

	// 5. Write the canonical encoding.
	output := opts.Output
	if output == "" {
		output = filepath.Base(absTarget) + ".smt"
	}
	if err := lib.SaveToFile(dag, output); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Println("✅ Build complete!")
	fmt.Printf("   - Root CID: %s\n", dag.Root)
	fmt.Printf("   - Leaves:   %d\n", len(dag.Leafs))
	fmt.Printf("   - Output:   %s\n", output)
	return nil
}
