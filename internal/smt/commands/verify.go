package commands

import (
	"fmt"

	"github.com/gingerrexayers/smt-go/internal/smt/lib"
	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// Verify is the main function for the 'verify' command. It loads a DAG file
// and runs a full verification, falling back to partial verification when
// the file holds only a subset of the leaves.
func Verify(dagPath string) error {
	dag, err := lib.LoadFromFile(dagPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", dagPath, err)
	}

	if lib.IsPartial(dag) {
		fmt.Printf("🔍 Verifying partial DAG \"%s\" (%d leaves present)...\n", dagPath, len(dag.Leafs))
		if err := lib.VerifyPartial(dag); err != nil {
			return reportFailure(err)
		}
	} else {
		fmt.Printf("🔍 Verifying DAG \"%s\" (%d leaves)...\n", dagPath, len(dag.Leafs))
		if err := lib.VerifyDag(dag); err != nil {
			return reportFailure(err)
		}
	}

	fmt.Println("✅ Verification passed!")
	fmt.Printf("   - Root CID: %s\n", dag.Root)
	return nil
}

func reportFailure(err error) error {
	if cid := types.ErrorCID(err); cid != "" {
		return fmt.Errorf("verification failed at leaf %s: %w", cid, err)
	}
	return fmt.Errorf("verification failed: %w", err)
}
