package commands

import (
	"fmt"
	"sort"

	"github.com/gingerrexayers/smt-go/internal/smt/lib"
)

// Diff is the main function for the 'diff' command. It loads two DAG files
// and reports the leaves present in one but not the other.
func Diff(oldPath, newPath string) error {
	oldDag, err := lib.LoadFromFile(oldPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", oldPath, err)
	}
	newDag, err := lib.LoadFromFile(newPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", newPath, err)
	}

	diff := lib.DiffDags(oldDag, newDag)
	if diff.Summary.Total == 0 {
		fmt.Println("DAGs are identical.")
		return nil
	}

	hashes := make([]string, 0, len(diff.Diffs))
	for hash := range diff.Diffs {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	for _, hash := range hashes {
		d := diff.Diffs[hash]
		sign := "+"
		if d.Type == lib.DiffRemoved {
			sign = "-"
		}
		name := d.Leaf.ItemName
		if name == "" {
			name = "(chunk)"
		}
		fmt.Printf("%s %-10s %-24s %s\n", sign, d.Leaf.Type, name, hash)
	}

	fmt.Printf("\n%d added, %d removed\n", diff.Summary.Added, diff.Summary.Removed)
	return nil
}
