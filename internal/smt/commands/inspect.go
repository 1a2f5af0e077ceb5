package commands

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/gingerrexayers/smt-go/internal/smt/lib"
	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// formatBytes converts a byte count into a human-readable string.
func formatBytes(bytes int64, decimals int) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	const k = 1024
	if decimals < 0 {
		decimals = 0
	}
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}

	return fmt.Sprintf("%.*f %s", decimals, float64(bytes)/math.Pow(k, float64(i)), sizes[i])
}

// Inspect is the main function for the 'inspect' command. It prints a
// per-leaf table of a DAG file plus aggregate statistics. With jsonOut set,
// it dumps the human-readable JSON rendering instead.
func Inspect(dagPath string, jsonOut bool) error {
	dag, err := lib.LoadFromFile(dagPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", dagPath, err)
	}

	if jsonOut {
		data, err := lib.ToJSON(dag)
		if err != nil {
			return fmt.Errorf("failed to render JSON: %w", err)
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	// Sort rows by label when the index is present, by CID otherwise.
	hashes := make([]string, 0, len(dag.Leafs))
	for hash := range dag.Leafs {
		hashes = append(hashes, hash)
	}
	if dag.Labels != nil {
		sort.Slice(hashes, func(i, j int) bool {
			return dag.Labels[hashes[i]] < dag.Labels[hashes[j]]
		})
	} else {
		sort.Strings(hashes)
	}

	fmt.Printf("DAG \"%s\":\n", dagPath)
	fmt.Printf("%-7s %-10s %-24s %-6s %-12s %s\n", "LABEL", "TYPE", "NAME", "LINKS", "SIZE", "CID")
	fmt.Printf("%-7s %-10s %-24s %-6s %-12s %s\n", "=====", "=========", "====================", "=====", "==========", "===========")

	var totalContent int64
	for _, hash := range hashes {
		leaf := dag.Leafs[hash]
		totalContent += int64(len(leaf.Content))

		label := "-"
		if dag.Labels != nil {
			label = fmt.Sprintf("%d", dag.Labels[hash])
		}
		name := leaf.ItemName
		if name == "" && leaf.Type == types.ChunkLeafType {
			name = "(chunk)"
		}
		fmt.Printf("%-7s %-10s %-24s %-6d %-12s %s\n",
			label,
			leaf.Type,
			name,
			len(leaf.Links),
			formatBytes(int64(len(leaf.Content)), 1),
			hash,
		)
	}

	fmt.Printf("\nRoot CID: %s\n", dag.Root)
	fmt.Printf("Total leaves: %d, total content: %s\n", len(dag.Leafs), formatBytes(totalContent, 2))
	return nil
}
