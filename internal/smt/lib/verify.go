package lib

import (
	"bytes"
	"runtime"
	"sync"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// VerifyDag runs a full verification: every leaf's CID is recomputed from
// its pre-image, every parent's Classic Merkle root is rebuilt from its
// links, all structural invariants are checked, and the whole DAG must be
// reachable from the root with no orphans and no cycles.
func VerifyDag(d *types.Dag) error {
	root := d.RootLeaf()
	if root == nil {
		return types.DagErrorf(types.ErrLinkMismatch, d.Root, "root leaf not present")
	}
	if root.ParentHash != "" {
		return types.DagErrorf(types.ErrInvalidLeaf, d.Root, "root leaf has a parent hash")
	}

	if err := recomputeAllCIDs(d); err != nil {
		return err
	}

	visited := make(map[string]bool, len(d.Leafs))
	onPath := make(map[string]bool)

	var walk func(hash string) error
	walk = func(hash string) error {
		if onPath[hash] {
			return types.NewDagError(types.ErrCycleDetected, hash, nil)
		}
		if visited[hash] {
			return nil
		}
		visited[hash] = true
		onPath[hash] = true
		defer delete(onPath, hash)

		leaf := d.Leafs[hash]
		if err := verifyLeafStructure(d, leaf, hash == d.Root); err != nil {
			return err
		}

		for _, link := range leaf.Links {
			child, ok := d.Leafs[link.Hash]
			if !ok {
				return types.DagErrorf(types.ErrLinkMismatch, hash, "child %s not present", link.Hash)
			}
			if child.ParentHash != leaf.Hash {
				// Identical subtrees deduplicate into a single leaf; the
				// recorded parent must still be one that links to it.
				if other, ok := d.Leafs[child.ParentHash]; !ok || !other.HasLink(child.Hash) {
					return types.DagErrorf(types.ErrLinkMismatch, child.Hash, "parent hash %q does not reference this leaf", child.ParentHash)
				}
			}
			if err := walk(link.Hash); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(d.Root); err != nil {
		return err
	}

	for hash := range d.Leafs {
		if !visited[hash] {
			return types.NewDagError(types.ErrOrphanLeaf, hash, nil)
		}
	}
	return nil
}

// verifyLeafStructure checks one leaf's non-hash invariants plus its Merkle
// root and link count.
func verifyLeafStructure(d *types.Dag, leaf *types.Leaf, isRoot bool) error {
	if err := ValidateLeafShape(leaf); err != nil {
		return err
	}
	if !isRoot && len(leaf.AdditionalData) > 0 {
		return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "additional data on a non-root leaf")
	}
	if leaf.CurrentLinkCount != len(leaf.Links) {
		return types.DagErrorf(types.ErrLinkMismatch, leaf.Hash, "link count %d but %d links", leaf.CurrentLinkCount, len(leaf.Links))
	}
	return verifyMerkleColumn(leaf)
}

// verifyMerkleColumn recomputes the leaf's Classic Merkle root from its
// links and compares it with the stored value.
func verifyMerkleColumn(leaf *types.Leaf) error {
	expected := MerkleRoot(leaf.ChildHashes())
	if expected == nil {
		if leaf.ClassicMerkleRoot != nil {
			return types.DagErrorf(types.ErrMerkleMismatch, leaf.Hash, "merkle root on a leaf without children")
		}
		return nil
	}
	if !bytes.Equal(expected, leaf.ClassicMerkleRoot) {
		return types.DagErrorf(types.ErrMerkleMismatch, leaf.Hash, "recomputed root differs")
	}
	return nil
}

// recomputeAllCIDs re-derives every leaf's CID on a worker pool; CID
// recomputation of independent leaves has no ordering requirement.
func recomputeAllCIDs(d *types.Dag) error {
	jobs := make(chan *types.Leaf, runtime.NumCPU())
	errs := make(chan error, len(d.Leafs))

	var wg sync.WaitGroup
	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for leaf := range jobs {
				if err := VerifyLeafHash(leaf); err != nil {
					errs <- err
				}
			}
		}()
	}

	for _, leaf := range d.Leafs {
		jobs <- leaf
	}
	close(jobs)
	wg.Wait()
	close(errs)

	// Return the first failure; which one is first is irrelevant.
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsPartial reports whether the DAG is missing leaves that its links
// reference.
func IsPartial(d *types.Dag) bool {
	if d.RootLeaf() == nil {
		return true
	}
	for _, leaf := range d.Leafs {
		for _, link := range leaf.Links {
			if _, ok := d.Leafs[link.Hash]; !ok {
				return true
			}
		}
	}
	return false
}

// findParent locates the present leaf that links to the given child CID.
func findParent(d *types.Dag, childHash string) *types.Leaf {
	if child, ok := d.Leafs[childHash]; ok && child.ParentHash != "" {
		if parent, ok := d.Leafs[child.ParentHash]; ok && parent.HasLink(childHash) {
			return parent
		}
	}
	for _, leaf := range d.Leafs {
		if leaf.HasLink(childHash) {
			return leaf
		}
	}
	return nil
}

// VerifyPartial verifies a partial DAG: the root plus any subset of leaves,
// where each present leaf must be provable against the root through its
// ancestor chain. Ancestors keep their full Links, so each ancestor's Merkle
// root is recomputed directly from the child CIDs it commits to.
func VerifyPartial(d *types.Dag) error {
	root := d.RootLeaf()
	if root == nil {
		return types.DagErrorf(types.ErrLinkMismatch, d.Root, "root leaf not present")
	}
	if err := VerifyLeafHash(root); err != nil {
		return err
	}
	if err := verifyLeafStructure(d, root, true); err != nil {
		return err
	}

	for hash, leaf := range d.Leafs {
		if hash == d.Root {
			continue
		}

		if err := VerifyLeafHash(leaf); err != nil {
			return err
		}
		if err := ValidateLeafShape(leaf); err != nil {
			return err
		}

		// Climb to the root. Every ancestor must be present with its links
		// intact, and each level's Merkle commitment must hold.
		current := leaf
		for current.Hash != d.Root {
			parent := findParent(d, current.Hash)
			if parent == nil {
				return types.DagErrorf(types.ErrLinkMismatch, current.Hash, "no path to root")
			}
			if parent.CurrentLinkCount != len(parent.Links) {
				return types.DagErrorf(types.ErrLinkMismatch, parent.Hash, "ancestor links pruned")
			}
			if err := verifyMerkleColumn(parent); err != nil {
				return err
			}
			current = parent
		}
	}
	return nil
}

// GetPartial extracts a partial DAG containing the requested leaves, each
// with its full ancestor chain up to the root, sufficient for VerifyPartial
// to prove membership of every requested leaf.
func GetPartial(d *types.Dag, leafHashes []string) (*types.Dag, error) {
	partial := &types.Dag{
		Root:  d.Root,
		Leafs: make(map[string]*types.Leaf),
	}

	root := d.RootLeaf()
	if root == nil {
		return nil, types.DagErrorf(types.ErrLinkMismatch, d.Root, "root leaf not present")
	}
	partial.Leafs[d.Root] = root.Clone()

	for _, hash := range leafHashes {
		leaf, ok := d.Leafs[hash]
		if !ok {
			return nil, types.DagErrorf(types.ErrLinkMismatch, hash, "leaf not present")
		}
		partial.Leafs[hash] = leaf.Clone()

		current := leaf
		for current.Hash != d.Root {
			parent := findParent(d, current.Hash)
			if parent == nil {
				return nil, types.DagErrorf(types.ErrLinkMismatch, current.Hash, "no path to root")
			}
			if _, ok := partial.Leafs[parent.Hash]; !ok {
				partial.Leafs[parent.Hash] = parent.Clone()
			}
			current = parent
		}
	}
	return partial, nil
}
