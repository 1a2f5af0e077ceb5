package lib

import (
	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// DiffType marks whether a leaf appears only in the new DAG or only in the
// old one.
type DiffType string

const (
	DiffAdded   DiffType = "added"
	DiffRemoved DiffType = "removed"
)

// LeafDiff is a single leaf-level difference between two DAGs.
type LeafDiff struct {
	Type DiffType
	Hash string
	Leaf *types.Leaf
}

// DiffSummary counts the differences.
type DiffSummary struct {
	Added   int
	Removed int
	Total   int
}

// DagDiff is the complete set of leaf differences between two DAGs, keyed by
// CID. Content addressing makes the comparison exact: an unchanged subtree
// has identical CIDs in both DAGs and never shows up.
type DagDiff struct {
	Diffs   map[string]LeafDiff
	Summary DiffSummary
}

// DiffDags compares two DAGs by CID set.
func DiffDags(oldDag, newDag *types.Dag) *DagDiff {
	diff := &DagDiff{Diffs: make(map[string]LeafDiff)}

	for hash, leaf := range newDag.Leafs {
		if _, ok := oldDag.Leafs[hash]; !ok {
			diff.Diffs[hash] = LeafDiff{Type: DiffAdded, Hash: hash, Leaf: leaf.Clone()}
			diff.Summary.Added++
		}
	}
	for hash, leaf := range oldDag.Leafs {
		if _, ok := newDag.Leafs[hash]; !ok {
			diff.Diffs[hash] = LeafDiff{Type: DiffRemoved, Hash: hash, Leaf: leaf.Clone()}
			diff.Summary.Removed++
		}
	}
	diff.Summary.Total = diff.Summary.Added + diff.Summary.Removed
	return diff
}

// AddedLeaves returns the leaves present only in the new DAG.
func (d *DagDiff) AddedLeaves() map[string]*types.Leaf {
	return d.leavesOfType(DiffAdded)
}

// RemovedLeaves returns the leaves present only in the old DAG.
func (d *DagDiff) RemovedLeaves() map[string]*types.Leaf {
	return d.leavesOfType(DiffRemoved)
}

func (d *DagDiff) leavesOfType(t DiffType) map[string]*types.Leaf {
	out := make(map[string]*types.Leaf)
	for hash, leafDiff := range d.Diffs {
		if leafDiff.Type == t {
			out[hash] = leafDiff.Leaf
		}
	}
	return out
}
