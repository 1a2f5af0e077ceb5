package lib

import (
	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// CalculateLabels assigns stable numeric labels in canonical traversal
// order: pre-order from the root, following each parent's links in order,
// numbering each leaf on first visit starting at 1. The index lives beside
// the DAG and can be dropped and recomputed without touching any CID.
func CalculateLabels(d *types.Dag) error {
	if d.RootLeaf() == nil {
		return types.DagErrorf(types.ErrLinkMismatch, d.Root, "root leaf not present")
	}

	labels := make(map[string]uint64, len(d.Leafs))
	counter := uint64(1)

	var visit func(hash string) error
	visit = func(hash string) error {
		if _, ok := labels[hash]; ok {
			return nil
		}
		leaf, ok := d.Leafs[hash]
		if !ok {
			return types.DagErrorf(types.ErrLinkMismatch, hash, "leaf not present")
		}

		labels[hash] = counter
		counter++

		for _, link := range leaf.Links {
			if err := visit(link.Hash); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(d.Root); err != nil {
		return err
	}
	d.Labels = labels
	return nil
}

// GetHashesByLabelRange returns the CIDs whose labels fall in [lo, hi]
// inclusive, in ascending label order. An empty or out-of-bounds range
// yields an empty slice; a DAG without a computed index yields
// ErrLabelsMissing.
func GetHashesByLabelRange(d *types.Dag, lo, hi uint64) ([]string, error) {
	if d.Labels == nil {
		return nil, types.NewDagError(types.ErrLabelsMissing, "", nil)
	}

	// Labels are contiguous from 1, so the range can be clamped before any
	// lookup; a range entirely outside [1, N] is simply empty.
	if lo < 1 {
		lo = 1
	}
	if max := uint64(len(d.Labels)); hi > max {
		hi = max
	}

	hashes := []string{}
	if lo > hi {
		return hashes, nil
	}

	byLabel := make(map[uint64]string, len(d.Labels))
	for hash, label := range d.Labels {
		byLabel[label] = hash
	}
	for label := lo; label <= hi; label++ {
		if hash, ok := byLabel[label]; ok {
			hashes = append(hashes, hash)
		}
	}
	return hashes, nil
}

// GetLabel returns the label assigned to the given CID.
func GetLabel(d *types.Dag, hash string) (uint64, error) {
	if d.Labels == nil {
		return 0, types.NewDagError(types.ErrLabelsMissing, "", nil)
	}
	label, ok := d.Labels[hash]
	if !ok {
		return 0, types.DagErrorf(types.ErrLabelsMissing, hash, "no label for leaf")
	}
	return label, nil
}
