package lib

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// The Classic Merkle engine builds a binary SHA-256 tree over an ordered
// list of child CIDs. Level 0 hashes each CID's UTF-8 bytes; levels above
// combine pairs left to right. A trailing node on an odd level is promoted
// unchanged to the next level, never duplicated — duplicate-last trees
// produce divergent roots for any odd non-power-of-two child count.

// merkleLevels builds every level of the tree, bottom first. Returns nil for
// an empty input.
func merkleLevels(cids []string) [][][]byte {
	if len(cids) == 0 {
		return nil
	}

	level := make([][]byte, len(cids))
	for i, c := range cids {
		h := sha256.Sum256([]byte(c))
		level[i] = h[:]
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
		levels = append(levels, level)
	}
	return levels
}

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// MerkleRoot computes the Classic Merkle root over the ordered child CIDs.
// Returns nil for an empty list; for a single child the root is the SHA-256
// of that CID's bytes.
func MerkleRoot(cids []string) []byte {
	levels := merkleLevels(cids)
	if levels == nil {
		return nil
	}
	top := levels[len(levels)-1]
	return top[0]
}

// BuildMerkleProof produces the inclusion proof for the child at the given
// index: the ordered sibling hashes on the path to the root, each tagged
// with the side it sits on. Promoted nodes contribute no step.
func BuildMerkleProof(cids []string, index int) (*types.Proof, error) {
	if index < 0 || index >= len(cids) {
		return nil, fmt.Errorf("proof index %d out of range [0,%d)", index, len(cids))
	}

	levels := merkleLevels(cids)
	proof := &types.Proof{Steps: []types.ProofStep{}}

	idx := index
	for _, level := range levels[:len(levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof.Steps = append(proof.Steps, types.ProofStep{
				Sibling: append([]byte(nil), level[sibling]...),
				Left:    sibling < idx,
			})
		}
		idx /= 2
	}
	return proof, nil
}

// VerifyMerkleProof folds the claimed child CID through the proof and checks
// the result against the expected root.
func VerifyMerkleProof(childCID string, proof *types.Proof, root []byte) bool {
	if proof == nil || len(root) == 0 {
		return false
	}

	h := sha256.Sum256([]byte(childCID))
	current := h[:]
	for _, step := range proof.Steps {
		if step.Left {
			current = hashPair(step.Sibling, current)
		} else {
			current = hashPair(current, step.Sibling)
		}
	}
	return bytes.Equal(current, root)
}
