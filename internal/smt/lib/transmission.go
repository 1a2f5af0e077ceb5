package lib

import (
	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// GetLeafSequence emits the DAG as a linear stream of self-verifying
// packets, breadth-first from the root so a receiver can validate each
// packet against an ancestor it already holds. Each packet carries the leaf,
// its parent's CID and the Merkle inclusion proof for the leaf's position in
// the parent's tree; the root travels with neither.
func GetLeafSequence(d *types.Dag) ([]*types.TransmissionPacket, error) {
	root := d.RootLeaf()
	if root == nil {
		return nil, types.DagErrorf(types.ErrLinkMismatch, d.Root, "root leaf not present")
	}

	packets := []*types.TransmissionPacket{{Leaf: root.Clone()}}
	queue := []*types.Leaf{root}
	seen := map[string]bool{d.Root: true}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		childCIDs := parent.ChildHashes()
		for i, link := range parent.Links {
			child, ok := d.Leafs[link.Hash]
			if !ok {
				return nil, types.DagErrorf(types.ErrLinkMismatch, parent.Hash, "child %s not present", link.Hash)
			}
			if seen[link.Hash] {
				continue
			}
			seen[link.Hash] = true

			proof, err := BuildMerkleProof(childCIDs, i)
			if err != nil {
				return nil, err
			}
			packets = append(packets, &types.TransmissionPacket{
				Leaf:       child.Clone(),
				ParentHash: parent.Hash,
				Proof:      proof,
			})
			queue = append(queue, child)
		}
	}
	return packets, nil
}

// Assembler rebuilds a DAG incrementally from transmission packets. The
// expected root CID is fixed up-front; every packet is verified before it is
// inserted, and a rejected packet leaves the assembled state untouched.
type Assembler struct {
	dag *types.Dag
}

// NewAssembler starts an empty assembly for the given root CID.
func NewAssembler(rootCID string) *Assembler {
	return &Assembler{
		dag: &types.Dag{
			Root:  rootCID,
			Leafs: make(map[string]*types.Leaf),
		},
	}
}

// ApplyPacket verifies one packet and inserts its leaf. Re-delivery of an
// already-present leaf is a no-op success. Ordering only matters between a
// parent and its children: siblings may arrive in any order, but a child
// before its parent is rejected with ErrUnknownParent.
func (a *Assembler) ApplyPacket(packet *types.TransmissionPacket) error {
	leaf := packet.Leaf
	if leaf == nil {
		return types.DagErrorf(types.ErrFormat, "", "packet without a leaf")
	}

	if err := VerifyLeafHash(leaf); err != nil {
		return err
	}

	if _, ok := a.dag.Leafs[leaf.Hash]; ok {
		return nil
	}

	if packet.ParentHash == "" {
		if leaf.Hash != a.dag.Root {
			return types.DagErrorf(types.ErrHashMismatch, leaf.Hash, "root packet does not match expected root %s", a.dag.Root)
		}
		a.dag.Leafs[leaf.Hash] = leaf.Clone()
		return nil
	}

	parent, ok := a.dag.Leafs[packet.ParentHash]
	if !ok {
		return types.DagErrorf(types.ErrUnknownParent, leaf.Hash, "parent %s not yet received", packet.ParentHash)
	}
	if !parent.HasLink(leaf.Hash) {
		return types.DagErrorf(types.ErrLinkMismatch, leaf.Hash, "parent %s does not link to this leaf", parent.Hash)
	}
	if !VerifyMerkleProof(leaf.Hash, packet.Proof, parent.ClassicMerkleRoot) {
		return types.DagErrorf(types.ErrProofInvalid, leaf.Hash, "proof does not reproduce parent merkle root")
	}

	a.dag.Leafs[leaf.Hash] = leaf.Clone()
	return nil
}

// Dag returns the DAG assembled so far. The assembler retains ownership
// until assembly is complete.
func (a *Assembler) Dag() *types.Dag {
	return a.dag
}

// Complete reports whether every link in the assembled DAG resolves to a
// present leaf.
func (a *Assembler) Complete() bool {
	if a.dag.RootLeaf() == nil {
		return false
	}
	return !IsPartial(a.dag)
}
