package lib

import (
	"crypto/sha256"
	"strconv"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// LeafBuilder accumulates the fields of a leaf and finalises them into an
// immutable, CID-addressed record. A builder refuses to mix direct content
// with child links; the two shapes are mutually exclusive by invariant.
type LeafBuilder struct {
	itemName string
	leafType types.LeafType
	data     []byte
	hasData  bool
	links    []types.Link
}

// NewLeafBuilder starts a builder for an item with the given basename.
// Chunk leaves use the empty name.
func NewLeafBuilder(name string) *LeafBuilder {
	return &LeafBuilder{itemName: name}
}

// SetType sets the leaf type.
func (b *LeafBuilder) SetType(t types.LeafType) *LeafBuilder {
	b.leafType = t
	return b
}

// SetData attaches the raw payload bytes. An empty, non-nil payload is a
// valid zero-byte file.
func (b *LeafBuilder) SetData(data []byte) *LeafBuilder {
	b.data = data
	b.hasData = true
	return b
}

// AddLink appends a link to the given child CID. Labels are ASCII decimal,
// 1-based, in insertion order; they are part of the parent's pre-image.
func (b *LeafBuilder) AddLink(childCID string) *LeafBuilder {
	b.links = append(b.links, types.Link{
		Label: strconv.Itoa(len(b.links) + 1),
		Hash:  childCID,
	})
	return b
}

// Build finalises the leaf: it validates the shape, derives ContentHash and
// ClassicMerkleRoot, and assigns the CID. additionalData is attached only on
// the root leaf by the DAG builder.
func (b *LeafBuilder) Build(additionalData map[string]string) (*types.Leaf, error) {
	switch b.leafType {
	case types.FileLeafType, types.ChunkLeafType, types.DirectoryLeafType:
	default:
		return nil, types.DagErrorf(types.ErrInvalidLeaf, "", "leaf %q has no type", b.itemName)
	}

	if b.hasData && len(b.links) > 0 {
		return nil, types.DagErrorf(types.ErrInvalidLeaf, "", "leaf %q mixes content with links", b.itemName)
	}
	switch b.leafType {
	case types.ChunkLeafType:
		if !b.hasData {
			return nil, types.DagErrorf(types.ErrInvalidLeaf, "", "chunk leaf without content")
		}
	case types.FileLeafType:
		if !b.hasData && len(b.links) == 0 {
			return nil, types.DagErrorf(types.ErrInvalidLeaf, "", "file leaf %q has neither content nor chunks", b.itemName)
		}
	case types.DirectoryLeafType:
		if b.hasData {
			return nil, types.DagErrorf(types.ErrInvalidLeaf, "", "directory leaf %q carries content", b.itemName)
		}
	}

	leaf := &types.Leaf{
		ItemName:         b.itemName,
		Type:             b.leafType,
		CurrentLinkCount: len(b.links),
		Links:            append([]types.Link{}, b.links...),
	}

	if b.hasData {
		sum := sha256.Sum256(b.data)
		leaf.Content = append([]byte{}, b.data...)
		leaf.ContentHash = sum[:]
	}
	if len(b.links) > 0 {
		leaf.ClassicMerkleRoot = MerkleRoot(leaf.ChildHashes())
	}
	if len(additionalData) > 0 {
		leaf.AdditionalData = make(map[string]string, len(additionalData))
		for k, v := range additionalData {
			leaf.AdditionalData[k] = v
		}
	}

	hash, err := ComputeLeafCID(leaf)
	if err != nil {
		return nil, err
	}
	leaf.Hash = hash
	return leaf, nil
}

// ValidateLeafShape checks the per-type field invariants of a single leaf
// without touching hashes.
func ValidateLeafShape(leaf *types.Leaf) error {
	if leaf.Content != nil && len(leaf.Links) > 0 {
		return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "leaf mixes content with links")
	}

	switch leaf.Type {
	case types.ChunkLeafType:
		if leaf.Content == nil || leaf.ContentHash == nil {
			return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "chunk leaf missing content")
		}
		if len(leaf.Links) != 0 {
			return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "chunk leaf has links")
		}
	case types.FileLeafType:
		if leaf.Content != nil {
			if leaf.ContentHash == nil {
				return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "file leaf content without content hash")
			}
		} else {
			if len(leaf.Links) == 0 {
				return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "file leaf has neither content nor chunks")
			}
			if leaf.ContentHash != nil {
				return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "chunked file leaf carries a content hash")
			}
		}
	case types.DirectoryLeafType:
		if leaf.Content != nil || leaf.ContentHash != nil {
			return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "directory leaf carries content")
		}
	default:
		return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "unknown leaf type %q", leaf.Type)
	}
	return nil
}

// VerifyLeafHash recomputes the leaf's CID from its pre-image and compares
// it with the stored Hash.
func VerifyLeafHash(leaf *types.Leaf) error {
	computed, err := ComputeLeafCID(leaf)
	if err != nil {
		return err
	}
	if computed != leaf.Hash {
		return types.DagErrorf(types.ErrHashMismatch, leaf.Hash, "recomputed %s", computed)
	}
	return nil
}
