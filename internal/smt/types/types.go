package types

import (
	"github.com/fxamacker/cbor/v2"
)

// DefaultChunkSize is the size files are split at when the builder
// configuration does not override it.
const DefaultChunkSize = 2 * 1024 * 1024 // 2 MiB

// LeafType identifies what a leaf represents in the DAG.
type LeafType string

const (
	FileLeafType      LeafType = "file"
	ChunkLeafType     LeafType = "chunk"
	DirectoryLeafType LeafType = "directory"
)

// Link binds a child CID to the label it carries inside its parent.
// On the wire a link is a 2-element array ["<label>", "<cid>"]; the label is
// an ASCII decimal, 1-based, assigned in child order. Link order is part of
// the parent's hash pre-image.
type Link struct {
	_     struct{} `cbor:",toarray"`
	Label string   `json:"Label"`
	Hash  string   `json:"Hash"`
}

// Leaf is a single node of the DAG: a file, a chunk of a large file, or a
// directory. Leaves reference each other only by CID string, never by
// pointer.
//
// Presence rules for the optional fields follow the canonical encoding:
// a nil slice or map means "absent" and the field is omitted entirely.
type Leaf struct {
	Hash              string            `json:"Hash"`
	ItemName          string            `json:"ItemName"`
	Type              LeafType          `json:"Type"`
	ContentHash       []byte            `json:"ContentHash,omitempty"`
	Content           []byte            `json:"Content,omitempty"`
	ClassicMerkleRoot []byte            `json:"ClassicMerkleRoot,omitempty"`
	CurrentLinkCount  int               `json:"CurrentLinkCount"`
	Links             []Link            `json:"Links"`
	ParentHash        string            `json:"ParentHash,omitempty"`
	AdditionalData    map[string]string `json:"AdditionalData,omitempty"`

	// Unknown holds map keys a lenient decode did not recognise. They are
	// re-emitted by the canonical encoder so a round trip reproduces the
	// original bytes and the original CID.
	Unknown map[string]cbor.RawMessage `json:"-"`
}

// HasLink reports whether the leaf links to the given child CID.
func (l *Leaf) HasLink(hash string) bool {
	for _, link := range l.Links {
		if link.Hash == hash {
			return true
		}
	}
	return false
}

// LinkIndex returns the position of the given child CID in Links, or -1.
func (l *Leaf) LinkIndex(hash string) int {
	for i, link := range l.Links {
		if link.Hash == hash {
			return i
		}
	}
	return -1
}

// ChildHashes returns the child CIDs in link order.
func (l *Leaf) ChildHashes() []string {
	hashes := make([]string, len(l.Links))
	for i, link := range l.Links {
		hashes[i] = link.Hash
	}
	return hashes
}

// Clone returns a deep copy of the leaf.
func (l *Leaf) Clone() *Leaf {
	c := *l
	if l.ContentHash != nil {
		c.ContentHash = append([]byte(nil), l.ContentHash...)
	}
	if l.Content != nil {
		c.Content = append([]byte{}, l.Content...)
	}
	if l.ClassicMerkleRoot != nil {
		c.ClassicMerkleRoot = append([]byte(nil), l.ClassicMerkleRoot...)
	}
	if l.Links != nil {
		c.Links = append([]Link{}, l.Links...)
	}
	if l.AdditionalData != nil {
		c.AdditionalData = make(map[string]string, len(l.AdditionalData))
		for k, v := range l.AdditionalData {
			c.AdditionalData[k] = v
		}
	}
	if l.Unknown != nil {
		c.Unknown = make(map[string]cbor.RawMessage, len(l.Unknown))
		for k, v := range l.Unknown {
			c.Unknown[k] = append(cbor.RawMessage(nil), v...)
		}
	}
	return &c
}

// WithoutHash returns a copy of the leaf with the identity fields cleared,
// i.e. the record whose canonical encoding is the CID pre-image. ParentHash
// is cleared as well: it is set only after the parent's CID is final and is
// never part of the pre-image.
func (l *Leaf) WithoutHash() *Leaf {
	c := l.Clone()
	c.Hash = ""
	c.ParentHash = ""
	return c
}

// Dag is the full structure: a root CID, every leaf keyed by CID, and an
// optional label index assigned by CalculateLabels.
type Dag struct {
	Root   string            `json:"Root"`
	Leafs  map[string]*Leaf  `json:"Leafs"`
	Labels map[string]uint64 `json:"Labels,omitempty"`
}

// RootLeaf returns the root leaf, or nil if it is not present.
func (d *Dag) RootLeaf() *Leaf {
	return d.Leafs[d.Root]
}

// ProofStep is one hop of a Merkle inclusion proof: the sibling hash at that
// level and which side of the running hash it sits on.
type ProofStep struct {
	Sibling []byte `cbor:"Sibling" json:"Sibling"`
	Left    bool   `cbor:"Left" json:"Left"`
}

// Proof is an inclusion proof for one child of a Classic Merkle Tree,
// ordered leaf-to-root. A proof with no steps is valid for a single-child
// parent, where the child's leaf hash is the root.
type Proof struct {
	Steps []ProofStep `cbor:"Steps" json:"Steps"`
}

// TransmissionPacket bundles one leaf with the proof tying it to its parent.
// The root travels with an empty ParentHash and a nil Proof.
type TransmissionPacket struct {
	Leaf       *Leaf  `cbor:"Leaf" json:"Leaf"`
	ParentHash string `cbor:"ParentHash" json:"ParentHash"`
	Proof      *Proof `cbor:"Proof,omitempty" json:"Proof,omitempty"`
}
