// Package lib contains the core services of the smt application: the
// canonical codec, the Merkle engine, the DAG builder, verification,
// transmission and the label index.
package lib

import (
	"bytes"
	"fmt"
	"sort"

	cbor "github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	multihash "github.com/multiformats/go-multihash"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// em is the CBOR encoding mode used for every value in the canonical
// encoding. The default options already emit shortest-form integers; the key
// ordering of leaf, DAG and packet maps is handled by this package, not by the
// encoder. The one struct it marshals directly, a packet's Proof, keeps the
// encoder's struct field order.
var em cbor.EncMode

func init() {
	var err error
	em, err = cbor.EncOptions{}.EncMode()
	if err != nil {
		panic(err)
	}
}

// leafKeys is the set of map keys the codec understands on a leaf record.
var leafKeys = map[string]bool{
	"AdditionalData":    true,
	"ClassicMerkleRoot": true,
	"Content":           true,
	"ContentHash":       true,
	"CurrentLinkCount":  true,
	"Hash":              true,
	"ItemName":          true,
	"Links":             true,
	"ParentHash":        true,
	"Type":              true,
}

// rawPair is one key/value entry of a canonical map, with the value already
// encoded.
type rawPair struct {
	key string
	raw []byte
}

// appendHead appends a CBOR head (major type and shortest-form argument).
func appendHead(buf []byte, major byte, n uint64) []byte {
	switch {
	case n < 24:
		return append(buf, major<<5|byte(n))
	case n <= 0xff:
		return append(buf, major<<5|24, byte(n))
	case n <= 0xffff:
		return append(buf, major<<5|25, byte(n>>8), byte(n))
	case n <= 0xffffffff:
		return append(buf, major<<5|26, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(buf, major<<5|27,
			byte(n>>56), byte(n>>48), byte(n>>40), byte(n>>32),
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// encodeCanonicalMap emits a CBOR map whose keys are sorted in ascending
// lexicographic byte order of their UTF-8 encoding. Every leaf, DAG and
// packet map the codec produces goes through here (a packet's Proof is
// marshalled by the encoder and is not sorted); encoder defaults that
// preserve insertion order are not sufficient for cross-implementation byte
// equality.
func encodeCanonicalMap(pairs []rawPair) ([]byte, error) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	buf := appendHead(nil, 5, uint64(len(pairs)))
	for _, p := range pairs {
		key, err := em.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, p.raw...)
	}
	return buf, nil
}

// encodeStringMap canonically encodes a string-to-string map.
func encodeStringMap(m map[string]string) ([]byte, error) {
	pairs := make([]rawPair, 0, len(m))
	for k, v := range m {
		raw, err := em.Marshal(v)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, rawPair{key: k, raw: raw})
	}
	return encodeCanonicalMap(pairs)
}

// EncodeLeaf canonically encodes a leaf record. With preimage set, the Hash
// and ParentHash fields are left out: the pre-image is the leaf "with Hash
// set to the empty string", and absent fields are omitted from the map
// entirely. ParentHash is written only after the parent's CID is final and
// never enters the pre-image, which is what keeps the parent/child back-edge
// from being circular.
func EncodeLeaf(leaf *types.Leaf, preimage bool) ([]byte, error) {
	pairs := make([]rawPair, 0, 10)
	add := func(key string, v interface{}) error {
		raw, err := em.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		pairs = append(pairs, rawPair{key: key, raw: raw})
		return nil
	}

	if len(leaf.AdditionalData) > 0 {
		raw, err := encodeStringMap(leaf.AdditionalData)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, rawPair{key: "AdditionalData", raw: raw})
	}
	if leaf.ClassicMerkleRoot != nil {
		if err := add("ClassicMerkleRoot", leaf.ClassicMerkleRoot); err != nil {
			return nil, err
		}
	}
	if leaf.Content != nil {
		if err := add("Content", leaf.Content); err != nil {
			return nil, err
		}
	}
	if leaf.ContentHash != nil {
		if err := add("ContentHash", leaf.ContentHash); err != nil {
			return nil, err
		}
	}
	if err := add("CurrentLinkCount", uint64(leaf.CurrentLinkCount)); err != nil {
		return nil, err
	}
	if !preimage && leaf.Hash != "" {
		if err := add("Hash", leaf.Hash); err != nil {
			return nil, err
		}
	}
	if err := add("ItemName", leaf.ItemName); err != nil {
		return nil, err
	}
	links := leaf.Links
	if links == nil {
		links = []types.Link{}
	}
	if err := add("Links", links); err != nil {
		return nil, err
	}
	if !preimage && leaf.ParentHash != "" {
		if err := add("ParentHash", leaf.ParentHash); err != nil {
			return nil, err
		}
	}
	if err := add("Type", string(leaf.Type)); err != nil {
		return nil, err
	}

	// Unknown keys survive a lenient decode and are re-emitted here, so the
	// recomputed CID covers them (see strict-vs-lenient decode rules).
	for key, raw := range leaf.Unknown {
		if leafKeys[key] {
			continue
		}
		pairs = append(pairs, rawPair{key: key, raw: raw})
	}

	return encodeCanonicalMap(pairs)
}

// ComputeLeafCID derives the CID of a leaf: canonical pre-image encoding,
// SHA-256, CIDv1 with the raw binary codec, base-32 lowercase multibase.
func ComputeLeafCID(leaf *types.Leaf) (string, error) {
	data, err := EncodeLeaf(leaf, true)
	if err != nil {
		return "", err
	}
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	c := cid.NewCidV1(cid.Raw, mh)
	s, err := c.StringOfBase(multibase.Base32)
	if err != nil {
		return "", err
	}
	return s, nil
}

// DecodeLeaf decodes a single canonical leaf record. With strict set,
// unknown map keys are rejected; otherwise they are preserved on the leaf
// and re-emitted on encode.
func DecodeLeaf(data []byte, strict bool) (*types.Leaf, error) {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, types.NewDagError(types.ErrFormat, "", err)
	}
	return leafFromRaw(m, strict)
}

func leafFromRaw(m map[string]cbor.RawMessage, strict bool) (*types.Leaf, error) {
	leaf := &types.Leaf{}
	for key, raw := range m {
		var err error
		switch key {
		case "Hash":
			err = cbor.Unmarshal(raw, &leaf.Hash)
		case "ItemName":
			err = cbor.Unmarshal(raw, &leaf.ItemName)
		case "Type":
			var s string
			if err = cbor.Unmarshal(raw, &s); err == nil {
				leaf.Type = types.LeafType(s)
			}
		case "ContentHash":
			leaf.ContentHash, err = decodeByteString(raw)
		case "Content":
			leaf.Content, err = decodeByteString(raw)
		case "ClassicMerkleRoot":
			leaf.ClassicMerkleRoot, err = decodeByteString(raw)
		case "CurrentLinkCount":
			var n uint64
			if err = cbor.Unmarshal(raw, &n); err == nil {
				leaf.CurrentLinkCount = int(n)
			}
		case "Links":
			err = cbor.Unmarshal(raw, &leaf.Links)
		case "ParentHash":
			err = cbor.Unmarshal(raw, &leaf.ParentHash)
		case "AdditionalData":
			err = cbor.Unmarshal(raw, &leaf.AdditionalData)
		default:
			if strict {
				return nil, types.DagErrorf(types.ErrFormat, leaf.Hash, "unknown key %q", key)
			}
			if leaf.Unknown == nil {
				leaf.Unknown = make(map[string]cbor.RawMessage)
			}
			leaf.Unknown[key] = append(cbor.RawMessage(nil), raw...)
		}
		if err != nil {
			return nil, types.DagErrorf(types.ErrFormat, leaf.Hash, "decode %s: %v", key, err)
		}
	}
	if leaf.Links == nil {
		leaf.Links = []types.Link{}
	}
	return leaf, nil
}

// decodeByteString decodes a CBOR byte string, normalising a zero-length
// value to an empty (non-nil) slice: a present-but-empty field must survive
// a round trip, since nil means "absent" everywhere in this package.
func decodeByteString(raw cbor.RawMessage) ([]byte, error) {
	var b []byte
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// EncodeDag canonically encodes a full DAG record. The container is a map
// {labels?, leaves, root}; the leaves map is keyed by CID and every map is
// emitted in canonical key order, so encoding the same DAG twice is
// byte-identical.
func EncodeDag(d *types.Dag) ([]byte, error) {
	pairs := make([]rawPair, 0, 3)

	if d.Labels != nil {
		labelPairs := make([]rawPair, 0, len(d.Labels))
		for hash, label := range d.Labels {
			raw, err := em.Marshal(label)
			if err != nil {
				return nil, err
			}
			labelPairs = append(labelPairs, rawPair{key: hash, raw: raw})
		}
		raw, err := encodeCanonicalMap(labelPairs)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, rawPair{key: "labels", raw: raw})
	}

	leafPairs := make([]rawPair, 0, len(d.Leafs))
	for hash, leaf := range d.Leafs {
		raw, err := EncodeLeaf(leaf, false)
		if err != nil {
			return nil, fmt.Errorf("leaf %s: %w", hash, err)
		}
		leafPairs = append(leafPairs, rawPair{key: hash, raw: raw})
	}
	rawLeaves, err := encodeCanonicalMap(leafPairs)
	if err != nil {
		return nil, err
	}
	pairs = append(pairs, rawPair{key: "leaves", raw: rawLeaves})

	rawRoot, err := em.Marshal(d.Root)
	if err != nil {
		return nil, err
	}
	pairs = append(pairs, rawPair{key: "root", raw: rawRoot})

	return encodeCanonicalMap(pairs)
}

// DecodeDag decodes a DAG record previously produced by EncodeDag. Decoding
// is purely structural; verification of the loaded DAG is a separate,
// explicit step.
func DecodeDag(data []byte, strict bool) (*types.Dag, error) {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, types.NewDagError(types.ErrFormat, "", err)
	}

	d := &types.Dag{Leafs: make(map[string]*types.Leaf)}

	rawRoot, ok := m["root"]
	if !ok {
		return nil, types.DagErrorf(types.ErrFormat, "", "missing root")
	}
	if err := cbor.Unmarshal(rawRoot, &d.Root); err != nil {
		return nil, types.NewDagError(types.ErrFormat, "", err)
	}

	if rawLeaves, ok := m["leaves"]; ok {
		var leafMap map[string]cbor.RawMessage
		if err := cbor.Unmarshal(rawLeaves, &leafMap); err != nil {
			return nil, types.NewDagError(types.ErrFormat, "", err)
		}
		for hash, raw := range leafMap {
			leaf, err := DecodeLeaf(raw, strict)
			if err != nil {
				return nil, err
			}
			d.Leafs[hash] = leaf
		}
	}

	if rawLabels, ok := m["labels"]; ok {
		if err := cbor.Unmarshal(rawLabels, &d.Labels); err != nil {
			return nil, types.NewDagError(types.ErrFormat, "", err)
		}
	}

	if strict {
		for key := range m {
			if key != "root" && key != "leaves" && key != "labels" {
				return nil, types.DagErrorf(types.ErrFormat, "", "unknown key %q", key)
			}
		}
	}

	return d, nil
}

// EncodePacket encodes a transmission packet. The leaf travels in its
// canonical encoding; the proof is not part of any hash pre-image.
func EncodePacket(p *types.TransmissionPacket) ([]byte, error) {
	rawLeaf, err := EncodeLeaf(p.Leaf, false)
	if err != nil {
		return nil, err
	}
	pairs := make([]rawPair, 0, 3)
	pairs = append(pairs, rawPair{key: "Leaf", raw: rawLeaf})

	rawParent, err := em.Marshal(p.ParentHash)
	if err != nil {
		return nil, err
	}
	pairs = append(pairs, rawPair{key: "ParentHash", raw: rawParent})

	if p.Proof != nil {
		rawProof, err := em.Marshal(p.Proof)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, rawPair{key: "Proof", raw: rawProof})
	}
	return encodeCanonicalMap(pairs)
}

// DecodePacket decodes a transmission packet.
func DecodePacket(data []byte) (*types.TransmissionPacket, error) {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, types.NewDagError(types.ErrFormat, "", err)
	}

	p := &types.TransmissionPacket{}
	rawLeaf, ok := m["Leaf"]
	if !ok {
		return nil, types.DagErrorf(types.ErrFormat, "", "packet missing leaf")
	}
	leaf, err := DecodeLeaf(rawLeaf, false)
	if err != nil {
		return nil, err
	}
	p.Leaf = leaf

	if rawParent, ok := m["ParentHash"]; ok {
		if err := cbor.Unmarshal(rawParent, &p.ParentHash); err != nil {
			return nil, types.NewDagError(types.ErrFormat, "", err)
		}
	}
	if rawProof, ok := m["Proof"]; ok {
		p.Proof = &types.Proof{}
		if err := cbor.Unmarshal(rawProof, p.Proof); err != nil {
			return nil, types.NewDagError(types.ErrFormat, "", err)
		}
	}
	return p, nil
}

// EqualEncoding reports whether two DAGs have byte-identical canonical
// encodings.
func EqualEncoding(a, b *types.Dag) (bool, error) {
	ab, err := EncodeDag(a)
	if err != nil {
		return false, err
	}
	bb, err := EncodeDag(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
