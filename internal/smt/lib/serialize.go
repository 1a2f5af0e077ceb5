package lib

import (
	"encoding/json"
	"os"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// ToCBOR serialises the DAG in the canonical, byte-exact wire format. This
// is the interoperable representation; two encodes of the same DAG are
// byte-identical.
func ToCBOR(d *types.Dag) ([]byte, error) {
	return EncodeDag(d)
}

// FromCBOR deserialises a DAG, ignoring unknown map keys (they are preserved
// on the leaves for re-encoding). Verification of the loaded DAG is a
// separate explicit step.
func FromCBOR(data []byte) (*types.Dag, error) {
	return DecodeDag(data, false)
}

// FromCBORStrict deserialises a DAG and rejects unknown map keys.
func FromCBORStrict(data []byte) (*types.Dag, error) {
	return DecodeDag(data, true)
}

// ToJSON renders the DAG for human inspection. Byte-valued fields are
// base64-encoded; the output is not canonical and is never an input to CID
// computation.
func ToJSON(d *types.Dag) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// FromJSON parses the JSON rendering back into a DAG.
func FromJSON(data []byte) (*types.Dag, error) {
	var d types.Dag
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, types.NewDagError(types.ErrFormat, "", err)
	}
	if d.Leafs == nil {
		d.Leafs = make(map[string]*types.Leaf)
	}
	for _, leaf := range d.Leafs {
		if leaf.Links == nil {
			leaf.Links = []types.Link{}
		}
	}
	return &d, nil
}

// SaveToFile writes the canonical CBOR encoding to a file.
func SaveToFile(d *types.Dag, path string) error {
	data, err := ToCBOR(d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewDagError(types.ErrIo, "", err)
	}
	return nil
}

// LoadFromFile reads a canonical CBOR encoding from a file.
func LoadFromFile(path string) (*types.Dag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}
	return FromCBOR(data)
}
