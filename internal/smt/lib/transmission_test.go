package lib

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

func TestGetLeafSequence(t *testing.T) {
	dag := buildWideDag(t, 12)

	packets, err := GetLeafSequence(dag)
	if err != nil {
		t.Fatal(err)
	}

	if len(packets) != len(dag.Leafs) {
		t.Fatalf("Expected %d packets, got %d", len(dag.Leafs), len(packets))
	}
	if packets[0].Leaf.Hash != dag.Root {
		t.Error("The first packet must carry the root")
	}
	if packets[0].ParentHash != "" || packets[0].Proof != nil {
		t.Error("The root packet must have no parent and no proof")
	}

	// Breadth-first: every packet's parent appears earlier in the stream.
	seen := map[string]bool{}
	for i, p := range packets {
		if i > 0 && !seen[p.ParentHash] {
			t.Errorf("Packet %d arrived before its parent", i)
		}
		seen[p.Leaf.Hash] = true
	}
}

func TestAssembly(t *testing.T) {
	dag := buildWideDag(t, 12)
	packets, err := GetLeafSequence(dag)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("In-order assembly reproduces the DAG", func(t *testing.T) {
		asm := NewAssembler(dag.Root)
		for i, p := range packets {
			if err := asm.ApplyPacket(p); err != nil {
				t.Fatalf("Packet %d rejected: %v", i, err)
			}
		}
		if !asm.Complete() {
			t.Error("Assembly is not complete after all packets")
		}

		rebuilt := asm.Dag()
		if err := VerifyDag(rebuilt); err != nil {
			t.Errorf("Assembled DAG failed verification: %v", err)
		}

		// Labels are a sender-side index and do not travel in packets.
		bare := &types.Dag{Root: dag.Root, Leafs: dag.Leafs}
		ours, err := EncodeDag(bare)
		if err != nil {
			t.Fatal(err)
		}
		theirs, err := EncodeDag(rebuilt)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(ours, theirs) {
			t.Error("Assembled DAG is not byte-identical to the sender's")
		}
	})

	t.Run("Sibling packets may arrive in any order", func(t *testing.T) {
		reordered := append([]*types.TransmissionPacket{}, packets...)
		// Swap two siblings (both children of the root).
		reordered[1], reordered[2] = reordered[2], reordered[1]

		asm := NewAssembler(dag.Root)
		for i, p := range reordered {
			if err := asm.ApplyPacket(p); err != nil {
				t.Fatalf("Packet %d rejected after sibling swap: %v", i, err)
			}
		}
		if !asm.Complete() {
			t.Error("Assembly incomplete after sibling swap")
		}
	})

	t.Run("A child before its parent is an unknown parent", func(t *testing.T) {
		asm := NewAssembler(dag.Root)
		err := asm.ApplyPacket(packets[1])
		if !errors.Is(err, types.ErrUnknownParent) {
			t.Errorf("Expected ErrUnknownParent, got %v", err)
		}
		// The failed packet must not have changed the state.
		if len(asm.Dag().Leafs) != 0 {
			t.Error("Rejected packet mutated the assembly")
		}
	})

	t.Run("Re-delivery is a no-op success", func(t *testing.T) {
		asm := NewAssembler(dag.Root)
		if err := asm.ApplyPacket(packets[0]); err != nil {
			t.Fatal(err)
		}
		if err := asm.ApplyPacket(packets[0]); err != nil {
			t.Errorf("Re-delivered packet was rejected: %v", err)
		}
		if len(asm.Dag().Leafs) != 1 {
			t.Error("Re-delivery changed the leaf count")
		}
	})

	t.Run("A tampered leaf is a hash mismatch", func(t *testing.T) {
		asm := NewAssembler(dag.Root)
		if err := asm.ApplyPacket(packets[0]); err != nil {
			t.Fatal(err)
		}
		bad := &types.TransmissionPacket{
			Leaf:       packets[1].Leaf.Clone(),
			ParentHash: packets[1].ParentHash,
			Proof:      packets[1].Proof,
		}
		bad.Leaf.Content = append([]byte{}, bad.Leaf.Content...)
		bad.Leaf.Content[0] ^= 0xff
		err := asm.ApplyPacket(bad)
		if !errors.Is(err, types.ErrHashMismatch) {
			t.Errorf("Expected ErrHashMismatch, got %v", err)
		}
	})

	t.Run("A tampered proof is rejected", func(t *testing.T) {
		asm := NewAssembler(dag.Root)
		if err := asm.ApplyPacket(packets[0]); err != nil {
			t.Fatal(err)
		}
		bad := &types.TransmissionPacket{
			Leaf:       packets[1].Leaf.Clone(),
			ParentHash: packets[1].ParentHash,
			Proof:      &types.Proof{Steps: append([]types.ProofStep{}, packets[1].Proof.Steps...)},
		}
		if len(bad.Proof.Steps) == 0 {
			t.Skip("root has a single child; no sibling to tamper with")
		}
		bad.Proof.Steps[0] = types.ProofStep{
			Sibling: bytes.Repeat([]byte{0x42}, 32),
			Left:    bad.Proof.Steps[0].Left,
		}
		err := asm.ApplyPacket(bad)
		if !errors.Is(err, types.ErrProofInvalid) {
			t.Errorf("Expected ErrProofInvalid, got %v", err)
		}
	})

	t.Run("A wrong root is rejected", func(t *testing.T) {
		asm := NewAssembler("bafkreinotactuallytheroot")
		err := asm.ApplyPacket(packets[0])
		if !errors.Is(err, types.ErrHashMismatch) {
			t.Errorf("Expected ErrHashMismatch for a mismatched root, got %v", err)
		}
	})
}

func TestPacketRoundTrip(t *testing.T) {
	dag := buildWideDag(t, 4)
	packets, err := GetLeafSequence(dag)
	if err != nil {
		t.Fatal(err)
	}

	for i, p := range packets {
		encoded, err := EncodePacket(p)
		if err != nil {
			t.Fatalf("EncodePacket(%d) failed: %v", i, err)
		}
		decoded, err := DecodePacket(encoded)
		if err != nil {
			t.Fatalf("DecodePacket(%d) failed: %v", i, err)
		}
		if decoded.Leaf.Hash != p.Leaf.Hash || decoded.ParentHash != p.ParentHash {
			t.Errorf("Packet %d identity changed in the round trip", i)
		}
		if (decoded.Proof == nil) != (p.Proof == nil) {
			t.Errorf("Packet %d proof presence changed in the round trip", i)
		}
	}

	// A decoded stream assembles just like the original.
	asm := NewAssembler(dag.Root)
	for _, p := range packets {
		encoded, err := EncodePacket(p)
		if err != nil {
			t.Fatal(err)
		}
		decoded, err := DecodePacket(encoded)
		if err != nil {
			t.Fatal(err)
		}
		if err := asm.ApplyPacket(decoded); err != nil {
			t.Fatalf("Decoded packet rejected: %v", err)
		}
	}
	if err := VerifyDag(asm.Dag()); err != nil {
		t.Errorf("DAG assembled from decoded packets failed verification: %v", err)
	}
}
