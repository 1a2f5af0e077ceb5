package lib

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// writeTestTree materialises a map of relative path -> content under dir.
func writeTestTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

func mustBuildDag(t *testing.T, path string, cfg BuilderConfig) *types.Dag {
	t.Helper()
	dag, err := CreateDag(context.Background(), path, cfg)
	if err != nil {
		t.Fatalf("CreateDag failed: %v", err)
	}
	return dag
}

func TestBuildSingleFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(filePath, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dag := mustBuildDag(t, filePath, DefaultBuilderConfig())

	if len(dag.Leafs) != 1 {
		t.Fatalf("Expected exactly one leaf, got %d", len(dag.Leafs))
	}
	root := dag.RootLeaf()
	if root.Type != types.FileLeafType {
		t.Errorf("Expected a file leaf, got %s", root.Type)
	}
	if root.ItemName != "hello.txt" {
		t.Errorf("Expected item name hello.txt, got %q", root.ItemName)
	}
	if !bytes.Equal(root.Content, []byte("hello\n")) {
		t.Error("Content does not match the file bytes")
	}
	expectedSum := sha256.Sum256([]byte("hello\n"))
	if !bytes.Equal(root.ContentHash, expectedSum[:]) {
		t.Error("ContentHash is not the SHA-256 of the content")
	}
	if err := VerifyDag(dag); err != nil {
		t.Errorf("Built DAG failed verification: %v", err)
	}

	// Building again must yield the same root CID byte for byte.
	again := mustBuildDag(t, filePath, DefaultBuilderConfig())
	if again.Root != dag.Root {
		t.Errorf("Rebuild produced a different root: %s vs %s", again.Root, dag.Root)
	}
}

func TestBuildDirectoryOrdering(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, map[string]string{
		"a.txt": "A",
		"b.txt": "B",
	})

	dag := mustBuildDag(t, dir, DefaultBuilderConfig())
	root := dag.RootLeaf()

	if root.Type != types.DirectoryLeafType {
		t.Fatalf("Expected a directory root, got %s", root.Type)
	}
	if len(root.Links) != 2 {
		t.Fatalf("Expected 2 links, got %d", len(root.Links))
	}

	// Links are sorted by basename and labelled "1", "2".
	if root.Links[0].Label != "1" || root.Links[1].Label != "2" {
		t.Errorf("Expected labels 1 and 2, got %q and %q", root.Links[0].Label, root.Links[1].Label)
	}
	childA := dag.Leafs[root.Links[0].Hash]
	childB := dag.Leafs[root.Links[1].Hash]
	if childA.ItemName != "a.txt" || childB.ItemName != "b.txt" {
		t.Errorf("Children out of order: %q then %q", childA.ItemName, childB.ItemName)
	}

	// ClassicMerkleRoot = SHA-256(SHA-256(cid_a) || SHA-256(cid_b)).
	ha := sha256.Sum256([]byte(root.Links[0].Hash))
	hb := sha256.Sum256([]byte(root.Links[1].Hash))
	h := sha256.New()
	h.Write(ha[:])
	h.Write(hb[:])
	if !bytes.Equal(root.ClassicMerkleRoot, h.Sum(nil)) {
		t.Error("Directory merkle root does not match the two-child formula")
	}

	// Children point back at the root.
	if childA.ParentHash != root.Hash || childB.ParentHash != root.Hash {
		t.Error("Children do not carry the root's CID as ParentHash")
	}
	if root.ParentHash != "" {
		t.Error("Root must have an empty ParentHash")
	}
}

func TestBuildChunkedFile(t *testing.T) {
	const chunkSize = 1024
	dir := t.TempDir()
	filePath := filepath.Join(dir, "big.bin")

	// Exactly 2*chunkSize+1 bytes: three chunks of chunkSize, chunkSize, 1.
	data := make([]byte, 2*chunkSize+1)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		t.Fatal(err)
	}

	dag := mustBuildDag(t, filePath, BuilderConfig{ChunkSize: chunkSize})
	root := dag.RootLeaf()

	if root.Type != types.FileLeafType {
		t.Fatalf("Expected a file root, got %s", root.Type)
	}
	if root.Content != nil || root.ContentHash != nil {
		t.Error("Chunked file leaf must not carry content or a content hash")
	}
	if len(root.Links) != 3 {
		t.Fatalf("Expected 3 chunk links, got %d", len(root.Links))
	}

	sizes := []int{chunkSize, chunkSize, 1}
	var reassembled []byte
	for i, link := range root.Links {
		chunk := dag.Leafs[link.Hash]
		if chunk.Type != types.ChunkLeafType {
			t.Errorf("Link %d is a %s, not a chunk", i, chunk.Type)
		}
		if chunk.ItemName != "" {
			t.Errorf("Chunk %d has a non-empty item name %q", i, chunk.ItemName)
		}
		if len(chunk.Content) != sizes[i] {
			t.Errorf("Chunk %d has size %d, expected %d", i, len(chunk.Content), sizes[i])
		}
		reassembled = append(reassembled, chunk.Content...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("Chunks concatenated in link order do not reproduce the file")
	}

	if err := VerifyDag(dag); err != nil {
		t.Errorf("Chunked DAG failed verification: %v", err)
	}

	content, err := GetContentFromLeaf(dag, root)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, data) {
		t.Error("GetContentFromLeaf did not reassemble the original bytes")
	}
}

func TestBuildDeterminism(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, map[string]string{
		"docs/readme.md": "readme",
		"docs/guide.md":  "guide",
		"src/main.go":    "package main",
		"src/util.go":    "package main // util",
		"empty.txt":      "",
	})

	first := mustBuildDag(t, dir, DefaultBuilderConfig())
	second := mustBuildDag(t, dir, DefaultBuilderConfig())

	if first.Root != second.Root {
		t.Fatalf("Two builds produced different roots: %s vs %s", first.Root, second.Root)
	}

	equal, err := EqualEncoding(first, second)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("Two builds of the same tree are not byte-identical")
	}
}

func TestBuildChunkInvariance(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "data.bin")
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		t.Fatal(err)
	}

	single := mustBuildDag(t, filePath, BuilderConfig{ChunkSize: 8192})
	chunked := mustBuildDag(t, filePath, BuilderConfig{ChunkSize: 1024})

	if single.Root == chunked.Root {
		t.Error("Different chunk sizes must produce different roots")
	}

	// Both storage layouts reconstruct identical bytes.
	for _, dag := range []*types.Dag{single, chunked} {
		out := t.TempDir()
		if err := CreateDirectory(dag, out); err != nil {
			t.Fatalf("CreateDirectory failed: %v", err)
		}
		restored, err := os.ReadFile(filepath.Join(out, "data.bin"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(restored, data) {
			t.Error("Restored bytes differ from the original")
		}
	}
}

func TestBuildAdditionalData(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, map[string]string{"f.txt": "f"})

	t.Run("Root metadata changes only the root CID", func(t *testing.T) {
		plain := mustBuildDag(t, dir, DefaultBuilderConfig())
		early := mustBuildDag(t, dir, BuilderConfig{
			ChunkSize:      types.DefaultChunkSize,
			AdditionalData: map[string]string{"timestamp": "2024-01-02T03:04:05Z"},
		})
		late := mustBuildDag(t, dir, BuilderConfig{
			ChunkSize:      types.DefaultChunkSize,
			AdditionalData: map[string]string{"timestamp": "2024-01-02T03:04:06Z"},
		})

		if early.Root == late.Root || early.Root == plain.Root {
			t.Error("Different root metadata must change the root CID")
		}

		// Non-root leaves are untouched by root metadata.
		for hash, leaf := range early.Leafs {
			if hash == early.Root {
				continue
			}
			other, ok := late.Leafs[hash]
			if !ok {
				t.Fatalf("Non-root leaf %s missing from the second build", hash)
			}
			if other.ItemName != leaf.ItemName {
				t.Error("Non-root leaf changed between metadata builds")
			}
		}
	})

	t.Run("Metadata sits only on the root", func(t *testing.T) {
		dag := mustBuildDag(t, dir, BuilderConfig{
			ChunkSize:      types.DefaultChunkSize,
			AdditionalData: map[string]string{"origin": "test"},
		})
		for hash, leaf := range dag.Leafs {
			if hash == dag.Root {
				if leaf.AdditionalData["origin"] != "test" {
					t.Error("Root metadata missing")
				}
				continue
			}
			if leaf.AdditionalData != nil {
				t.Error("Metadata leaked onto a non-root leaf")
			}
		}
		if err := VerifyDag(dag); err != nil {
			t.Errorf("DAG with metadata failed verification: %v", err)
		}
	})

	t.Run("Timestamp has the RFC 3339 UTC shape", func(t *testing.T) {
		dag := mustBuildDag(t, dir, BuilderConfig{
			ChunkSize:        types.DefaultChunkSize,
			IncludeTimestamp: true,
		})
		ts := dag.RootLeaf().AdditionalData["timestamp"]
		if ts == "" {
			t.Fatal("Timestamp missing from root metadata")
		}
		if len(ts) != len("2024-01-02T03:04:05Z") || ts[len(ts)-1] != 'Z' {
			t.Errorf("Timestamp %q is not second-precision RFC 3339 UTC", ts)
		}
	})
}

func TestBuildCancellation(t *testing.T) {
	dir := t.TempDir()
	writeTestTree(t, dir, map[string]string{"f.txt": "f"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := CreateDag(ctx, dir, DefaultBuilderConfig()); err == nil {
		t.Error("Expected a cancelled build to fail")
	}
}

func TestBuildIgnoreRules(t *testing.T) {
	ResetIgnoreState()
	dir := t.TempDir()
	writeTestTree(t, dir, map[string]string{
		"keep.txt":   "keep",
		"secret.log": "secret",
		".smtignore": "*.log\n",
	})

	dag := mustBuildDag(t, dir, BuilderConfig{
		ChunkSize:      types.DefaultChunkSize,
		UseIgnoreRules: true,
	})

	for _, leaf := range dag.Leafs {
		if leaf.ItemName == "secret.log" {
			t.Error("Ignored file made it into the DAG")
		}
		if leaf.ItemName == SmtIgnoreFilename {
			t.Error("The ignore file itself made it into the DAG")
		}
	}
	if err := VerifyDag(dag); err != nil {
		t.Errorf("DAG with ignore rules failed verification: %v", err)
	}
}
