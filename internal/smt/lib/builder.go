package lib

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// BuilderConfig controls a DAG build. The chunk size is part of the content
// address: the same bytes chunked differently are a different DAG, and the
// value itself is not stored anywhere in the output.
type BuilderConfig struct {
	ChunkSize        int
	IncludeTimestamp bool
	AdditionalData   map[string]string
	UseIgnoreRules   bool
}

// DefaultBuilderConfig returns the standard configuration: 2 MiB chunks, no
// timestamp, no extra metadata.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{ChunkSize: types.DefaultChunkSize}
}

// dagBuilder accumulates leaves during a single bottom-up build pass.
type dagBuilder struct {
	leaves  map[string]*types.Leaf
	cfg     BuilderConfig
	baseDir string
}

// CreateDag builds a DAG from a file or directory. Leaves are created
// bottom-up; CIDs are assigned at creation and never rewritten. The context
// is checked between leaves so long builds can be cancelled cooperatively.
func CreateDag(ctx context.Context, path string, cfg BuilderConfig) (*types.Dag, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = types.DefaultChunkSize
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}

	b := &dagBuilder{
		leaves:  make(map[string]*types.Leaf),
		cfg:     cfg,
		baseDir: absPath,
	}

	additionalData := make(map[string]string, len(cfg.AdditionalData)+1)
	for k, v := range cfg.AdditionalData {
		additionalData[k] = v
	}
	if cfg.IncludeTimestamp {
		additionalData["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	var root *types.Leaf
	if info.IsDir() {
		root, err = b.processDirectory(ctx, absPath, true, additionalData)
	} else {
		root, err = b.processFile(ctx, absPath, true, additionalData)
	}
	if err != nil {
		return nil, err
	}
	b.leaves[root.Hash] = root

	// Link fix-up: ParentHash is not part of any child's pre-image, so
	// setting it after every CID is final does not invalidate anything.
	// Walk breadth-first from the root and let the first parent win, so a
	// deduplicated leaf referenced from two places gets the same ParentHash
	// on every build.
	queue := []string{root.Hash}
	assigned := map[string]bool{root.Hash: true}
	for len(queue) > 0 {
		parent := b.leaves[queue[0]]
		queue = queue[1:]
		for _, link := range parent.Links {
			child, ok := b.leaves[link.Hash]
			if !ok || assigned[link.Hash] {
				continue
			}
			child.ParentHash = parent.Hash
			assigned[link.Hash] = true
			queue = append(queue, link.Hash)
		}
	}

	return &types.Dag{Root: root.Hash, Leafs: b.leaves}, nil
}

// processDirectory builds a directory leaf after recursing into its entries
// in ascending lexicographic byte order of their basenames.
func (b *dagBuilder) processDirectory(ctx context.Context, dirPath string, isRoot bool, additionalData map[string]string) (*types.Leaf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	builder := NewLeafBuilder(filepath.Base(dirPath)).SetType(types.DirectoryLeafType)

	for _, entry := range entries {
		entryPath := filepath.Join(dirPath, entry.Name())
		if b.cfg.UseIgnoreRules && IsPathIgnored(b.baseDir, entryPath) {
			continue
		}

		var child *types.Leaf
		if entry.IsDir() {
			child, err = b.processDirectory(ctx, entryPath, false, nil)
		} else if entry.Type().IsRegular() {
			child, err = b.processFile(ctx, entryPath, false, nil)
		} else {
			continue // sockets, fifos, symlinks are not part of the tree
		}
		if err != nil {
			return nil, err
		}

		b.leaves[child.Hash] = child
		builder.AddLink(child.Hash)
	}

	if isRoot {
		return builder.Build(additionalData)
	}
	return builder.Build(nil)
}

// processFile builds a file leaf. Files at or under the chunk size become a
// single self-contained leaf; larger files are split into chunk leaves of
// exactly chunkSize bytes (the final chunk may be shorter), linked in offset
// order.
func (b *dagBuilder) processFile(ctx context.Context, filePath string, isRoot bool, additionalData map[string]string) (*types.Leaf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}

	builder := NewLeafBuilder(filepath.Base(filePath)).SetType(types.FileLeafType)

	if info.Size() <= int64(b.cfg.ChunkSize) {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, types.NewDagError(types.ErrIo, "", err)
		}
		builder.SetData(data)
	} else {
		chunks, err := b.buildChunkLeaves(ctx, filePath)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			b.leaves[chunk.Hash] = chunk
			builder.AddLink(chunk.Hash)
		}
	}

	if isRoot {
		return builder.Build(additionalData)
	}
	return builder.Build(nil)
}

// chunkJob carries one slice of a large file to a hashing worker.
type chunkJob struct {
	index int
	data  []byte
}

type chunkResult struct {
	index int
	leaf  *types.Leaf
	err   error
}

// buildChunkLeaves streams a large file in chunkSize slices and builds the
// chunk leaves on a worker pool. The file is read sequentially; hashing and
// CID derivation of independent chunks run in parallel, and the results are
// reassembled in offset order before any link is created.
func (b *dagBuilder) buildChunkLeaves(ctx context.Context, filePath string) ([]*types.Leaf, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, types.NewDagError(types.ErrIo, "", err)
	}
	defer file.Close()

	jobs := make(chan chunkJob, runtime.NumCPU())
	results := make(chan chunkResult, runtime.NumCPU())

	var wg sync.WaitGroup
	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				leaf, err := NewLeafBuilder("").
					SetType(types.ChunkLeafType).
					SetData(job.data).
					Build(nil)
				results <- chunkResult{index: job.index, leaf: leaf, err: err}
			}
		}()
	}

	var readErr error
	go func() {
		defer close(jobs)
		for index := 0; ; index++ {
			if err := ctx.Err(); err != nil {
				readErr = err
				return
			}

			buf := make([]byte, b.cfg.ChunkSize)
			n, err := io.ReadFull(file, buf)
			if n > 0 {
				jobs <- chunkJob{index: index, data: buf[:n]}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				readErr = types.NewDagError(types.ErrIo, "", err)
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byIndex := make(map[int]*types.Leaf)
	for res := range results {
		if res.err != nil {
			// Drain remaining results so the workers can exit.
			for range results {
			}
			return nil, res.err
		}
		byIndex[res.index] = res.leaf
	}
	if readErr != nil {
		return nil, readErr
	}

	chunks := make([]*types.Leaf, len(byIndex))
	for i := 0; i < len(byIndex); i++ {
		leaf, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("missing chunk %d of %s", i, filePath)
		}
		chunks[i] = leaf
	}
	return chunks, nil
}
