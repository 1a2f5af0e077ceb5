package lib

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/gingerrexayers/smt-go/internal/smt/types"
)

// GetContentFromLeaf returns the full payload of a file leaf. A chunked file
// is reassembled by concatenating its chunk contents in link order; the
// receiver never needs to know the chunk size the sender used.
func GetContentFromLeaf(d *types.Dag, leaf *types.Leaf) ([]byte, error) {
	if len(leaf.Links) == 0 {
		return leaf.Content, nil
	}

	var content []byte
	for _, link := range leaf.Links {
		chunk, ok := d.Leafs[link.Hash]
		if !ok {
			return nil, types.DagErrorf(types.ErrLinkMismatch, leaf.Hash, "chunk %s not present", link.Hash)
		}
		content = append(content, chunk.Content...)
	}
	return content, nil
}

// fileWriteJob carries one reassembled file to a writer worker.
type fileWriteJob struct {
	leaf *types.Leaf
	path string
}

// CreateDirectory materialises the DAG back onto the filesystem under the
// given output path. Directories are created synchronously during traversal;
// file contents are reassembled and written by a worker pool.
func CreateDirectory(d *types.Dag, outputPath string) error {
	root := d.RootLeaf()
	if root == nil {
		return types.DagErrorf(types.ErrLinkMismatch, d.Root, "root leaf not present")
	}

	jobs := make(chan fileWriteJob, 100)
	errs := make(chan error, 100)
	var wg sync.WaitGroup

	for w := 0; w < runtime.NumCPU(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				content, err := GetContentFromLeaf(d, job.leaf)
				if err != nil {
					errs <- err
					continue
				}
				if err := os.WriteFile(job.path, content, 0644); err != nil {
					errs <- fmt.Errorf("write %s: %w", job.path, err)
				}
			}
		}()
	}

	// A directory root is recreated at the output path itself; a file root
	// keeps its own name underneath it.
	rootPath := outputPath
	if root.Type == types.FileLeafType {
		rootPath = filepath.Join(outputPath, root.ItemName)
	}

	walkErr := restoreLeaf(d, root, rootPath, jobs)
	close(jobs)
	wg.Wait()
	close(errs)

	if walkErr != nil {
		return walkErr
	}
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// restoreLeaf recreates one leaf at the given path, recursing into
// directories and queueing files for the writer pool.
func restoreLeaf(d *types.Dag, leaf *types.Leaf, path string, jobs chan<- fileWriteJob) error {
	switch leaf.Type {
	case types.DirectoryLeafType:
		if err := os.MkdirAll(path, 0755); err != nil {
			return err
		}
		for _, link := range leaf.Links {
			child, ok := d.Leafs[link.Hash]
			if !ok {
				return types.DagErrorf(types.ErrLinkMismatch, leaf.Hash, "child %s not present", link.Hash)
			}
			if err := restoreLeaf(d, child, filepath.Join(path, child.ItemName), jobs); err != nil {
				return err
			}
		}
	case types.FileLeafType:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		jobs <- fileWriteJob{leaf: leaf, path: path}
	case types.ChunkLeafType:
		return types.DagErrorf(types.ErrInvalidLeaf, leaf.Hash, "chunk leaf reached outside its parent file")
	}
	return nil
}
