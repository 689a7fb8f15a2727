package parzip

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ExtractOption configures Extract and ExtractPaths.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	workers       int
	preserveTimes bool
	overwrite     bool
}

// ExtractWithWorkers sets the number of concurrent extraction workers.
// Zero uses GOMAXPROCS; values < 0 force serial extraction.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithModTimes restores entry modification times on extracted
// files. By default, files get the current time.
func ExtractWithModTimes(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveTimes = preserve
	}
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, extraction fails on an existing destination file.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// Extract writes every file in the archive under destDir.
//
// Entries decompress independently, so files are extracted by a bounded
// pool of workers, each driving its own reader over the shared archive
// bytes. Directories are created first, in tree order; files are written
// atomically via a temp file and rename. The first error cancels the
// remaining work.
func (a *Archive) Extract(destDir string, opts ...ExtractOption) error {
	tree, err := a.Tree()
	if err != nil {
		return err
	}
	var entries []*Entry
	for entry := range tree.Files() {
		entries = append(entries, entry)
	}
	return a.extract(destDir, tree, entries, opts)
}

// ExtractPaths writes the named files under destDir. Each path must
// resolve to a file in the archive's tree.
func (a *Archive) ExtractPaths(destDir string, paths []string, opts ...ExtractOption) error {
	tree, err := a.Tree()
	if err != nil {
		return err
	}
	entries := make([]*Entry, 0, len(paths))
	for _, p := range paths {
		node, err := tree.Lookup(p)
		if err != nil {
			return err
		}
		if node.IsDir() {
			return fmt.Errorf("extract %s: is a directory: %w", p, ErrNotFound)
		}
		entries = append(entries, node.Entry())
	}
	return a.extract(destDir, tree, entries, opts)
}

func (a *Archive) extract(destDir string, tree *Tree, entries []*Entry, opts []ExtractOption) error {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	// Parent directories come first so workers never race on mkdir.
	for p, node := range tree.Walk() {
		if !node.IsDir() {
			continue
		}
		if err := os.MkdirAll(filepath.Join(destDir, filepath.FromSlash(p)), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", p, err)
		}
	}

	a.log().Debug("extracting", "files", len(entries), "workers", workers)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for _, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return a.extractFile(destDir, entry, &cfg)
		})
	}
	return g.Wait()
}

// extractFile writes one entry's content atomically: the stream lands in
// a temp file that is renamed over the destination only after the
// verifying reader has seen a clean EOF.
func (a *Archive) extractFile(destDir string, entry *Entry, cfg *extractConfig) error {
	destPath := filepath.Join(destDir, filepath.FromSlash(entry.Path))
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	if !cfg.overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return fmt.Errorf("extract %s: %w", entry.Path, os.ErrExist)
		}
	}

	rc, err := a.Open(entry)
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(dir, ".parzip-")
	if err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, rc); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	if cfg.preserveTimes {
		if err := os.Chtimes(tmpPath, entry.Modified, entry.Modified); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Path, err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	success = true
	return nil
}
