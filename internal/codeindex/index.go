// Package codeindex maintains a symbol index over a local source tree. Files
// are parsed with tree-sitter, fingerprinted with xxhash so unchanged files
// are skipped on refresh, and persisted in SQLite. A filesystem watcher marks
// the index dirty so queries after an edit see fresh symbols.
package codeindex

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/agentschnell/internal/logger"
)

var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"target":       {},
	"__pycache__":  {},
}

// Index is the code-search collaborator. Safe for use from one session;
// refresh and query serialize on an internal mutex.
type Index struct {
	root    string
	store   *store
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	dirty     bool
	stopWatch chan struct{}
}

// New opens (or creates) the index for a source tree. dbPath locates the
// SQLite file; it lives outside root by convention so it never indexes
// itself.
func New(root, dbPath string) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve index root: %w", err)
	}

	st, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		root:      absRoot,
		store:     st,
		dirty:     true,
		stopWatch: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("codeindex: file watcher unavailable: %v", err)
	} else {
		idx.watcher = watcher
		if err := watcher.Add(absRoot); err != nil {
			logger.Warn("codeindex: failed to watch %s: %v", absRoot, err)
		}
		go idx.watchLoop()
	}

	return idx, nil
}

// watchLoop marks the index dirty on any relevant filesystem event. New
// directories are added to the watch set as they appear.
func (idx *Index) watchLoop() {
	for {
		select {
		case <-idx.stopWatch:
			return
		case event, ok := <-idx.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, skip := skippedDirs[filepath.Base(event.Name)]; !skip {
						_ = idx.watcher.Add(event.Name)
					}
				}
			}
			if DetectLanguage(event.Name) != "" || event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				idx.mu.Lock()
				idx.dirty = true
				idx.mu.Unlock()
			}
		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("codeindex: watcher error: %v", err)
		}
	}
}

// Refresh walks the tree and reindexes files whose fingerprints changed.
// Files that disappeared are dropped.
func (idx *Index) Refresh(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.refreshLocked(ctx)
}

func (idx *Index) refreshLocked(ctx context.Context) error {
	known, err := idx.store.knownFiles()
	if err != nil {
		return fmt.Errorf("failed to list indexed files: %w", err)
	}

	seen := make(map[string]struct{})
	err = filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			base := filepath.Base(path)
			if _, skip := skippedDirs[base]; skip {
				return filepath.SkipDir
			}
			if strings.HasPrefix(base, ".") && path != idx.root {
				return filepath.SkipDir
			}
			if idx.watcher != nil {
				_ = idx.watcher.Add(path)
			}
			return nil
		}

		language := DetectLanguage(path)
		if language == "" {
			return nil
		}

		rel, err := filepath.Rel(idx.root, path)
		if err != nil {
			return nil
		}
		seen[rel] = struct{}{}

		source, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		hash := fmt.Sprintf("%016x", xxhash.Sum64(source))
		stored, err := idx.store.fileHash(rel)
		if err != nil {
			return err
		}
		if stored == hash {
			return nil
		}

		symbols, err := extractSymbols(rel, language, source)
		if err != nil {
			logger.Warn("codeindex: failed to parse %s: %v", rel, err)
			symbols = nil // keep the fingerprint so broken files are not reparsed every refresh
		}

		return idx.store.replaceFile(rel, hash, language, symbols)
	})
	if err != nil {
		return err
	}

	for path := range known {
		if _, ok := seen[path]; !ok {
			if err := idx.store.removeFile(path); err != nil {
				return err
			}
		}
	}

	idx.dirty = false
	return nil
}

// Query returns all definitions of a symbol. A dirty index refreshes first so
// results reflect the current tree.
func (idx *Index) Query(ctx context.Context, symbol string) ([]Symbol, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol name is empty")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dirty {
		if err := idx.refreshLocked(ctx); err != nil {
			return nil, err
		}
	}

	return idx.store.query(symbol)
}

// Close stops the watcher and closes the store.
func (idx *Index) Close() error {
	close(idx.stopWatch)
	if idx.watcher != nil {
		_ = idx.watcher.Close()
	}
	return idx.store.Close()
}
