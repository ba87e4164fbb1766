// Package scanner walks a project directory, producing the rooted file tree,
// the list of documentation files, and the live snapshot used for drift
// analysis. Conventional non-source directories and dot-entries are skipped.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// skippedDirs are directory names never descended into.
var skippedDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	".venv":         true,
	"venv":          true,
	"dist":          true,
	"build":         true,
	"target":        true,
	"out":           true,
	"bin":           true,
	"__pycache__":   true,
	".cache":        true,
	".pytest_cache": true,
	"coverage":      true,
}

// Options configures a Scanner.
type Options struct {
	// Ignore holds doublestar patterns matched against root-relative,
	// slash-separated paths.
	Ignore []string
	// IncludeHidden disables skipping of dot-files and dot-directories.
	IncludeHidden bool
}

// Scanner discovers files under a project root.
type Scanner struct {
	opts Options
}

// New creates a Scanner, rejecting malformed ignore patterns.
func New(opts Options) (*Scanner, error) {
	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &Scanner{opts: opts}, nil
}

// Skipped reports whether the entry at the root-relative slash path rel
// is excluded from scanning.
func (s *Scanner) Skipped(rel string, isDir bool) bool {
	if rel == "." || rel == "" {
		return false
	}
	name := path.Base(rel)
	if isDir && skippedDirs[name] {
		return true
	}
	if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, p := range s.opts.Ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Scan builds the tree of files and directories under root.
func (s *Scanner) Scan(root string) (*models.TreeNode, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	node := &models.TreeNode{Name: filepath.Base(root), Type: models.KindDirectory, Path: "."}
	if err := s.scanDir(root, ".", node, nil); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *Scanner) scanDir(root, rel string, node *models.TreeNode, pruned map[string]bool) error {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", rel, err)
	}

	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "." {
			childRel = rel + "/" + entry.Name()
		}
		if s.Skipped(childRel, entry.IsDir()) {
			if pruned != nil {
				pruned[childRel] = true
			}
			continue
		}

		child := &models.TreeNode{Name: entry.Name(), Type: models.KindFile, Path: childRel}
		if entry.IsDir() {
			child.Type = models.KindDirectory
			if err := s.scanDir(root, childRel, child, pruned); err != nil {
				return err
			}
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

// Discover returns the absolute paths of every documentation file under
// root, sorted.
func (s *Scanner) Discover(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	var docs []string
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == absRoot {
				return err
			}
			return nil // unreadable subtrees are not fatal
		}
		rel, _ := filepath.Rel(absRoot, p)
		rel = filepath.ToSlash(rel)
		if s.Skipped(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), models.DocumentExtension) {
			docs = append(docs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering documents under %s: %w", root, err)
	}

	sort.Strings(docs)
	return docs, nil
}

// Snapshot is the set of paths that exist under a project root at scan
// time, keyed by root-relative slash path.
type Snapshot struct {
	root    string
	entries map[string]models.EntryKind
	pruned  map[string]bool
}

// Snapshot scans root and records every existing path. Skipped entries
// and their contents are not enumerated; lookups for them, and for paths
// outside root, fall back to the filesystem.
func (s *Scanner) Snapshot(root string) (*Snapshot, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	tree := &models.TreeNode{Name: filepath.Base(absRoot), Type: models.KindDirectory, Path: "."}
	pruned := make(map[string]bool)
	if err := s.scanDir(absRoot, ".", tree, pruned); err != nil {
		return nil, err
	}
	snap := NewSnapshot(absRoot, tree)
	snap.pruned = pruned
	return snap, nil
}

// NewSnapshot builds a snapshot from an already scanned tree.
func NewSnapshot(root string, tree *models.TreeNode) *Snapshot {
	snap := &Snapshot{
		root:    root,
		entries: make(map[string]models.EntryKind),
		pruned:  make(map[string]bool),
	}
	tree.Walk(func(n *models.TreeNode) {
		snap.entries[n.Path] = n.Type
	})
	return snap
}

// Root returns the absolute project root the snapshot was taken from.
func (s *Snapshot) Root() string {
	return s.root
}

// Len returns the number of recorded paths, including the root.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Kind returns the kind of the entry at the root-relative path rel.
func (s *Snapshot) Kind(rel string) (models.EntryKind, bool) {
	rel = normalize(rel)
	if k, ok := s.entries[rel]; ok {
		return k, true
	}
	if !s.underPruned(rel) && !strings.HasPrefix(rel, "../") {
		return "", false
	}
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return models.KindDirectory, true
	}
	return models.KindFile, true
}

// Exists reports whether rel existed when the snapshot was taken.
func (s *Snapshot) Exists(rel string) bool {
	_, ok := s.Kind(rel)
	return ok
}

func (s *Snapshot) underPruned(rel string) bool {
	for dir := rel; dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		if s.pruned[dir] {
			return true
		}
	}
	return false
}

func normalize(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	return strings.TrimPrefix(rel, "./")
}
