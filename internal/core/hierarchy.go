package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// DefaultMaxHierarchyDepth is the depth past which a hierarchy is reported
// as excessively deep.
const DefaultMaxHierarchyDepth = 10

const (
	// flatHierarchyWidth is the number of depth-1 documents above which a
	// one-level tree counts as flat.
	flatHierarchyWidth = 10
	// unbalancedRatio is the growth factor between adjacent levels above
	// which a tree counts as unbalanced.
	unbalancedRatio = 3
	// maxHierarchyNodes caps the number of placed nodes.
	maxHierarchyNodes = 10000
)

// HierarchyOptions configures a HierarchyValidator.
type HierarchyOptions struct {
	MaxDepth          int
	MaxTraversalDepth int
}

// HierarchyValidator builds the parent/child document tree from the root
// and checks declared hierarchy metadata against it.
type HierarchyValidator struct {
	loader *DocumentLoader
	opts   HierarchyOptions
	logger zerolog.Logger
}

// NewHierarchyValidator creates a HierarchyValidator sharing loader's cache.
func NewHierarchyValidator(loader *DocumentLoader, opts HierarchyOptions, logger zerolog.Logger) *HierarchyValidator {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxHierarchyDepth
	}
	if opts.MaxTraversalDepth <= 0 {
		opts.MaxTraversalDepth = DefaultMaxTraversalDepth
	}
	return &HierarchyValidator{
		loader: loader,
		opts:   opts,
		logger: logger.With().Str("validator", models.ValidatorHierarchy).Logger(),
	}
}

// hierarchyNode is a document placed in the tree. A document reachable
// along several paths appears once per path, but the subtree below a
// document at a given depth is expanded only once; later placements are
// shared leaves.
type hierarchyNode struct {
	path     string
	doc      *LoadedDocument
	depth    int
	parent   *hierarchyNode
	children []*hierarchyNode
	shared   bool
}

func (n *hierarchyNode) walk(fn func(*hierarchyNode)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// chain returns the paths from the tree root down to n.
func (n *hierarchyNode) chain() []string {
	var out []string
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur.path)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type hierarchyCycleError struct {
	chain   []string
	from    string
	pointer string
}

func (e *hierarchyCycleError) Error() string {
	return "circular hierarchy: " + strings.Join(e.chain, " -> ")
}

var errHierarchyLimit = errors.New("hierarchy exceeds traversal limits")

type treeBuilder struct {
	v        *HierarchyValidator
	ctx      context.Context
	nodes    int
	expanded map[placementKey]bool
}

type placementKey struct {
	path  string
	depth int
}

// buildTree follows nested-document links from the root document. Each
// branch carries its own visited set so siblings never collide.
func (v *HierarchyValidator) buildTree(ctx context.Context, rootPath string) (*hierarchyNode, error) {
	b := &treeBuilder{v: v, ctx: ctx, expanded: make(map[placementKey]bool)}
	return b.build(rootPath, nil, 0, map[string]bool{})
}

func (b *treeBuilder) build(p string, parent *hierarchyNode, depth int, visited map[string]bool) (*hierarchyNode, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	b.nodes++
	if b.nodes > maxHierarchyNodes {
		return nil, errHierarchyLimit
	}

	node := &hierarchyNode{path: p, depth: depth, parent: parent}
	ld, err := b.v.loader.Load(p)
	if err != nil || ld.Doc == nil {
		return node, nil
	}
	node.doc = ld

	// The same document at the same depth has the same subtree. A cycle
	// through it would have been found when it was first expanded.
	pk := placementKey{path: p, depth: depth}
	if b.expanded[pk] {
		node.shared = true
		return node, nil
	}
	b.expanded[pk] = true

	branch := make(map[string]bool, len(visited)+1)
	for k := range visited {
		branch[k] = true
	}
	branch[p] = true

	dir := filepath.Dir(p)
	for _, key := range sortedKeys(ld.Doc.Structure) {
		link := ld.Doc.Structure[key].LmayFile
		if link == "" {
			continue
		}
		target, err := Canonicalize(resolveLink(dir, link))
		if err != nil {
			continue
		}
		if _, err := os.Stat(target); err != nil {
			continue
		}
		if branch[target] {
			return nil, &hierarchyCycleError{
				chain:   append(node.chain(), target),
				from:    p,
				pointer: pointer("structure", key, "lmay_file"),
			}
		}
		if depth+1 > b.v.opts.MaxTraversalDepth {
			return nil, errHierarchyLimit
		}
		if _, err := b.v.loader.Load(target); err != nil {
			continue
		}
		child, err := b.build(target, node, depth+1, branch)
		if err != nil {
			return nil, err
		}
		node.children = append(node.children, child)
	}
	return node, nil
}

// ValidateHierarchy builds the document tree from the root and reports
// hierarchy metadata that disagrees with it, plus the shape warnings for
// the whole tree.
func (v *HierarchyValidator) ValidateHierarchy(ctx context.Context, projectRoot, rootRel string) *models.ValidationResult {
	res := models.NewValidationResult()

	root, err := Canonicalize(projectRoot)
	if err != nil {
		res.Add(loadFinding(err, projectRoot))
		return res
	}
	rootPath, err := Canonicalize(filepath.Join(root, filepath.FromSlash(rootRel)))
	if err != nil {
		res.Add(loadFinding(err, rootRel))
		return res
	}
	if _, err := v.loader.Load(rootPath); err != nil {
		res.Add(loadFinding(err, rootPath))
		return res
	}

	tree, err := v.buildTree(ctx, rootPath)
	var cycle *hierarchyCycleError
	switch {
	case errors.As(err, &cycle):
		rels := make([]string, len(cycle.chain))
		for i, p := range cycle.chain {
			rels[i] = relativeTo(root, p)
		}
		f := models.Finding{
			Type:       models.FindingCircularReference,
			Severity:   models.SeverityError,
			Validator:  models.ValidatorHierarchy,
			Message:    "circular hierarchy: " + strings.Join(rels, " -> "),
			File:       cycle.from,
			Path:       cycle.pointer,
			Suggestion: "a document must not be its own ancestor",
			Cycle:      rels,
		}
		if ld, ok := v.loader.Cached(cycle.from); ok {
			f.Line, f.Column = locate(ld.Root, cycle.pointer)
		}
		res.Add(f)
		return res
	case errors.Is(err, errHierarchyLimit):
		res.Add(models.Finding{
			Type:       models.FindingTraversalDepthExceeded,
			Severity:   models.SeverityError,
			Validator:  models.ValidatorHierarchy,
			Message:    fmt.Sprintf("hierarchy exceeds %d levels or %d nodes", v.opts.MaxTraversalDepth, maxHierarchyNodes),
			File:       rootPath,
			Suggestion: "flatten the documentation tree or raise references.max_traversal_depth",
		})
		return res
	case err != nil:
		v.logger.Debug().Err(err).Msg("hierarchy build interrupted")
		return res
	}

	v.checkDeclarations(tree, res)
	v.checkShape(tree, res)
	return res
}

// placement collects every position a document occupies in the tree.
type placement struct {
	node    *hierarchyNode
	depths  map[int]bool
	parents []*hierarchyNode
}

// checkDeclarations compares declared depth and parent with the computed
// tree. Each document is checked once, accepting any position it holds.
func (v *HierarchyValidator) checkDeclarations(tree *hierarchyNode, res *models.ValidationResult) {
	byPath := make(map[string]*placement)
	var order []string
	tree.walk(func(n *hierarchyNode) {
		pl, ok := byPath[n.path]
		if !ok {
			pl = &placement{node: n, depths: make(map[int]bool)}
			byPath[n.path] = pl
			order = append(order, n.path)
		}
		pl.depths[n.depth] = true
		if n.parent != nil {
			pl.parents = append(pl.parents, n.parent)
		}
	})

	for _, p := range order {
		pl := byPath[p]
		n := pl.node
		if n.doc == nil || n.doc.Doc == nil || n.doc.Doc.Hierarchy == nil {
			continue
		}
		h := n.doc.Doc.Hierarchy

		if h.Depth != nil && !pl.depths[*h.Depth] {
			ptr := pointer("hierarchy", "depth")
			f := models.Finding{
				Type:       models.FindingIncorrectHierarchyDepth,
				Severity:   models.SeverityError,
				Validator:  models.ValidatorHierarchy,
				Message:    fmt.Sprintf("declared depth %d but the document is at depth %d", *h.Depth, n.depth),
				File:       p,
				Path:       ptr,
				Suggestion: fmt.Sprintf("set hierarchy.depth to %d", n.depth),
			}
			f.Line, f.Column = locate(n.doc.Root, ptr)
			res.Add(f)
		}

		if h.Parent == "" {
			continue
		}
		ptr := pointer("hierarchy", "parent")
		declared := path.Clean(filepath.ToSlash(h.Parent))
		var expected []string
		match := false
		for _, parent := range pl.parents {
			rel, err := filepath.Rel(filepath.Dir(p), parent.path)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			expected = append(expected, rel)
			if rel == declared {
				match = true
			}
		}
		if match {
			continue
		}
		f := models.Finding{
			Type:      models.FindingIncorrectParentReference,
			Severity:  models.SeverityError,
			Validator: models.ValidatorHierarchy,
			File:      p,
			Path:      ptr,
		}
		if len(expected) == 0 {
			f.Message = fmt.Sprintf("declares parent %q but is the root of the hierarchy", h.Parent)
			f.Suggestion = "remove hierarchy.parent"
		} else {
			f.Message = fmt.Sprintf("declares parent %q but is linked from %s", h.Parent, strings.Join(expected, ", "))
			f.Suggestion = fmt.Sprintf("set hierarchy.parent to %q", expected[0])
		}
		f.Line, f.Column = locate(n.doc.Root, ptr)
		res.Add(f)
	}
}

// checkShape reports flat, unbalanced and overly deep trees.
func (v *HierarchyValidator) checkShape(tree *hierarchyNode, res *models.ValidationResult) {
	counts := map[int]int{}
	maxDepth := 0
	tree.walk(func(n *hierarchyNode) {
		if n.shared {
			return
		}
		counts[n.depth]++
		if n.depth > maxDepth {
			maxDepth = n.depth
		}
	})

	warn := func(typ models.FindingType, suggestion, format string, args ...any) {
		res.Add(models.Finding{
			Type:       typ,
			Severity:   models.SeverityWarning,
			Validator:  models.ValidatorHierarchy,
			Message:    fmt.Sprintf(format, args...),
			File:       tree.path,
			Suggestion: suggestion,
		})
	}

	if maxDepth <= 1 && counts[1] > flatHierarchyWidth {
		warn(models.FindingFlatHierarchy, "group related documents under intermediate documents",
			"hierarchy is flat: %d documents directly under the root", counts[1])
	}

	levels := make([]int, 0, len(counts))
	for d := range counts {
		levels = append(levels, d)
	}
	sort.Ints(levels)
	for _, d := range levels {
		if d == 0 {
			continue
		}
		if prev := counts[d-1]; counts[d] > unbalancedRatio*prev {
			warn(models.FindingUnbalancedHierarchy, "spread documents more evenly across levels",
				"level %d has %d documents, more than %d times the %d at level %d", d, counts[d], unbalancedRatio, prev, d-1)
		}
	}

	if maxDepth > v.opts.MaxDepth {
		warn(models.FindingExcessiveHierarchyDepth, "flatten the documentation tree",
			"hierarchy depth %d exceeds the maximum of %d", maxDepth, v.opts.MaxDepth)
	}
}
