package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultMaxTraversalDepth bounds how many nested-document hops a traversal
// follows before giving up.
const DefaultMaxTraversalDepth = 256

// DocumentDiscoverer lists the documentation files under a project root.
type DocumentDiscoverer interface {
	Discover(root string) ([]string, error)
}

// ReferenceOptions configures a ReferenceValidator.
type ReferenceOptions struct {
	// ContinueOnRootError keeps validating every discovered document when
	// the root document cannot be loaded.
	ContinueOnRootError bool
	// MaxTraversalDepth is the deepest nested-document hop followed.
	MaxTraversalDepth int
}

// ReferenceValidator resolves the paths documents point at and checks the
// nested-document graph for cycles and orphans.
type ReferenceValidator struct {
	loader     *DocumentLoader
	discoverer DocumentDiscoverer
	opts       ReferenceOptions
	logger     zerolog.Logger
}

// NewReferenceValidator creates a ReferenceValidator sharing loader's cache.
func NewReferenceValidator(loader *DocumentLoader, discoverer DocumentDiscoverer, opts ReferenceOptions, logger zerolog.Logger) *ReferenceValidator {
	if opts.MaxTraversalDepth <= 0 {
		opts.MaxTraversalDepth = DefaultMaxTraversalDepth
	}
	return &ReferenceValidator{
		loader:     loader,
		discoverer: discoverer,
		opts:       opts,
		logger:     logger.With().Str("validator", models.ValidatorReferences).Logger(),
	}
}

// CollectReferences returns every path doc points at, in a stable order.
func CollectReferences(doc *models.Document) []models.Reference {
	var refs []models.Reference
	for _, key := range sortedKeys(doc.Structure) {
		entry := doc.Structure[key]
		if entry.Path != "" {
			refs = append(refs, models.Reference{
				Kind:     models.RefStructurePath,
				Raw:      entry.Path,
				Pointer:  pointer("structure", key, "path"),
				Expected: entry.Kind,
			})
		}
		if entry.LmayFile != "" {
			refs = append(refs, models.Reference{
				Kind:    models.RefLmayFileLink,
				Raw:     entry.LmayFile,
				Pointer: pointer("structure", key, "lmay_file"),
			})
		}
	}
	for i, ep := range doc.Architecture.EntryPoints {
		if ep.Path != "" {
			refs = append(refs, models.Reference{
				Kind:    models.RefEntryPoint,
				Raw:     ep.Path,
				Pointer: pointer("architecture", "entry_points", strconv.Itoa(i), "path"),
			})
		}
	}
	for i, dep := range doc.Dependencies.Internal {
		if dep.Path != "" {
			refs = append(refs, models.Reference{
				Kind:    models.RefInternalDependency,
				Raw:     dep.Path,
				Pointer: pointer("dependencies", "internal", strconv.Itoa(i), "path"),
			})
		}
	}
	if doc.Hierarchy != nil && doc.Hierarchy.Parent != "" {
		refs = append(refs, models.Reference{
			Kind:    models.RefParent,
			Raw:     doc.Hierarchy.Parent,
			Pointer: pointer("hierarchy", "parent"),
		})
	}
	return refs
}

func sortedKeys(m map[string]models.StructureEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveLink resolves a path written in a document against baseDir.
func resolveLink(baseDir, ref string) string {
	ref = filepath.FromSlash(ref)
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(baseDir, ref)
}

// ValidateFileReferences checks that every path doc points at exists on
// disk, resolving relative paths against basePath.
func (v *ReferenceValidator) ValidateFileReferences(doc *models.Document, documentPath, basePath string) *models.ValidationResult {
	res := models.NewValidationResult()
	var root *yaml.Node
	if ld, ok := v.loader.Cached(documentPath); ok {
		root = ld.Root
	}

	add := func(sev models.Severity, typ models.FindingType, ref models.Reference, suggestion, format string, args ...any) {
		f := models.Finding{
			Type:       typ,
			Severity:   sev,
			Validator:  models.ValidatorReferences,
			Message:    fmt.Sprintf(format, args...),
			File:       documentPath,
			Path:       ref.Pointer,
			Suggestion: suggestion,
		}
		f.Line, f.Column = locate(root, ref.Pointer)
		res.Add(f)
	}

	for _, ref := range CollectReferences(doc) {
		target := resolveLink(basePath, ref.Raw)
		info, err := os.Stat(target)
		exists := err == nil

		switch ref.Kind {
		case models.RefStructurePath:
			if !exists {
				add(models.SeverityError, models.FindingReferencedPathNotFound, ref, "create the path or update the structure entry", "structure path %q does not exist", ref.Raw)
				continue
			}
			actual := models.KindFile
			if info.IsDir() {
				actual = models.KindDirectory
			}
			if (ref.Expected == models.KindFile || ref.Expected == models.KindDirectory) && ref.Expected != actual {
				add(models.SeverityError, models.FindingTypeMismatch, ref, fmt.Sprintf("set type to %q", actual), "structure path %q is declared as a %s but is a %s", ref.Raw, ref.Expected, actual)
			}

		case models.RefLmayFileLink:
			if !strings.EqualFold(filepath.Ext(ref.Raw), models.DocumentExtension) {
				add(models.SeverityWarning, models.FindingMissingLmayExtension, ref, "rename the linked file with the "+models.DocumentExtension+" extension", "linked document %q does not use the %s extension", ref.Raw, models.DocumentExtension)
			}
			if !exists {
				add(models.SeverityError, models.FindingReferencedPathNotFound, ref, "create the document or remove the link", "linked document %q does not exist", ref.Raw)
			}

		case models.RefEntryPoint:
			if !exists {
				add(models.SeverityError, models.FindingReferencedPathNotFound, ref, "", "entry point %q does not exist", ref.Raw)
				continue
			}
			if info.IsDir() {
				add(models.SeverityError, models.FindingEntryPointNotFile, ref, "point the entry point at a file", "entry point %q is a directory, not a file", ref.Raw)
			}

		case models.RefInternalDependency:
			if !exists {
				add(models.SeverityError, models.FindingReferencedPathNotFound, ref, "", "internal dependency %q does not exist", ref.Raw)
			}

		case models.RefParent:
			if !exists {
				add(models.SeverityError, models.FindingReferencedPathNotFound, ref, "", "parent document %q does not exist", ref.Raw)
			}
		}
	}
	return res
}

// ValidateProject validates references for every document reachable from
// the root document, then reports link cycles and orphaned documents.
// File fields hold absolute paths; cycle paths are relative to the project
// root.
func (v *ReferenceValidator) ValidateProject(ctx context.Context, projectRoot, rootRel string) *models.ValidationResult {
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

	t := &traversal{
		v:       v,
		res:     res,
		root:    root,
		graph:   newLinkGraph(),
		visited: make(map[string]bool),
	}

	var starts []string
	if _, rootErr := v.loader.Load(rootPath); rootErr != nil {
		res.Add(loadFinding(rootErr, rootPath))
		if !v.opts.ContinueOnRootError {
			v.logger.Debug().Str("root", rootPath).Msg("root document failed to load, skipping references")
			return res
		}
		docs, err := t.discover()
		if err != nil {
			v.logger.Warn().Err(err).Msg("discovery failed")
		}
		for _, d := range docs {
			if d == rootPath {
				continue
			}
			if _, err := v.loader.Load(d); err != nil {
				res.Add(loadFinding(err, d))
				continue
			}
			starts = append(starts, d)
		}
	} else {
		starts = []string{rootPath}
	}

	for _, s := range starts {
		if ctx.Err() != nil {
			return res
		}
		t.visit(ctx, s, 0)
	}

	for _, cycle := range t.graph.cycles(starts) {
		t.reportCycle(cycle)
	}

	if len(starts) == 1 && starts[0] == rootPath {
		t.reportOrphans(rootPath)
	}

	v.logger.Debug().
		Int("documents", len(t.visited)).
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Msg("reference validation finished")
	return res
}

// traversal holds the state of one ValidateProject call.
type traversal struct {
	v             *ReferenceValidator
	res           *models.ValidationResult
	root          string
	graph         *linkGraph
	visited       map[string]bool
	depthExceeded bool
}

func (t *traversal) visit(ctx context.Context, path string, depth int) {
	if t.visited[path] || ctx.Err() != nil {
		return
	}
	t.visited[path] = true

	if depth > t.v.opts.MaxTraversalDepth {
		if !t.depthExceeded {
			t.depthExceeded = true
			t.res.Add(models.Finding{
				Type:       models.FindingTraversalDepthExceeded,
				Severity:   models.SeverityError,
				Validator:  models.ValidatorReferences,
				Message:    fmt.Sprintf("nested documents exceed the maximum traversal depth of %d", t.v.opts.MaxTraversalDepth),
				File:       path,
				Suggestion: "flatten the documentation tree or raise references.max_traversal_depth",
			})
		}
		return
	}

	ld, err := t.v.loader.Load(path)
	if err != nil {
		return
	}
	if ld.Doc == nil {
		for _, f := range ld.DecodeFindings() {
			t.res.Add(f)
		}
		return
	}
	dir := filepath.Dir(path)
	t.res.Merge(t.v.ValidateFileReferences(ld.Doc, path, dir))

	for _, key := range sortedKeys(ld.Doc.Structure) {
		link := ld.Doc.Structure[key].LmayFile
		if link == "" {
			continue
		}
		ptr := pointer("structure", key, "lmay_file")
		target, err := Canonicalize(resolveLink(dir, link))
		if err != nil {
			continue
		}
		if _, err := os.Stat(target); err != nil {
			continue
		}
		t.graph.addEdge(path, target, ptr)
		if _, err := t.v.loader.Load(target); err != nil {
			f := models.Finding{
				Type:       models.FindingBrokenDocumentLink,
				Severity:   models.SeverityError,
				Validator:  models.ValidatorReferences,
				Message:    fmt.Sprintf("linked document %q failed to load: %v", link, err),
				File:       path,
				Path:       ptr,
				Suggestion: "fix the linked document or remove the link",
			}
			f.Line, f.Column = locate(ld.Root, ptr)
			t.res.Add(f)
			continue
		}
		t.visit(ctx, target, depth+1)
	}
}

func (t *traversal) reportCycle(cycle []string) {
	closing := cycle[len(cycle)-2]
	ptr := t.graph.pointerOf(closing, cycle[len(cycle)-1])

	rels := make([]string, len(cycle))
	for i, p := range cycle {
		rels[i] = t.rel(p)
	}
	f := models.Finding{
		Type:       models.FindingCircularReference,
		Severity:   models.SeverityError,
		Validator:  models.ValidatorReferences,
		Message:    "circular reference: " + strings.Join(rels, " -> "),
		File:       closing,
		Path:       ptr,
		Suggestion: "remove one of the lmay_file links in the loop",
		Cycle:      rels,
	}
	if ld, ok := t.v.loader.Cached(closing); ok {
		f.Line, f.Column = locate(ld.Root, ptr)
	}
	t.res.Add(f)
}

func (t *traversal) reportOrphans(rootPath string) {
	docs, err := t.discover()
	if err != nil {
		t.v.logger.Warn().Err(err).Msg("discovery failed, skipping orphan detection")
		return
	}
	reachable := t.graph.reachable(rootPath)
	for _, d := range docs {
		if reachable[d] {
			continue
		}
		t.res.Add(models.Finding{
			Type:       models.FindingOrphanDocument,
			Severity:   models.SeverityWarning,
			Validator:  models.ValidatorReferences,
			Message:    fmt.Sprintf("document is not linked from %s", t.rel(rootPath)),
			File:       d,
			Suggestion: "link it from a parent document's structure entry, or delete it",
		})
	}
}

// discover returns the canonical paths of all documents under the root.
func (t *traversal) discover() ([]string, error) {
	if t.v.discoverer == nil {
		return nil, errors.New("no document discoverer configured")
	}
	found, err := t.v.discoverer.Discover(t.root)
	if err != nil {
		return nil, err
	}
	docs := make([]string, 0, len(found))
	for _, d := range found {
		c, err := Canonicalize(d)
		if err != nil {
			continue
		}
		docs = append(docs, c)
	}
	sort.Strings(docs)
	return docs, nil
}

func (t *traversal) rel(p string) string {
	return relativeTo(t.root, p)
}

// relativeTo renders p relative to root with forward slashes, or returns p
// unchanged when it cannot be expressed that way.
func relativeTo(root, p string) string {
	if p == "" || !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// loadFinding converts a load failure into a finding against file.
func loadFinding(err error, file string) models.Finding {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Finding()
	}
	return models.Finding{
		Type:      models.FindingFileNotFound,
		Severity:  models.SeverityError,
		Validator: models.ValidatorLoader,
		Message:   err.Error(),
		File:      file,
	}
}
