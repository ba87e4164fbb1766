package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/pkg/models"
	"golang.org/x/sync/errgroup"
)

// DefaultRootDocument is the root document name used when none is configured.
const DefaultRootDocument = "root.lmay"

// Session is the state of one validation invocation. Its loader cache is
// never shared between invocations.
type Session struct {
	ID        string
	StartedAt time.Time
	Loader    *DocumentLoader
}

// NewSession creates a session. An empty id is replaced by a random UUID.
func NewSession(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		Loader:    NewDocumentLoader(),
	}
}

// ValidateOptions configures one ValidateProject call.
type ValidateOptions struct {
	ProjectRoot         string
	RootDocument        string
	RunID               string
	StrictFields        bool
	ContinueOnRootError bool
	CheckReferences     bool
	CheckHierarchy      bool
	MaxDepth            int
	MaxTraversalDepth   int
}

// DefaultValidateOptions returns options with every validator enabled.
func DefaultValidateOptions(projectRoot string) ValidateOptions {
	return ValidateOptions{
		ProjectRoot:       projectRoot,
		RootDocument:      DefaultRootDocument,
		CheckReferences:   true,
		CheckHierarchy:    true,
		MaxDepth:          DefaultMaxHierarchyDepth,
		MaxTraversalDepth: DefaultMaxTraversalDepth,
	}
}

// ValidateOptionsFromConfig maps project configuration onto validation
// options.
func ValidateOptionsFromConfig(projectRoot string, cfg *models.Config) ValidateOptions {
	opts := DefaultValidateOptions(projectRoot)
	if cfg == nil {
		return opts
	}
	if cfg.RootDocument != "" {
		opts.RootDocument = cfg.RootDocument
	}
	opts.StrictFields = cfg.Schema.StrictFields
	opts.ContinueOnRootError = cfg.References.ContinueOnRootError
	opts.CheckReferences = cfg.References.Enabled
	opts.CheckHierarchy = cfg.Hierarchy.Enabled
	if cfg.Hierarchy.MaxDepth > 0 {
		opts.MaxDepth = cfg.Hierarchy.MaxDepth
	}
	if cfg.References.MaxTraversalDepth > 0 {
		opts.MaxTraversalDepth = cfg.References.MaxTraversalDepth
	}
	return opts
}

// ValidationService runs every validator over a project and aggregates
// their findings.
type ValidationService interface {
	ValidateProject(ctx context.Context, opts ValidateOptions) (*models.ValidationResult, error)
}

type validationService struct {
	discoverer DocumentDiscoverer
	logger     zerolog.Logger
	workers    int
}

// NewValidationService creates a ValidationService that finds documents
// with discoverer.
func NewValidationService(discoverer DocumentDiscoverer, logger zerolog.Logger) ValidationService {
	return &validationService{
		discoverer: discoverer,
		logger:     logger,
		workers:    runtime.GOMAXPROCS(0),
	}
}

// ValidateProject validates every document under opts.ProjectRoot. A root
// document that cannot be loaded aborts the run with an error unless
// opts.ContinueOnRootError is set; every other problem is reported as a
// finding.
func (s *validationService) ValidateProject(ctx context.Context, opts ValidateOptions) (*models.ValidationResult, error) {
	if opts.RootDocument == "" {
		opts.RootDocument = DefaultRootDocument
	}
	root, err := Canonicalize(opts.ProjectRoot)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening project %s: %w", opts.ProjectRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening project %s: not a directory", opts.ProjectRoot)
	}

	session := NewSession(opts.RunID)
	log := s.logger.With().Str("run_id", session.ID).Logger()

	docs, err := s.discover(root)
	if err != nil {
		return nil, err
	}
	rootPath, err := Canonicalize(filepath.Join(root, filepath.FromSlash(opts.RootDocument)))
	if err != nil {
		return nil, err
	}
	if !containsPath(docs, rootPath) {
		docs = append(docs, rootPath)
		sort.Strings(docs)
	}
	log.Debug().Int("documents", len(docs)).Str("root", root).Msg("discovered documents")

	res := models.NewValidationResult()
	loaded := make([]*LoadedDocument, 0, len(docs))
	var rootErr error
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ld, err := session.Loader.Load(d)
		if err != nil {
			log.Debug().Err(err).Str("document", d).Msg("document failed to load")
			res.Add(loadFinding(err, d))
			if d == rootPath {
				rootErr = err
			}
			continue
		}
		loaded = append(loaded, ld)
	}
	if rootErr != nil && !opts.ContinueOnRootError {
		return nil, fmt.Errorf("loading root document %s: %w", opts.RootDocument, rootErr)
	}

	schema := NewSchemaValidator(SchemaOptions{StrictFields: opts.StrictFields})
	schemaResults := make([]*models.ValidationResult, len(loaded))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ld := range loaded {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			schemaResults[i] = schema.Validate(ld)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, r := range schemaResults {
		res.Merge(r)
	}

	ran := []string{models.ValidatorLoader, models.ValidatorSchema}
	if opts.CheckReferences {
		rv := NewReferenceValidator(session.Loader, s.discoverer, ReferenceOptions{
			ContinueOnRootError: opts.ContinueOnRootError,
			MaxTraversalDepth:   opts.MaxTraversalDepth,
		}, log)
		res.Merge(rv.ValidateProject(ctx, root, opts.RootDocument))
		ran = append(ran, models.ValidatorReferences)
	}
	if opts.CheckHierarchy {
		if rootErr == nil {
			hv := NewHierarchyValidator(session.Loader, HierarchyOptions{
				MaxDepth:          opts.MaxDepth,
				MaxTraversalDepth: opts.MaxTraversalDepth,
			}, log)
			res.Merge(hv.ValidateHierarchy(ctx, root, opts.RootDocument))
		}
		ran = append(ran, models.ValidatorHierarchy)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := aggregate(root, res, ran)
	out.Documents = len(docs)

	log.Info().
		Int("documents", out.Documents).
		Int("errors", len(out.Errors)).
		Int("warnings", len(out.Warnings)).
		Bool("valid", out.Valid).
		Dur("duration", time.Since(session.StartedAt)).
		Msg("validation finished")
	return out, nil
}

func (s *validationService) discover(root string) ([]string, error) {
	found, err := s.discoverer.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("discovering documents: %w", err)
	}
	seen := make(map[string]bool, len(found))
	docs := make([]string, 0, len(found))
	for _, d := range found {
		c, err := Canonicalize(d)
		if err != nil || seen[c] {
			continue
		}
		seen[c] = true
		docs = append(docs, c)
	}
	sort.Strings(docs)
	return docs, nil
}

// aggregate relativizes finding files to root, drops duplicates reported
// by more than one pass and sorts what is left so reruns are identical.
func aggregate(root string, in *models.ValidationResult, validators []string) *models.ValidationResult {
	out := models.NewValidationResult()
	seen := make(map[string]bool)
	for _, f := range in.All() {
		f.File = relativeTo(root, f.File)
		key := findingKey(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Add(f)
	}
	sortFindings(out.Errors)
	sortFindings(out.Warnings)

	out.Summarize()
	for _, name := range validators {
		if _, ok := out.Summary.PerValidator[name]; !ok {
			out.Summary.PerValidator[name] = models.Counts{}
		}
	}
	return out
}

func findingKey(f models.Finding) string {
	return strings.Join([]string{
		string(f.Severity), f.Validator, string(f.Type), f.File, f.Path, f.Message,
	}, "\x00")
}

func sortFindings(fs []models.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		return a.Validator < b.Validator
	})
}

func containsPath(paths []string, p string) bool {
	i := sort.SearchStrings(paths, p)
	return i < len(paths) && paths[i] == p
}
