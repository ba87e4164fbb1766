package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/valter-silva-au/lmay/pkg/models"
	"gopkg.in/yaml.v3"
)

// yamlLinePattern pulls the position out of yaml.v3 error messages such as
// "yaml: line 3: did not find expected key".
var yamlLinePattern = regexp.MustCompile(`line (\d+)(?:, column (\d+))?`)

// decodeTagPattern pulls the offending node's tag out of decode errors
// such as "line 4: cannot unmarshal !!str `go` into []string".
var decodeTagPattern = regexp.MustCompile(`cannot unmarshal (!!\w+)`)

// snippetRadius is the number of lines shown on each side of a syntax error.
const snippetRadius = 2

// LoadError describes why a documentation file could not be loaded. Kind
// is one of FindingFileNotFound, FindingEmptyDocument or FindingSyntaxError.
type LoadError struct {
	Kind    models.FindingType
	Path    string
	Line    int
	Column  int
	Snippet string
	Err     error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case models.FindingFileNotFound:
		return fmt.Sprintf("document not found: %s", e.Path)
	case models.FindingEmptyDocument:
		return fmt.Sprintf("document is empty: %s", e.Path)
	default:
		if e.Line > 0 {
			return fmt.Sprintf("syntax error in %s at line %d: %v", e.Path, e.Line, e.Err)
		}
		return fmt.Sprintf("syntax error in %s: %v", e.Path, e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Finding converts the load error into an error finding.
func (e *LoadError) Finding() models.Finding {
	f := models.Finding{
		Type:      e.Kind,
		Severity:  models.SeverityError,
		Validator: models.ValidatorLoader,
		Message:   e.Error(),
		File:      e.Path,
		Line:      e.Line,
		Column:    e.Column,
	}
	if e.Snippet != "" {
		f.Message += "\n" + e.Snippet
	}
	return f
}

// LoadedDocument is a parsed documentation file. Root is the top-level
// YAML node, kept for locating findings. DecodeErr is set when part of
// the YAML does not fit the document model; Doc then holds whatever did
// decode, or is nil when nothing could.
type LoadedDocument struct {
	Path      string
	Raw       []byte
	Root      *yaml.Node
	Doc       *models.Document
	DecodeErr error
}

// DocumentLoader parses documentation files and memoizes the outcome by
// canonical path for the lifetime of one validation session.
type DocumentLoader struct {
	mu    sync.RWMutex
	docs  map[string]*LoadedDocument
	errs  map[string]*LoadError
	reads int
}

// NewDocumentLoader creates an empty loader.
func NewDocumentLoader() *DocumentLoader {
	return &DocumentLoader{
		docs: make(map[string]*LoadedDocument),
		errs: make(map[string]*LoadError),
	}
}

// Canonicalize returns the absolute, symlink-resolved form of path. When
// the path does not exist the cleaned absolute path is returned.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	// Resolve the deepest existing ancestor so missing paths still compare
	// equal to their existing siblings.
	dir, base := filepath.Split(abs)
	if dir != "" && dir != abs {
		if resolvedDir, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
			return filepath.Join(resolvedDir, base), nil
		}
	}
	return abs, nil
}

// Load reads and parses the document at path. Repeated loads of the same
// canonical path return the memoized result without touching the disk.
func (l *DocumentLoader) Load(path string) (*LoadedDocument, error) {
	canonical, err := Canonicalize(path)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	if ld, ok := l.docs[canonical]; ok {
		l.mu.RUnlock()
		return ld, nil
	}
	if le, ok := l.errs[canonical]; ok {
		l.mu.RUnlock()
		return nil, le
	}
	l.mu.RUnlock()

	ld, le := l.read(canonical)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if le != nil {
		l.errs[canonical] = le
		return nil, le
	}
	l.docs[canonical] = ld
	return ld, nil
}

// Cached returns the memoized document for path, if any.
func (l *DocumentLoader) Cached(path string) (*LoadedDocument, bool) {
	canonical, err := Canonicalize(path)
	if err != nil {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	ld, ok := l.docs[canonical]
	return ld, ok
}

// Reads returns how many times the loader went to disk.
func (l *DocumentLoader) Reads() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reads
}

func (l *DocumentLoader) read(path string) (*LoadedDocument, *LoadError) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("is a directory")
		}
		return nil, &LoadError{Kind: models.FindingFileNotFound, Path: path, Err: err}
	}

	raw, err := os.ReadFile(path) //nolint:gosec // G304: documentation paths come from discovery or document links
	if err != nil {
		return nil, &LoadError{Kind: models.FindingFileNotFound, Path: path, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &LoadError{Kind: models.FindingEmptyDocument, Path: path}
	}

	var docNode yaml.Node
	if err := yaml.Unmarshal(raw, &docNode); err != nil {
		le := &LoadError{Kind: models.FindingSyntaxError, Path: path, Err: err}
		if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
			le.Line, _ = strconv.Atoi(m[1])
			if m[2] != "" {
				le.Column, _ = strconv.Atoi(m[2])
			}
			le.Snippet = snippet(raw, le.Line)
		}
		return nil, le
	}
	if docNode.Kind == 0 || len(docNode.Content) == 0 {
		// Comments only.
		return nil, &LoadError{Kind: models.FindingEmptyDocument, Path: path}
	}

	root := docNode.Content[0]
	ld := &LoadedDocument{Path: path, Raw: raw, Root: root}

	var doc models.Document
	if err := root.Decode(&doc); err != nil {
		ld.DecodeErr = err
		// Type errors leave the rest of the document decoded.
		var te *yaml.TypeError
		if !errors.As(err, &te) {
			return ld, nil
		}
	}
	doc.Path = path
	doc.ModTime = info.ModTime()
	ld.Doc = &doc
	return ld, nil
}

// DecodeFindings reports the parts of the document that did not fit the
// document model, one finding per decode error.
func (ld *LoadedDocument) DecodeFindings() []models.Finding {
	if ld.DecodeErr == nil {
		return nil
	}
	msgs := []string{ld.DecodeErr.Error()}
	var te *yaml.TypeError
	if errors.As(ld.DecodeErr, &te) {
		msgs = te.Errors
	}

	findings := make([]models.Finding, 0, len(msgs))
	for _, msg := range msgs {
		f := models.Finding{
			Type:       models.FindingInvalidType,
			Severity:   models.SeverityError,
			Validator:  models.ValidatorSchema,
			Message:    "document does not fit the document model: " + msg,
			File:       ld.Path,
			Suggestion: "check the value type against the document format",
		}
		if m := yamlLinePattern.FindStringSubmatch(msg); m != nil {
			f.Line, _ = strconv.Atoi(m[1])
			var tag string
			if t := decodeTagPattern.FindStringSubmatch(msg); t != nil {
				tag = t[1]
			}
			if f.Path = pointerAtLine(ld.Root, f.Line, tag); f.Path != "" {
				f.Line, f.Column = locate(ld.Root, f.Path)
			}
		}
		findings = append(findings, f)
	}
	return findings
}

// snippet renders the lines around line (1-based) with a marker on it.
func snippet(raw []byte, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(string(raw), "\n")
	start := line - snippetRadius
	if start < 1 {
		start = 1
	}
	end := line + snippetRadius
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		marker := "  "
		if i == line {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, i, lines[i-1])
	}
	return strings.TrimRight(b.String(), "\n")
}
