package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/lmay/pkg/models"
)

// --- Helpers ---

func writeProjectFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return p
}

func mkdirProject(t *testing.T, root, rel string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", rel, err)
	}
}

func ageFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

// canonicalRoot returns a temp dir with symlinks resolved so paths in
// findings compare equal to the ones built by tests.
func canonicalRoot(t *testing.T) string {
	t.Helper()
	root, err := Canonicalize(t.TempDir())
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	return root
}

// minimalDoc renders a valid document whose structure links to each of
// children (paths relative to the document's directory).
func minimalDoc(name string, children ...string) string {
	s := "version: \"1.0.0\"\nproject:\n  name: " + name + "\n"
	if len(children) == 0 {
		return s
	}
	s += "structure:\n"
	for i, c := range children {
		s += fmt.Sprintf("  child%d:\n", i)
		s += "    path: .\n"
		s += "    type: directory\n"
		s += "    lmay_file: " + c + "\n"
	}
	return s
}

func findingsOfType(res *models.ValidationResult, typ models.FindingType) []models.Finding {
	var out []models.Finding
	for _, f := range res.All() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}
