package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/internal/scanner"
	"github.com/valter-silva-au/lmay/pkg/models"
)

func newTestValidationService(t *testing.T) ValidationService {
	t.Helper()
	s, err := scanner.New(scanner.Options{})
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	return NewValidationService(s, zerolog.Nop())
}

func TestValidationService_ValidProject(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", minimalDoc("billing", "api/api.lmay"))
	writeProjectFile(t, root, "api/api.lmay", minimalDoc("billing-api"))

	res, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid project, got errors: %+v", res.Errors)
	}
	if res.Documents != 2 {
		t.Errorf("Documents = %d, want 2", res.Documents)
	}
	for _, name := range []string{models.ValidatorLoader, models.ValidatorSchema, models.ValidatorReferences, models.ValidatorHierarchy} {
		if _, ok := res.Summary.PerValidator[name]; !ok {
			t.Errorf("summary missing validator %q", name)
		}
	}
}

func TestValidationService_DisabledValidatorsAreNotSummarized(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", minimalDoc("billing", "missing.lmay"))

	opts := DefaultValidateOptions(root)
	opts.CheckReferences = false
	opts.CheckHierarchy = false
	res, err := newTestValidationService(t).ValidateProject(context.Background(), opts)
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}
	if !res.Valid {
		t.Errorf("broken links are not checked with references disabled, got %+v", res.Errors)
	}
	if _, ok := res.Summary.PerValidator[models.ValidatorReferences]; ok {
		t.Error("references should not appear in the summary when disabled")
	}
	if _, ok := res.Summary.PerValidator[models.ValidatorHierarchy]; ok {
		t.Error("hierarchy should not appear in the summary when disabled")
	}
}

func TestValidationService_RootFailureAborts(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "other.lmay", minimalDoc("other"))

	_, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err == nil {
		t.Fatal("expected error for missing root document")
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error %v does not wrap *LoadError", err)
	}
	if le.Kind != models.FindingFileNotFound {
		t.Errorf("Kind = %q, want FileNotFound", le.Kind)
	}
}

func TestValidationService_RootFailureContinues(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", "version: [unterminated\n")
	writeProjectFile(t, root, "a.lmay", minimalDoc("a", "gone.lmay"))

	opts := DefaultValidateOptions(root)
	opts.ContinueOnRootError = true
	res, err := newTestValidationService(t).ValidateProject(context.Background(), opts)
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid result")
	}

	syntax := findingsOfType(res, models.FindingSyntaxError)
	if len(syntax) != 1 {
		t.Fatalf("SyntaxError findings = %d, want 1 after dedupe; all: %+v", len(syntax), res.All())
	}
	if syntax[0].File != "root.lmay" {
		t.Errorf("File = %q, want root.lmay", syntax[0].File)
	}
	if n := len(findingsOfType(res, models.FindingReferencedPathNotFound)); n != 1 {
		t.Errorf("ReferencedPathNotFound findings = %d, want 1 from a.lmay", n)
	}
}

// Scenario A at the aggregate level: the link loop is reported once by the
// reference validator and once by the hierarchy validator.
func TestValidationService_CycleReportedPerValidator(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", minimalDoc("root", "a.lmay"))
	writeProjectFile(t, root, "a.lmay", minimalDoc("a", "b.lmay"))
	writeProjectFile(t, root, "b.lmay", minimalDoc("b", "a.lmay"))

	res, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}

	byValidator := map[string]int{}
	for _, f := range findingsOfType(res, models.FindingCircularReference) {
		byValidator[f.Validator]++
		if f.File != "b.lmay" {
			t.Errorf("%s cycle File = %q, want b.lmay", f.Validator, f.File)
		}
	}
	want := map[string]int{models.ValidatorReferences: 1, models.ValidatorHierarchy: 1}
	if !reflect.DeepEqual(byValidator, want) {
		t.Errorf("cycle findings by validator = %v, want %v", byValidator, want)
	}
}

func TestValidationService_SchemaFindingsFromEveryDocument(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", minimalDoc("billing", "a.lmay"))
	writeProjectFile(t, root, "a.lmay", "version: \"9.9.9\"\nproject:\n  name: app\n")
	writeProjectFile(t, root, "stray/b.lmay", "project:\n  name: stray\n")

	res, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}

	if got := findingsOfType(res, models.FindingUnsupportedVersion); len(got) != 1 || got[0].File != "a.lmay" {
		t.Errorf("UnsupportedVersion = %+v, want one on a.lmay", got)
	}
	if got := findingsOfType(res, models.FindingGenericProjectName); len(got) != 1 {
		t.Errorf("GenericProjectName findings = %d, want 1", len(got))
	}
	if got := findingsOfType(res, models.FindingMissingRequiredField); len(got) != 1 || got[0].File != "stray/b.lmay" {
		t.Errorf("MissingRequiredField = %+v, want one on stray/b.lmay", got)
	}
	if got := findingsOfType(res, models.FindingOrphanDocument); len(got) != 1 || got[0].File != "stray/b.lmay" {
		t.Errorf("OrphanDocument = %+v, want stray/b.lmay", got)
	}
	if res.Documents != 3 {
		t.Errorf("Documents = %d, want 3", res.Documents)
	}
}

func TestValidationService_FindingsAreSorted(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", minimalDoc("billing", "z.lmay", "a.lmay", "m.lmay"))
	for _, name := range []string{"z", "a", "m"} {
		writeProjectFile(t, root, name+".lmay", "version: \"1.0.0\"\nproject:\n  name: app\nstructure:\n  x:\n    path: nowhere\n    type: directory\n")
	}

	res, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}
	for _, group := range [][]models.Finding{res.Errors, res.Warnings} {
		for i := 1; i < len(group); i++ {
			if group[i-1].File > group[i].File {
				t.Errorf("findings out of order: %q before %q", group[i-1].File, group[i].File)
			}
		}
	}
	if res.Summary.Total.Errors != len(res.Errors) || res.Summary.Total.Warnings != len(res.Warnings) {
		t.Errorf("summary totals %+v disagree with findings", res.Summary.Total)
	}
}

func TestValidationService_CancelledContext(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", minimalDoc("billing"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestValidationService(t).ValidateProject(ctx, DefaultValidateOptions(root)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestValidationService_ProjectNotADirectory(t *testing.T) {
	root := canonicalRoot(t)
	file := writeProjectFile(t, root, "root.lmay", minimalDoc("billing"))

	if _, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(file)); err == nil {
		t.Fatal("expected error when the project root is a file")
	}
}

func TestValidateOptionsFromConfig(t *testing.T) {
	cfg := &models.Config{
		RootDocument: "docs/index.lmay",
		Schema:       models.SchemaConfig{StrictFields: true},
		References:   models.ReferencesConfig{Enabled: false, ContinueOnRootError: true, MaxTraversalDepth: 12},
		Hierarchy:    models.HierarchyConfig{Enabled: true, MaxDepth: 4},
	}
	got := ValidateOptionsFromConfig("/p", cfg)
	want := ValidateOptions{
		ProjectRoot:         "/p",
		RootDocument:        "docs/index.lmay",
		StrictFields:        true,
		ContinueOnRootError: true,
		CheckReferences:     false,
		CheckHierarchy:      true,
		MaxDepth:            4,
		MaxTraversalDepth:   12,
	}
	if got != want {
		t.Errorf("ValidateOptionsFromConfig = %+v, want %+v", got, want)
	}

	if got := ValidateOptionsFromConfig("/p", nil); got != DefaultValidateOptions("/p") {
		t.Errorf("nil config = %+v, want defaults", got)
	}
}

func TestNewSession(t *testing.T) {
	if s := NewSession("fixed"); s.ID != "fixed" {
		t.Errorf("ID = %q, want fixed", s.ID)
	}
	a, b := NewSession(""), NewSession("")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("generated IDs %q and %q should be unique and non-empty", a.ID, b.ID)
	}
	if a.Loader == b.Loader {
		t.Error("sessions must not share a loader")
	}
}

func TestValidationService_InterfacesListKeepsReferencesChecked(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", `version: "1.0.0"
project:
  name: billing
structure:
  src:
    path: src
    type: directory
  child:
    path: .
    type: directory
    lmay_file: child.lmay
interfaces:
  - name: rest
    kind: http
`)
	writeProjectFile(t, root, "child.lmay", minimalDoc("billing-child"))

	res, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}
	if res.Valid {
		t.Fatal("expected the missing src directory to fail validation")
	}
	missing := findingsOfType(res, models.FindingReferencedPathNotFound)
	if len(missing) != 1 || missing[0].Path != "/structure/src/path" {
		t.Errorf("expected ReferencedPathNotFound at /structure/src/path, got %+v", missing)
	}
	if orphans := findingsOfType(res, models.FindingOrphanDocument); len(orphans) != 0 {
		t.Errorf("linked child reported as orphan: %+v", orphans)
	}
}

func TestValidationService_ModelMismatchFailsValidation(t *testing.T) {
	root := canonicalRoot(t)
	writeProjectFile(t, root, "root.lmay", "version: \"1.0.0\"\nproject:\n  name: billing\n  frameworks: gin\n")

	res, err := newTestValidationService(t).ValidateProject(context.Background(), DefaultValidateOptions(root))
	if err != nil {
		t.Fatalf("ValidateProject: %v", err)
	}
	if res.Valid {
		t.Fatal("expected a document that does not fit the model to fail validation")
	}
	if got := findingsOfType(res, models.FindingInvalidType); len(got) == 0 {
		t.Errorf("expected an InvalidType finding, got %+v", res.Errors)
	}
}
