package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/internal/scanner"
	"github.com/valter-silva-au/lmay/internal/storage"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// --- Helpers ---

// saveServices restores every package-level service after the test.
func saveServices(t *testing.T) {
	t.Helper()
	origLogger, origRoot, origConfig, origScanner := Logger, ProjectRoot, Config, Scanner
	origValidator, origDrift, origRuns := Validator, Drift, Runs
	origEventLog, origAlerts, origMetrics := EventLog, AlertEngine, MetricsCalc
	origBootstrap := Bootstrap
	t.Cleanup(func() {
		Logger, ProjectRoot, Config, Scanner = origLogger, origRoot, origConfig, origScanner
		Validator, Drift, Runs = origValidator, origDrift, origRuns
		EventLog, AlertEngine, MetricsCalc = origEventLog, origAlerts, origMetrics
		Bootstrap = origBootstrap
	})
}

// resetFlags restores a command's flags to their defaults before and after
// the test.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset()
	t.Cleanup(reset)
}

// captureOutput directs a command's stdout and stderr into buffers.
func captureOutput(t *testing.T, cmd *cobra.Command) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	return &stdout, &stderr
}

// setupProject wires real services over a fresh temporary project, the
// way app.go does, and returns the project root.
func setupProject(t *testing.T) string {
	t.Helper()
	saveServices(t)

	root, err := core.Canonicalize(t.TempDir())
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	s, err := scanner.New(scanner.Options{})
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	runs, err := storage.OpenRunStore(storage.RunStorePath(root))
	if err != nil {
		t.Fatalf("OpenRunStore: %v", err)
	}
	t.Cleanup(func() { _ = runs.Close() })
	eventLog, err := observability.NewJSONLEventLog(storage.EventLogPath(root))
	if err != nil {
		t.Fatalf("NewJSONLEventLog: %v", err)
	}
	t.Cleanup(func() { _ = eventLog.Close() })

	Logger = zerolog.Nop()
	ProjectRoot = root
	Config = core.DefaultConfig()
	Scanner = s
	Validator = core.NewValidationService(s, Logger)
	Drift = core.NewDriftService(s, Logger)
	Runs = runs
	EventLog = eventLog
	MetricsCalc = observability.NewMetricsCalculator(eventLog)
	AlertEngine = observability.NewAlertEngine(eventLog, observability.DefaultAlertThresholds())
	return root
}

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

func ageFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

// docWithPath renders a valid document whose structure points at path.
func docWithPath(name, path string) string {
	return "version: \"1.0.0\"\nproject:\n  name: " + name + "\nstructure:\n  src:\n    path: " + path + "\n    type: directory\n"
}

// --- Fakes ---

type metricsMock struct {
	calcFn func(since time.Time) (*observability.Metrics, error)
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	return m.calcFn(since)
}

type alertsMock struct {
	alerts []observability.Alert
	err    error
}

func (m *alertsMock) Evaluate() ([]observability.Alert, error) {
	return m.alerts, m.err
}

// memoryRunStore is an in-memory storage.RunStore.
type memoryRunStore struct {
	runs []models.RunRecord
	err  error
}

func (m *memoryRunStore) Record(_ context.Context, rec models.RunRecord) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.runs = append(m.runs, rec)
	return rec.ID, nil
}

func (m *memoryRunStore) Recent(_ context.Context, limit int) ([]models.RunRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append([]models.RunRecord(nil), m.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRunStore) Latest(ctx context.Context, kind models.RunKind) (*models.RunRecord, error) {
	runs, err := m.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.Kind == kind {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memoryRunStore) Close() error { return nil }
