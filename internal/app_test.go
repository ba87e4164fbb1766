package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/lmay/internal/cli"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/storage"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// saveCLI restores the CLI service variables NewApp overwrites.
func saveCLI(t *testing.T) {
	t.Helper()
	logger, root, cfg, s := cli.Logger, cli.ProjectRoot, cli.Config, cli.Scanner
	validator, drift, runs := cli.Validator, cli.Drift, cli.Runs
	eventLog, alerts, metrics := cli.EventLog, cli.AlertEngine, cli.MetricsCalc
	t.Cleanup(func() {
		cli.Logger, cli.ProjectRoot, cli.Config, cli.Scanner = logger, root, cfg, s
		cli.Validator, cli.Drift, cli.Runs = validator, drift, runs
		cli.EventLog, cli.AlertEngine, cli.MetricsCalc = eventLog, alerts, metrics
	})
}

func newTestApp(t *testing.T, opts cli.GlobalOptions) *App {
	t.Helper()
	saveCLI(t)
	a, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewApp_Success(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, cli.GlobalOptions{Project: dir, LogLevel: "off"})

	want, _ := core.Canonicalize(dir)
	if a.ProjectRoot != want {
		t.Errorf("ProjectRoot = %q, want %q", a.ProjectRoot, want)
	}
	if a.Config == nil || a.Config.RootDocument != core.DefaultRootDocument {
		t.Errorf("expected default configuration, got %+v", a.Config)
	}
	if a.Scanner == nil || a.Validator == nil || a.Drift == nil {
		t.Error("expected core services to be wired")
	}
	if a.Runs == nil || a.EventLog == nil || a.AlertEngine == nil || a.MetricsCalc == nil {
		t.Error("expected storage and observability to be wired")
	}

	// State lives in the hidden project directory.
	for _, p := range []string{storage.RunStorePath(want), storage.EventLogPath(want)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	// The CLI sees the same instances.
	if cli.ProjectRoot != a.ProjectRoot || cli.Config != a.Config || cli.Runs != a.Runs {
		t.Error("expected CLI variables to point at the app services")
	}
}

func TestNewApp_ReadsConfig(t *testing.T) {
	dir := t.TempDir()
	rc := "root_document: docs/index.lmay\nalerts:\n  max_obsolete: 3\nscan:\n  ignore:\n    - \"vendor/**\"\nreport:\n  format: json\n"
	if err := os.WriteFile(filepath.Join(dir, core.ConfigFileName), []byte(rc), 0o644); err != nil {
		t.Fatal(err)
	}

	a := newTestApp(t, cli.GlobalOptions{Project: dir, LogLevel: "off"})

	if a.Config.RootDocument != "docs/index.lmay" {
		t.Errorf("RootDocument = %q, want docs/index.lmay", a.Config.RootDocument)
	}
	if a.Config.Report.Format != models.FormatJSON {
		t.Errorf("Report.Format = %q, want json", a.Config.Report.Format)
	}
	if !a.Scanner.Skipped("vendor/lib", true) {
		t.Error("expected scan.ignore to reach the scanner")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, core.ConfigFileName), []byte("drift:\n  threshold_days: -4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	saveCLI(t)

	_, err := NewApp(cli.GlobalOptions{Project: dir, LogLevel: "off"})
	if err == nil || !strings.Contains(err.Error(), "threshold_days") {
		t.Errorf("expected threshold_days error, got %v", err)
	}
}

func TestNewApp_MissingConfigFile(t *testing.T) {
	saveCLI(t)

	_, err := NewApp(cli.GlobalOptions{
		Project:    t.TempDir(),
		ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"),
		LogLevel:   "off",
	})
	if err == nil {
		t.Fatal("expected error for an explicit config file that does not exist")
	}
}

func TestNewApp_StateDirUnavailable(t *testing.T) {
	dir := t.TempDir()
	// A file where the state directory should be disables history and
	// events without failing the app.
	if err := os.WriteFile(filepath.Join(dir, storage.StateDirName), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := newTestApp(t, cli.GlobalOptions{Project: dir, LogLevel: "off"})

	if a.Runs != nil || a.EventLog != nil {
		t.Error("expected run store and event log to be disabled")
	}
	if a.AlertEngine != nil || a.MetricsCalc != nil {
		t.Error("expected alerts and metrics to be disabled without an event log")
	}
	if a.Validator == nil {
		t.Error("expected validation to stay available")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close with nil stores: %v", err)
	}
}

func TestResolveProjectRoot(t *testing.T) {
	dir := t.TempDir()
	want, _ := core.Canonicalize(dir)

	got, err := ResolveProjectRoot(dir)
	if err != nil || got != want {
		t.Errorf("ResolveProjectRoot(dir) = %q, %v; want %q", got, err, want)
	}

	t.Setenv(ProjectEnv, dir)
	got, err = ResolveProjectRoot("")
	if err != nil || got != want {
		t.Errorf("ResolveProjectRoot with %s = %q, %v; want %q", ProjectEnv, got, err, want)
	}

	if _, err := ResolveProjectRoot(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for a missing project")
	}

	file := filepath.Join(dir, "root.lmay")
	if err := os.WriteFile(file, []byte("version: \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveProjectRoot(file); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("expected not a directory error, got %v", err)
	}
}

func TestResolveProjectRoot_FallbackToCwd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ProjectEnv, "")
	t.Chdir(dir)

	got, err := ResolveProjectRoot("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := core.Canonicalize(dir)
	if got != want {
		t.Errorf("ResolveProjectRoot(\"\") = %q, want %q", got, want)
	}
}

func TestBootstrapAndShutdown(t *testing.T) {
	saveCLI(t)
	t.Cleanup(func() { _ = Shutdown() })

	if err := Bootstrap(cli.GlobalOptions{Project: t.TempDir(), LogLevel: "off"}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if current == nil {
		t.Fatal("expected Bootstrap to keep the app")
	}
	if err := Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if current != nil {
		t.Error("expected Shutdown to release the app")
	}
	if err := Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}

	if err := Bootstrap(cli.GlobalOptions{Project: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected Bootstrap error for a missing project")
	}
}
