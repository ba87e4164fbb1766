package cli

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

// setupDriftProject creates a project with one document that references a
// missing directory and was last modified 60 days ago.
func setupDriftProject(t *testing.T) string {
	t.Helper()
	root := setupProject(t)
	doc := writeProjectFile(t, root, "root.lmay", docWithPath("svc", "gone"))
	ageFile(t, doc, 60*24*time.Hour)
	resetFlags(t, driftCmd)

	origTTY, origConfirm := stdinIsTerminal, confirmDeletion
	t.Cleanup(func() {
		stdinIsTerminal, confirmDeletion = origTTY, origConfirm
	})
	stdinIsTerminal = func() bool { return false }
	confirmDeletion = func([]string) (bool, error) {
		t.Fatal("unexpected confirmation prompt")
		return false, nil
	}
	return root
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestDriftCmd_ReportOnly(t *testing.T) {
	root := setupDriftProject(t)
	stdout, _ := captureOutput(t, driftCmd)

	if err := runDrift(driftCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "1 obsolete") || !strings.Contains(out, "OBSOLETE root.lmay") {
		t.Errorf("expected obsolete root.lmay, got:\n%s", out)
	}
	if !fileExists(root + "/root.lmay") {
		t.Error("expected document kept without --auto-clean")
	}
}

func TestDriftCmd_ThresholdFlag(t *testing.T) {
	setupDriftProject(t)
	stdout, _ := captureOutput(t, driftCmd)
	_ = driftCmd.Flags().Set("threshold-days", "90")

	if err := runDrift(driftCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "1 valid") {
		t.Errorf("expected document within threshold to be valid, got:\n%s", stdout.String())
	}
}

func TestDriftCmd_DryRun(t *testing.T) {
	root := setupDriftProject(t)
	stdout, _ := captureOutput(t, driftCmd)
	_ = driftCmd.Flags().Set("auto-clean", "true")
	_ = driftCmd.Flags().Set("dry-run", "true")

	if err := runDrift(driftCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "Would delete 1 document(s)") {
		t.Errorf("expected dry-run listing, got:\n%s", stdout.String())
	}
	if !fileExists(root + "/root.lmay") {
		t.Error("dry run must not delete")
	}
}

func TestDriftCmd_AutoCleanYes(t *testing.T) {
	root := setupDriftProject(t)
	stdout, _ := captureOutput(t, driftCmd)
	_ = driftCmd.Flags().Set("auto-clean", "true")
	_ = driftCmd.Flags().Set("yes", "true")

	if err := runDrift(driftCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fileExists(root + "/root.lmay") {
		t.Error("expected obsolete document deleted")
	}
	if !strings.Contains(stdout.String(), "Deleted 1 document(s)") {
		t.Errorf("expected deletion listing, got:\n%s", stdout.String())
	}

	metrics, err := MetricsCalc.Calculate(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if metrics.DriftRuns != 1 || metrics.DocumentsDeleted != 1 {
		t.Errorf("expected one drift run and one deletion event, got %+v", metrics)
	}
}

func TestDriftCmd_NoTerminal(t *testing.T) {
	root := setupDriftProject(t)
	_, stderr := captureOutput(t, driftCmd)
	_ = driftCmd.Flags().Set("auto-clean", "true")

	if err := runDrift(driftCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fileExists(root + "/root.lmay") {
		t.Error("expected nothing deleted without a terminal")
	}
	if !strings.Contains(stderr.String(), "Not deleting") {
		t.Errorf("expected notice on stderr, got %q", stderr.String())
	}
}

func TestDriftCmd_Confirmation(t *testing.T) {
	tests := []struct {
		name    string
		accept  bool
		deleted bool
	}{
		{"declined", false, false},
		{"accepted", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setupDriftProject(t)
			captureOutput(t, driftCmd)
			_ = driftCmd.Flags().Set("auto-clean", "true")

			stdinIsTerminal = func() bool { return true }
			var asked []string
			confirmDeletion = func(files []string) (bool, error) {
				asked = files
				return tt.accept, nil
			}

			if err := runDrift(driftCmd, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(asked) != 1 || asked[0] != "root.lmay" {
				t.Errorf("expected confirmation for [root.lmay], got %v", asked)
			}
			if got := !fileExists(root + "/root.lmay"); got != tt.deleted {
				t.Errorf("expected deleted = %v, got %v", tt.deleted, got)
			}
		})
	}
}

func TestDriftCmd_JSONFormat(t *testing.T) {
	setupDriftProject(t)
	stdout, _ := captureOutput(t, driftCmd)
	_ = driftCmd.Flags().Set("format", "json")

	if err := runDrift(driftCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Obsolete []struct {
			Path string `json:"path"`
		} `json:"obsolete"`
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded.Obsolete) != 1 || decoded.Obsolete[0].Path != "root.lmay" {
		t.Errorf("expected obsolete root.lmay, got %+v", decoded.Obsolete)
	}
	if decoded.RunID == "" {
		t.Error("expected run_id in JSON report")
	}
}

func TestDriftCmd_RejectsSARIF(t *testing.T) {
	setupDriftProject(t)
	_ = driftCmd.Flags().Set("format", "sarif")

	err := runDrift(driftCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "text and json") {
		t.Errorf("expected sarif rejection, got %v", err)
	}
}

func TestDriftCmd_NilService(t *testing.T) {
	saveServices(t)
	Drift = nil

	if err := runDrift(driftCmd, nil); err == nil {
		t.Error("expected error when drift service is nil")
	}
}
