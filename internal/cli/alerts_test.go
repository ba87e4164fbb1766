package cli

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/lmay/internal/observability"
)

func TestAlertsCmd_NilEngine(t *testing.T) {
	saveServices(t)
	AlertEngine = nil

	err := alertsCmd.RunE(alertsCmd, []string{})
	if err == nil {
		t.Fatal("expected error when AlertEngine is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAlertsCmd_NoAlerts(t *testing.T) {
	saveServices(t)
	stdout, _ := captureOutput(t, alertsCmd)
	AlertEngine = &alertsMock{}

	if err := alertsCmd.RunE(alertsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "No active alerts.") {
		t.Errorf("expected no alerts message, got %q", stdout.String())
	}
}

func TestAlertsCmd_WithAlerts(t *testing.T) {
	saveServices(t)
	stdout, _ := captureOutput(t, alertsCmd)

	AlertEngine = &alertsMock{alerts: []observability.Alert{
		{Severity: observability.SeverityLow, Message: "no validation in 9 days", TriggeredAt: time.Now().UTC()},
		{Severity: observability.SeverityHigh, Message: "latest validation failed with 2 error(s)", TriggeredAt: time.Now().UTC()},
	}}

	if err := alertsCmd.RunE(alertsCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "2 active alert(s)") {
		t.Errorf("expected alert count, got %q", out)
	}
	high := strings.Index(out, "[HIGH]")
	low := strings.Index(out, "[LOW]")
	if high < 0 || low < 0 {
		t.Fatalf("expected both severities in output, got %q", out)
	}
	if high > low {
		t.Error("expected high severity alerts before low severity alerts")
	}
}

func TestAlertsCmd_EvaluateError(t *testing.T) {
	saveServices(t)
	AlertEngine = &alertsMock{err: fmt.Errorf("event log read error")}

	err := alertsCmd.RunE(alertsCmd, []string{})
	if err == nil {
		t.Fatal("expected error from Evaluate")
	}
	if !strings.Contains(err.Error(), "evaluating alerts") {
		t.Errorf("unexpected error: %v", err)
	}
}
