// Package mcp provides an MCP (Model Context Protocol) server that exposes
// lmay validation and drift analysis as tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// Services holds the lmay services the server exposes. MetricsCalc and
// AlertEngine may be nil when observability is disabled.
type Services struct {
	ProjectRoot string
	Config      *models.Config
	Validator   core.ValidationService
	Drift       core.DriftService
	MetricsCalc observability.MetricsCalculator
	AlertEngine observability.AlertEngine
}

// Server wraps lmay services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	svc    Services
}

// NewServer creates a new MCP server over svc.
func NewServer(svc Services, version string) *Server {
	if version == "" {
		version = "dev"
	}
	if svc.Config == nil {
		svc.Config = core.DefaultConfig()
	}

	s := &Server{svc: svc}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "lmay", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type validateProjectInput struct {
	Project      string `json:"project,omitempty" jsonschema:"project directory, relative to the server's project root. Defaults to the project root."`
	RootDocument string `json:"root_document,omitempty" jsonschema:"root document path relative to the project (default root.lmay)"`
	StrictFields bool   `json:"strict_fields,omitempty" jsonschema:"report fields outside the schema as errors"`
}

type validateProjectOutput struct {
	Valid        bool                     `json:"valid"`
	Documents    int                      `json:"documents"`
	ErrorCount   int                      `json:"error_count"`
	WarningCount int                      `json:"warning_count"`
	PerValidator map[string]models.Counts `json:"per_validator"`
	Errors       []models.Finding         `json:"errors"`
	Warnings     []models.Finding         `json:"warnings"`
}

type analyzeDriftInput struct {
	Project              string `json:"project,omitempty" jsonschema:"project directory, relative to the server's project root. Defaults to the project root."`
	ThresholdDays        int    `json:"threshold_days,omitempty" jsonschema:"age in days after which a document is stale. Defaults to the configured value."`
	RequireAllReferences bool   `json:"require_all_references,omitempty" jsonschema:"mark a stale document obsolete as soon as one reference is missing"`
}

type analyzeDriftOutput struct {
	ValidCount    int              `json:"valid_count"`
	OutdatedCount int              `json:"outdated_count"`
	ObsoleteCount int              `json:"obsolete_count"`
	Outdated      []models.Verdict `json:"outdated"`
	Obsolete      []models.Verdict `json:"obsolete"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	ValidationRuns     int            `json:"validation_runs"`
	ValidationFailures int            `json:"validation_failures"`
	FindingsByType     map[string]int `json:"findings_by_type"`
	DriftRuns          int            `json:"drift_runs"`
	DocumentsByStatus  map[string]int `json:"documents_by_status"`
	DocumentsDeleted   int            `json:"documents_deleted"`
	EventCount         int            `json:"event_count"`
	LastValidation     string         `json:"last_validation,omitempty"`
	OldestEvent        string         `json:"oldest_event,omitempty"`
	NewestEvent        string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "validate_project",
		Description: "Validate every .lmay document of a project: schema, references, cycles, orphans and hierarchy. Returns all errors and warnings.",
	}, s.handleValidateProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "analyze_drift",
		Description: "Classify .lmay documents as valid, outdated or obsolete by age and by whether the paths they reference still exist. Read-only.",
	}, s.handleAnalyzeDrift)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated metrics from the event log: validation runs and failures, findings by type, drift classifications and deletions.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failing validation, obsolete documents, stale validation).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleValidateProject(ctx context.Context, _ *gomcp.CallToolRequest, input validateProjectInput) (*gomcp.CallToolResult, validateProjectOutput, error) {
	if s.svc.Validator == nil {
		return errorResult("validation service not available"), emptyValidateOutput(), nil
	}

	project := s.resolveProject(input.Project)
	opts := core.ValidateOptionsFromConfig(project, s.svc.Config)
	if input.RootDocument != "" {
		opts.RootDocument = input.RootDocument
	}
	if input.StrictFields {
		opts.StrictFields = true
	}

	res, err := s.svc.Validator.ValidateProject(ctx, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("validating %s: %s", project, err)), emptyValidateOutput(), nil
	}

	out := validateProjectOutput{
		Valid:        res.Valid,
		Documents:    res.Documents,
		ErrorCount:   res.Summary.Total.Errors,
		WarningCount: res.Summary.Total.Warnings,
		PerValidator: res.Summary.PerValidator,
		Errors:       res.Errors,
		Warnings:     res.Warnings,
	}
	if out.PerValidator == nil {
		out.PerValidator = make(map[string]models.Counts)
	}
	if out.Errors == nil {
		out.Errors = []models.Finding{}
	}
	if out.Warnings == nil {
		out.Warnings = []models.Finding{}
	}
	return nil, out, nil
}

func (s *Server) handleAnalyzeDrift(ctx context.Context, _ *gomcp.CallToolRequest, input analyzeDriftInput) (*gomcp.CallToolResult, analyzeDriftOutput, error) {
	if s.svc.Drift == nil {
		return errorResult("drift service not available"), emptyDriftOutput(), nil
	}
	if input.ThresholdDays < 0 {
		return errorResult("threshold_days must not be negative"), emptyDriftOutput(), nil
	}

	project := s.resolveProject(input.Project)
	opts := core.DriftProjectOptionsFromConfig(project, s.svc.Config)
	if input.ThresholdDays > 0 {
		opts.ThresholdDays = input.ThresholdDays
	}
	if input.RequireAllReferences {
		opts.Policy = models.DriftPolicyAllResolve
	}

	report, err := s.svc.Drift.AnalyzeProject(ctx, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("analyzing drift in %s: %s", project, err)), emptyDriftOutput(), nil
	}

	out := analyzeDriftOutput{
		ValidCount:    len(report.Valid),
		OutdatedCount: len(report.Outdated),
		ObsoleteCount: len(report.Obsolete),
		Outdated:      report.Outdated,
		Obsolete:      report.Obsolete,
	}
	if out.Outdated == nil {
		out.Outdated = []models.Verdict{}
	}
	if out.Obsolete == nil {
		out.Obsolete = []models.Verdict{}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.svc.MetricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceTime, err := observability.ParseSince(input.Since, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.svc.MetricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		ValidationRuns:     metrics.ValidationRuns,
		ValidationFailures: metrics.ValidationFailures,
		FindingsByType:     metrics.FindingsByType,
		DriftRuns:          metrics.DriftRuns,
		DocumentsByStatus:  metrics.DocumentsByStatus,
		DocumentsDeleted:   metrics.DocumentsDeleted,
		EventCount:         metrics.EventCount,
	}
	if out.FindingsByType == nil {
		out.FindingsByType = make(map[string]int)
	}
	if out.DocumentsByStatus == nil {
		out.DocumentsByStatus = make(map[string]int)
	}
	if metrics.LastValidation != nil {
		out.LastValidation = metrics.LastValidation.Format(time.RFC3339)
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.svc.AlertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	alerts, err := s.svc.AlertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{Alerts: []alertOutput{}}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

// resolveProject resolves a tool's project argument against the server's
// project root.
func (s *Server) resolveProject(project string) string {
	switch {
	case project == "":
		return s.svc.ProjectRoot
	case filepath.IsAbs(project):
		return project
	default:
		return filepath.Join(s.svc.ProjectRoot, project)
	}
}

func emptyValidateOutput() validateProjectOutput {
	return validateProjectOutput{
		PerValidator: make(map[string]models.Counts),
		Errors:       []models.Finding{},
		Warnings:     []models.Finding{},
	}
}

func emptyDriftOutput() analyzeDriftOutput {
	return analyzeDriftOutput{
		Outdated: []models.Verdict{},
		Obsolete: []models.Verdict{},
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		FindingsByType:    make(map[string]int),
		DocumentsByStatus: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
