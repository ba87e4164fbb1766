// Package internal provides the App struct that wires all components of
// lmay together and initializes the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/internal/cli"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/internal/scanner"
	"github.com/valter-silva-au/lmay/internal/storage"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// ProjectEnv names the environment variable used as the project root when
// --project is not given.
const ProjectEnv = "LMAY_PROJECT"

// App holds all service dependencies for one project.
type App struct {
	ProjectRoot string
	Logger      zerolog.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.Config

	// Core services
	Scanner   *scanner.Scanner
	Validator core.ValidationService
	Drift     core.DriftService

	// Storage layer
	Runs storage.RunStore

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components for the project named in opts.
// Configuration errors are fatal; the run store and event log are not,
// and commands that need them report that they are unavailable.
func NewApp(opts cli.GlobalOptions) (*App, error) {
	root, err := ResolveProjectRoot(opts.Project)
	if err != nil {
		return nil, err
	}

	app := &App{
		ProjectRoot: root,
		Logger: observability.NewLogger(observability.LogConfig{
			Level:  opts.LogLevel,
			Pretty: opts.LogPretty,
		}),
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(opts.ConfigFile)
	app.Config, err = app.ConfigMgr.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(app.Config); err != nil {
		return nil, err
	}

	// --- Core services ---
	app.Scanner, err = scanner.New(scanner.Options{Ignore: app.Config.Scan.Ignore})
	if err != nil {
		return nil, fmt.Errorf("configuring scanner: %w", err)
	}
	app.Validator = core.NewValidationService(app.Scanner, app.Logger)
	app.Drift = core.NewDriftService(app.Scanner, app.Logger)

	// --- Storage layer ---
	app.Runs, err = storage.OpenRunStore(storage.RunStorePath(root))
	if err != nil {
		app.Logger.Warn().Err(err).Msg("run history disabled")
		app.Runs = nil
	}

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(storage.EventLogPath(root))
	if err != nil {
		app.Logger.Warn().Err(err).Msg("event log disabled")
		app.EventLog = nil
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		thresholds.MaxObsolete = app.Config.Alerts.MaxObsolete
		if app.Config.Alerts.StaleValidationDays > 0 {
			thresholds.StaleValidationDays = app.Config.Alerts.StaleValidationDays
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}

	app.Logger.Debug().
		Str("project", root).
		Str("root_document", app.Config.RootDocument).
		Bool("run_history", app.Runs != nil).
		Bool("event_log", app.EventLog != nil).
		Msg("app initialized")

	app.wireCLI()
	return app, nil
}

// wireCLI sets the CLI package-level service variables.
func (a *App) wireCLI() {
	cli.Logger = a.Logger
	cli.ProjectRoot = a.ProjectRoot
	cli.Config = a.Config
	cli.Scanner = a.Scanner
	cli.Validator = a.Validator
	cli.Drift = a.Drift
	cli.Runs = a.Runs

	cli.EventLog = a.EventLog
	cli.AlertEngine = a.AlertEngine
	cli.MetricsCalc = a.MetricsCalc
}

// Close releases the run store and event log. It is safe to call Close on
// an App whose stores are nil.
func (a *App) Close() error {
	var errs []error
	if a.Runs != nil {
		errs = append(errs, a.Runs.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	return errors.Join(errs...)
}

// ResolveProjectRoot returns the canonical project directory. An empty
// project falls back to LMAY_PROJECT, then to the current directory.
func ResolveProjectRoot(project string) (string, error) {
	if project == "" {
		project = os.Getenv(ProjectEnv)
	}
	if project == "" {
		project = "."
	}
	root, err := core.Canonicalize(project)
	if err != nil {
		return "", fmt.Errorf("resolving project %s: %w", project, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("project root %s: %w", project, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", project)
	}
	return root, nil
}

// current is the App built by Bootstrap.
var current *App

// Bootstrap builds the App for opts and wires it into the CLI. main
// installs it as cli.Bootstrap so it runs after flag parsing.
func Bootstrap(opts cli.GlobalOptions) error {
	a, err := NewApp(opts)
	if err != nil {
		return err
	}
	current = a
	return nil
}

// Shutdown closes the App created by Bootstrap, if any.
func Shutdown() error {
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	return err
}
