package cli

import (
	"github.com/rs/zerolog"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/observability"
	"github.com/valter-silva-au/lmay/internal/scanner"
	"github.com/valter-silva-au/lmay/internal/storage"
	"github.com/valter-silva-au/lmay/pkg/models"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	Project    string
	ConfigFile string
	LogLevel   string
	LogPretty  bool
}

// Bootstrap wires the service instances below from the global options. It
// is set in app.go and runs before any command that needs a project.
var Bootstrap func(opts GlobalOptions) error

// Service instances, set during app initialization in app.go.
var (
	Logger      = zerolog.Nop()
	ProjectRoot string
	Config      *models.Config
	Scanner     *scanner.Scanner
	Validator   core.ValidationService
	Drift       core.DriftService
	Runs        storage.RunStore
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
)

// projectConfig returns the loaded configuration, or the defaults when
// none was loaded.
func projectConfig() *models.Config {
	if Config == nil {
		return core.DefaultConfig()
	}
	return Config
}
