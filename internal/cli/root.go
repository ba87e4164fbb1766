package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// ErrValidationFailed is returned by validate when the project has errors.
// It maps to exit code 1 without an error message.
var ErrValidationFailed = errors.New("validation failed")

// Command annotations read by the root pre-run hook.
const (
	annotationProjectArg    = "lmay/project-arg"
	annotationSkipBootstrap = "lmay/skip-bootstrap"
)

var globalOpts GlobalOptions

var rootCmd = &cobra.Command{
	Use:   "lmay",
	Short: "Validate .lmay documentation graphs and detect documentation drift",
	Long: `lmay checks the .lmay documentation files of a project: schema,
referenced paths, nested-document cycles and orphans, and hierarchy
consistency. It also detects documents that have drifted from the code
they describe and can clean up obsolete ones.

Project settings are read from .lmayrc in the project root and can be
overridden with LMAY_* environment variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: bootstrapCommand,
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotationSkipBootstrap: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lmay %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&globalOpts.Project, "project", "p", "", "Project root directory (default $LMAY_PROJECT or the current directory)")
	pf.StringVar(&globalOpts.ConfigFile, "config", "", "Config file (default <project>/.lmayrc)")
	pf.StringVar(&globalOpts.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error, off)")
	pf.BoolVar(&globalOpts.LogPretty, "log-pretty", false, "Human-readable log output")

	rootCmd.AddCommand(versionCmd)
}

// bootstrapCommand wires services before a command runs. Commands
// annotated with annotationProjectArg take the project from their first
// positional argument.
func bootstrapCommand(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[annotationSkipBootstrap] == "true" || cmd.Name() == "help" || Bootstrap == nil {
		return nil
	}
	opts := globalOpts
	if cmd.Annotations[annotationProjectArg] == "true" && len(args) > 0 {
		opts.Project = args[0]
	}
	return Bootstrap(opts)
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
