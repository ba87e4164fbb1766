package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/internal/core"
	"github.com/valter-silva-au/lmay/internal/report"
	"github.com/valter-silva-au/lmay/internal/watch"
	"github.com/valter-silva-au/lmay/pkg/models"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [project]",
	Short: "Re-validate the project whenever a .lmay document changes",
	Long: `Validate the project once, then watch it and validate again each time
.lmay documents are created, modified or removed. Bursts of changes are
batched. Stop with Ctrl+C.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationProjectArg: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if Validator == nil {
			return fmt.Errorf("validation service not initialized")
		}

		opts := watch.Options{Debounce: watchDebounce}
		if Scanner != nil {
			opts.Skip = Scanner.Skipped
		}
		w, err := watch.New(ProjectRoot, opts, Logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		validateOnce(ctx, cmd, nil)
		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl+C to stop)...\n", ProjectRoot)
		return w.Run(ctx, func(ctx context.Context, changes []watch.Change) {
			validateOnce(ctx, cmd, changes)
		})
	},
}

// validateOnce runs one validation and prints its text report. Errors are
// printed rather than returned so watching continues.
func validateOnce(ctx context.Context, cmd *cobra.Command, changes []watch.Change) {
	out := cmd.OutOrStdout()
	if len(changes) > 0 {
		names := make([]string, 0, len(changes))
		for _, c := range changes {
			names = append(names, fmt.Sprintf("%s (%s)", c.Path, c.Op))
		}
		fmt.Fprintf(out, "\nChanged: %s\n", strings.Join(names, ", "))
	}

	opts := core.ValidateOptionsFromConfig(ProjectRoot, projectConfig())
	opts.RunID = uuid.NewString()
	started := time.Now()
	res, err := Validator.ValidateProject(ctx, opts)
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return
	}
	recordValidation(ctx, opts.RunID, started, time.Since(started), res)

	meta := report.Meta{Timestamp: started, Version: appVersion, RunID: opts.RunID, Color: isTerminal(out)}
	if err := report.Render(out, models.FormatText, res, meta); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: rendering report: %v\n", err)
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Wait this long for further changes before validating")
	watchCmd.ValidArgsFunction = completeProjectArg
	rootCmd.AddCommand(watchCmd)
}
