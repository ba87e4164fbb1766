package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	lmaymcp "github.com/valter-silva-au/lmay/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the lmay MCP server on stdio",
	Long: `Start the lmay MCP (Model Context Protocol) server on stdio transport.

The server exposes lmay functionality as MCP tools that AI coding assistants
can call: validate_project, analyze_drift, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Validator == nil || Drift == nil {
			return fmt.Errorf("validation services not initialized")
		}

		srv := lmaymcp.NewServer(lmaymcp.Services{
			ProjectRoot: ProjectRoot,
			Config:      projectConfig(),
			Validator:   Validator,
			Drift:       Drift,
			MetricsCalc: MetricsCalc,
			AlertEngine: AlertEngine,
		}, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
