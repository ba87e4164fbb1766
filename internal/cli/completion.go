package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var completionInstall bool

// completionShell describes how to generate and install the script for
// one shell. An empty installDir means automatic install is unsupported.
type completionShell struct {
	generate   func(w io.Writer) error
	installDir func(home string) string
	fileName   string
	loadHint   string
	afterHint  string
}

var completionShells = map[string]completionShell{
	"bash": {
		generate: func(w io.Writer) error { return rootCmd.GenBashCompletionV2(w, true) },
		installDir: func(home string) string {
			return filepath.Join(home, ".local", "share", "bash-completion", "completions")
		},
		fileName:  "lmay",
		loadHint:  `eval "$(lmay completion bash)"`,
		afterHint: "Restart your shell to load them.",
	},
	"zsh": {
		generate: func(w io.Writer) error { return rootCmd.GenZshCompletion(w) },
		installDir: func(home string) string {
			return filepath.Join(home, ".local", "share", "zsh", "site-functions")
		},
		fileName:  "_lmay",
		loadHint:  `eval "$(lmay completion zsh)"`,
		afterHint: "Ensure the directory is in your fpath, then run: autoload -Uz compinit && compinit",
	},
	"fish": {
		generate: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		installDir: func(home string) string {
			return filepath.Join(home, ".config", "fish", "completions")
		},
		fileName:  "lmay.fish",
		loadHint:  "lmay completion fish | source",
		afterHint: "Completions are available in new fish sessions.",
	},
	"powershell": {
		generate: func(w io.Writer) error { return rootCmd.GenPowerShellCompletionWithDesc(w) },
		loadHint: "lmay completion powershell | Out-String | Invoke-Expression",
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Generate shell completions for lmay",
	Long: `Generate tab-completion scripts for lmay commands and flags.

Supported shells: bash, zsh, fish, powershell

  lmay completion bash            print the script to stdout
  lmay completion zsh --install   install it into your user profile`,
	ValidArgs:   []string{"bash", "zsh", "fish", "powershell"},
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationSkipBootstrap: "true"},
	RunE:        runCompletion,
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into your shell profile")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	shell, ok := completionShells[args[0]]
	if !ok {
		return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", args[0])
	}

	if completionInstall {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("detecting home directory: %w", err)
		}
		target, err := installCompletion(shell, home)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Completions installed to %s\n%s\n", target, shell.afterHint)
		return nil
	}

	// Hints go to stderr so the script can be piped.
	fmt.Fprintf(cmd.ErrOrStderr(), "# To load completions in your current session:\n#   %s\n", shell.loadHint)
	return shell.generate(cmd.OutOrStdout())
}

// installCompletion writes the completion script under home and returns
// its path.
func installCompletion(shell completionShell, home string) (string, error) {
	if shell.installDir == nil {
		return "", fmt.Errorf("automatic install is not supported for this shell; add the output of 'lmay completion' to your profile")
	}

	dir := shell.installDir(home)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating completion directory: %w", err)
	}
	target := filepath.Join(dir, shell.fileName)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating completion file %s: %w", target, err)
	}
	writeErr := shell.generate(f)
	closeErr := f.Close()
	if writeErr != nil {
		return "", writeErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}
	return target, nil
}
