package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/lmay/internal/scanner"
)

// completeReportFormats completes --format for validate.
func completeReportFormats(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"text\tHuman-readable report",
		"json\tMachine-readable report",
		"sarif\tSARIF 2.1.0 for code scanning",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeDriftFormats completes --format for drift.
func completeDriftFormats(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"text\tHuman-readable report",
		"json\tMachine-readable report",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeProjectArg completes the optional project argument with
// directories.
func completeProjectArg(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveFilterDirs
}

// completeDocuments lists the .lmay documents of the --project directory,
// relative to it. Completion runs without bootstrap, so it scans with
// default options.
func completeDocuments(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	root, err := filepath.Abs(globalOpts.Project)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	s, err := scanner.New(scanner.Options{})
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	docs, err := s.Discover(root)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var out []string
	for _, doc := range docs {
		rel, err := filepath.Rel(root, doc)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, toComplete) {
			out = append(out, rel)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// registerValidateCompletions wires completion functions for validate.
func registerValidateCompletions(cmd *cobra.Command) {
	cmd.ValidArgsFunction = completeProjectArg
	_ = cmd.RegisterFlagCompletionFunc("format", completeReportFormats)
	_ = cmd.RegisterFlagCompletionFunc("root", completeDocuments)
}

// registerDriftCompletions wires completion functions for drift.
func registerDriftCompletions(cmd *cobra.Command) {
	cmd.ValidArgsFunction = completeProjectArg
	_ = cmd.RegisterFlagCompletionFunc("format", completeDriftFormats)
}
