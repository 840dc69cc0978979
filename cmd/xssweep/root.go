package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	xlog "github.com/nao1215/xssweep/internal/log"
)

// NewRootCmd creates the root command for xssweep.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xssweep",
		Short: "Browser-driven crawler and XSS scanner",
		Long: `xssweep crawls a web application with a real browser, logs in when it
finds a login form, and checks every discovered page for cross-site scripting.

Passive checks (DOM sources and sinks, CSP and cookie headers) always run.
Live payload injection into forms runs only with --aggressive.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// boolFlag reads a local or inherited persistent flag. Missing flags read as false.
func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// setupLogger creates the secure logger selected by --verbose and --log-json.
func setupLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	if jsonFormat {
		return xlog.NewSecureJSONLogger(w, verbose)
	}
	return xlog.NewSecureLogger(w, verbose)
}
