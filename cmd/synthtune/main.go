package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/synthtune/internal/config"
	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "synthtune",
		Short: "Handbook to fine-tuning dataset toolkit",
		Long: `synthtune turns an employee handbook into a fine-tuning dataset.

It segments the handbook along its table of contents, generates
question/answer pairs for every segment with an LLM, and writes
validated train/val/test JSONL splits.

Configuration is read from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file to load")

	rootCmd.AddCommand(segmentCmd())
	rootCmd.AddCommand(tocCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(splitCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(runCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger logs text to stderr so stdout stays free for results.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openOutput returns stdout for an empty path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDiagnostics(ds []diag.Diagnostic) {
	if len(ds) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "%d diagnostic(s):\n", len(ds))
	for _, d := range ds {
		fmt.Fprintf(os.Stderr, "  - %s\n", d)
	}
}
