// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/ionome/deconvolution/config"
	"github.com/RyanBlaney/ionome/logging"
)

var (
	// Global flags
	configFile string
	logLevel   string
	logFormat  string

	// Shared by every command that reads a trace
	inputFile  string
	outputFile string
)

var rootCmd = &cobra.Command{
	Use:   "ionome",
	Short: "ionome - chromatogram deconvolution tool",
	Long: `ionome removes the baseline from a single chromatographic trace, locates
peaks of either polarity, and unmixes overlapping peaks into skew-normal
components.

Input is a CSV file with retention time in the first column and intensity
in the second; a non-numeric header row is skipped.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(logFormat, logging.ParseLevel(logLevel))
		if err != nil {
			return err
		}
		logging.SetGlobalLogger(logger)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(deconvolveCmd)
	rootCmd.AddCommand(xicCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(traceCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "JSON configuration file (defaults apply to omitted fields)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

func newLogger(format string, level logging.Level) (logging.Logger, error) {
	switch format {
	case "json":
		z, err := logging.NewZapLogger(level)
		if err != nil {
			return nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
		return z, nil
	case "text", "":
		return logging.NewWriterLogger(os.Stderr, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// loadConfig reads --config when given, otherwise returns the defaults
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	f, err := os.Open(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return config.Load(f)
}

// openOutput returns stdout for an empty path or "-"
func openOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, f.Close, nil
}
