package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/ionome/algorithms/baseline"
	"github.com/RyanBlaney/ionome/deconvolution"
	"github.com/RyanBlaney/ionome/deconvolution/config"
	"github.com/RyanBlaney/ionome/logging"
	parquetwriter "github.com/RyanBlaney/ionome/writer/parquet"
	"github.com/RyanBlaney/ionome/writer/sqlite"
)

var (
	// Flags for deconvolve command
	outputFormat      string
	runName           string
	baselineMethod    string
	prominence        float64
	buffer            int
	workers           int
	integrationWindow []float64
	compression       string
)

func init() {
	deconvolveCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input CSV trace (required)")
	deconvolveCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output path; stdout for json when empty, file prefix for parquet")
	deconvolveCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json, sqlite, parquet")
	deconvolveCmd.Flags().StringVar(&runName, "name", "", "Run name stored with sqlite output (defaults to the input file name)")
	deconvolveCmd.Flags().StringVar(&baselineMethod, "baseline", "", "Baseline method override: asls, snip, none")
	deconvolveCmd.Flags().Float64Var(&prominence, "prominence", 0, "Peak prominence override, relative to the normalised signal")
	deconvolveCmd.Flags().IntVar(&buffer, "buffer", 0, "Window buffer override in samples")
	deconvolveCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent window fits (0 = config value)")
	deconvolveCmd.Flags().Float64SliceVar(&integrationWindow, "integration-window", nil, "Restrict evaluation to start,stop")
	deconvolveCmd.Flags().StringVar(&compression, "compression", "snappy", "Parquet compression: snappy, gzip, zstd")

	deconvolveCmd.MarkFlagRequired("in")
}

var deconvolveCmd = &cobra.Command{
	Use:   "deconvolve",
	Short: "Fit skew-normal peaks to a chromatogram",
	Long: `Run the full pipeline on one trace: baseline correction, peak location,
windowing, per-window skew-normal fitting and aggregation.

Output formats:
  json     peak table, windows, fits and warnings (stdout or --out)
  sqlite   appends the run to the database at --out
  parquet  writes <out>_peaks.parquet, <out>_unmixed.parquet and
           <out>_reconstructed.parquet`,
	RunE: runDeconvolve,
}

func runDeconvolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)

	s, err := readSeries(inputFile)
	if err != nil {
		return err
	}

	logger := logging.WithFields(logging.Fields{"input": filepath.Base(inputFile)})
	res, err := deconvolution.NewPipeline(cfg).WithLogger(logger).Run(s)
	if err != nil {
		return err
	}

	switch strings.ToLower(outputFormat) {
	case "json":
		out, closeOut, err := openOutput(outputFile)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			closeOut()
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return closeOut()

	case "sqlite":
		if outputFile == "" {
			return fmt.Errorf("--out is required for sqlite output")
		}
		w, err := sqlite.NewWriter(outputFile)
		if err != nil {
			return err
		}
		defer w.Close()

		name := runName
		if name == "" {
			name = filepath.Base(inputFile)
		}
		runID, err := w.WriteRun(name, s, res)
		if err != nil {
			return err
		}
		logger.Info("Run stored", logging.Fields{"run_id": runID, "database": outputFile})
		return nil

	case "parquet":
		if outputFile == "" {
			return fmt.Errorf("--out is required for parquet output")
		}
		prefix := strings.TrimSuffix(outputFile, ".parquet")
		if err := parquetwriter.WriteResult(prefix, s, res, compression); err != nil {
			return err
		}
		logger.Info("Parquet tables written", logging.Fields{"prefix": prefix})
		return nil

	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}

// applyOverrides copies explicitly set flags over the loaded config
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("baseline") {
		cfg.Baseline.Method = baseline.Method(strings.ToLower(baselineMethod))
	}
	if flags.Changed("prominence") {
		cfg.Windowing.Prominence = prominence
	}
	if flags.Changed("buffer") {
		cfg.Windowing.Buffer = buffer
	}
	if flags.Changed("workers") && workers > 0 {
		cfg.Deconvolution.Workers = workers
	}
	if flags.Changed("integration-window") {
		cfg.Deconvolution.IntegrationWindow = integrationWindow
	}
}
