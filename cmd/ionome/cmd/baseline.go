package cmd

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/ionome/algorithms/baseline"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/logging"
)

var (
	// Flags for baseline command
	baselineOnlyMethod string
)

func init() {
	baselineCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input CSV trace (required)")
	baselineCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output CSV path (stdout when empty)")
	baselineCmd.Flags().StringVar(&baselineOnlyMethod, "method", "", "Baseline method override: asls, snip, none")

	baselineCmd.MarkFlagRequired("in")
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Estimate and subtract the baseline of a chromatogram",
	Long: `Write time, raw, baseline and corrected columns as CSV. The method and
its parameters come from the "baseline" section of --config.`,
	RunE: runBaseline,
}

func runBaseline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if baselineOnlyMethod != "" {
		cfg.Baseline.Method = baseline.Method(strings.ToLower(baselineOnlyMethod))
	}

	s, err := readSeries(inputFile)
	if err != nil {
		return err
	}

	res, err := baseline.Correct(s, cfg.Baseline, logging.WithFields(logging.Fields{"component": "baseline"}))
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	if err := writeBaselineCSV(csv.NewWriter(out), s, res); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func writeBaselineCSV(w *csv.Writer, s chromatogram.Series, res *baseline.Result) error {
	if err := w.Write([]string{"time", "raw", "baseline", "corrected"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range s.Time {
		row := []string{formatFloat(s.Time[i]), formatFloat(s.Intensity[i]), formatFloat(res.Baseline[i]), formatFloat(res.Corrected[i])}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}
