package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/ionome/algorithms/peaks"
	"github.com/RyanBlaney/ionome/logging"
)

var (
	// Flags for xic command
	heightFactor     float64
	prominenceFactor float64
	scansFile        string
	targetPairs      []string
	targetTolerance  float64
	sampleName       string
)

func init() {
	xicCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input CSV trace")
	xicCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output JSON path (stdout when empty)")
	xicCmd.Flags().Float64Var(&heightFactor, "height-factor", 0, "Minimum apex height as a multiple of the median (0 = config value)")
	xicCmd.Flags().Float64Var(&prominenceFactor, "prominence-factor", 0, "Minimum prominence as a fraction of the maximum (0 = config value)")
	xicCmd.Flags().StringVar(&scansFile, "scans", "", "Long-form scan CSV (scan_id, retention_time, mz, intensity) for target screening")
	xicCmd.Flags().StringArrayVar(&targetPairs, "target", nil, "Target as name=mz, repeatable (replaces config targets)")
	xicCmd.Flags().Float64Var(&targetTolerance, "tol", 0, "m/z tolerance for target extraction (0 = config value)")
	xicCmd.Flags().StringVar(&sampleName, "sample", "", "Sample name in the report (defaults to the scan file name)")
}

var xicCmd = &cobra.Command{
	Use:   "xic",
	Short: "Report the main peak of an extracted-ion chromatogram",
	Long: `Quick main-peak detection without baseline correction or fitting.

With --in, prints the highest qualifying apex of one trace with its area
and width, or {"found": false} when no apex clears the height floor.

With --scans, extracts one chromatogram per target m/z from the scan data
and prints a table row per target. Targets come from --target or the
"targets" section of the config file.`,
	RunE: runXIC,
}

type xicReport struct {
	Found bool            `json:"found"`
	Peak  *peaks.MainPeak `json:"peak,omitempty"`
}

func runXIC(cmd *cobra.Command, args []string) error {
	if (inputFile == "") == (scansFile == "") {
		return fmt.Errorf("exactly one of --in or --scans is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	quick := cfg.Quick
	if heightFactor > 0 {
		quick.HeightFactor = heightFactor
	}
	if prominenceFactor > 0 {
		quick.ProminenceFactor = prominenceFactor
	}

	var result any
	if scansFile != "" {
		targetCfg := cfg.Targets
		if len(targetPairs) > 0 {
			if targetCfg.MZ, err = parseTargets(targetPairs); err != nil {
				return err
			}
		}
		if targetTolerance > 0 {
			targetCfg.Tolerance = targetTolerance
		}
		if err := targetCfg.Validate(); err != nil {
			return err
		}
		targets := targetCfg.Targets()
		if len(targets) == 0 {
			return fmt.Errorf("no targets: pass --target or set targets in the config")
		}

		points, err := readScans(scansFile)
		if err != nil {
			return err
		}
		sample := sampleName
		if sample == "" {
			sample = strings.TrimSuffix(filepath.Base(scansFile), filepath.Ext(scansFile))
		}
		reports, err := peaks.DetectTargets(sample, points, targets, targetCfg.Tolerance, quick)
		if err != nil {
			return err
		}
		logging.Debug("Targets screened", logging.Fields{"sample": sample, "targets": len(targets)})
		result = reports
	} else {
		s, err := readSeries(inputFile)
		if err != nil {
			return err
		}
		peak, found, err := peaks.DetectMain(s, quick)
		if err != nil {
			return err
		}
		report := xicReport{Found: found}
		if found {
			report.Peak = &peak
		}
		result = report
	}

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		closeOut()
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return closeOut()
}
