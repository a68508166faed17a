package cmd

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/logging"
)

var (
	// Flags for trace command
	traceKind string
	traceMZ   float64
	traceTol  float64
)

func init() {
	traceCmd.Flags().StringVar(&scansFile, "scans", "", "Long-form scan CSV: scan_id, retention_time, mz, intensity (required)")
	traceCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output CSV path (stdout when empty)")
	traceCmd.Flags().StringVar(&traceKind, "kind", "tic", "Trace to build: tic, bpc, xic")
	traceCmd.Flags().Float64Var(&traceMZ, "mz", 0, "Target m/z for --kind xic")
	traceCmd.Flags().Float64Var(&traceTol, "tol", 0.005, "m/z tolerance for --kind xic")

	traceCmd.MarkFlagRequired("scans")
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Build a chromatogram from scan data",
	Long: `Collapse long-form scan data into one trace sorted by retention time:

  tic  total ion current, the summed intensity of each scan
  bpc  base peak chromatogram, the largest intensity of each scan
  xic  extracted-ion chromatogram, intensity within --mz ± --tol,
       zero for scans with no matching centroid

The output is a time,intensity CSV that the other commands accept.`,
	RunE: runTrace,
}

func runTrace(cmd *cobra.Command, args []string) error {
	points, err := readScans(scansFile)
	if err != nil {
		return err
	}

	var s chromatogram.Series
	switch strings.ToLower(traceKind) {
	case "tic":
		s, err = chromatogram.TIC(points)
	case "bpc":
		s, err = chromatogram.BPC(points)
	case "xic":
		if !cmd.Flags().Changed("mz") {
			return fmt.Errorf("--mz is required for --kind xic")
		}
		s, err = chromatogram.ExtractXIC(points, traceMZ, traceTol)
	default:
		return fmt.Errorf("unknown trace kind %q", traceKind)
	}
	if err != nil {
		return err
	}
	logging.Debug("Trace built", logging.Fields{"kind": traceKind, "scans": s.Len()})

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	if err := writeSeriesCSV(csv.NewWriter(out), s); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
