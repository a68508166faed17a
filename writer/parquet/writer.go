// Package parquet exports deconvolution results as Parquet tables: one row
// per fitted peak, the unmixed traces and the per-window reconstructions
// in long format.
package parquet

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	parquet "github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution"
)

// PeakRow is one fitted peak
type PeakRow struct {
	PeakID        int64   `parquet:"peak_id"`
	WindowID      int64   `parquet:"window_id"`
	Label         string  `parquet:"label"`
	RetentionTime float64 `parquet:"retention_time"`
	Location      float64 `parquet:"location"`
	Scale         float64 `parquet:"scale"`
	Skew          float64 `parquet:"skew"`
	Amplitude     float64 `parquet:"amplitude"`
	Area          float64 `parquet:"area"`
	SignalMaximum float64 `parquet:"signal_maximum"`
}

// TraceRow is one sample of one unmixed peak
type TraceRow struct {
	Time      float64 `parquet:"time"`
	PeakID    int64   `parquet:"peak_id"`
	Intensity float64 `parquet:"intensity"`
}

// ReconstructedRow is one sample of a per-window fitted peak, on the
// evaluation axis the fit was reconstructed over
type ReconstructedRow struct {
	Time      float64 `parquet:"time"`
	WindowID  int64   `parquet:"window_id"`
	Label     string  `parquet:"label"`
	Intensity float64 `parquet:"intensity"`
}

// Compression maps a codec name to a writer option. Unknown names fall
// back to snappy.
func Compression(name string) parquet.WriterOption {
	switch strings.ToLower(name) {
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	case "gzip", "gz":
		return parquet.Compression(&parquet.Gzip)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// PeakRows converts aggregated peaks to rows
func PeakRows(peaks []deconvolution.Peak) []PeakRow {
	rows := make([]PeakRow, len(peaks))
	for i, p := range peaks {
		rows[i] = PeakRow{
			PeakID:        int64(p.PeakID),
			WindowID:      int64(p.WindowID),
			Label:         p.Label,
			RetentionTime: p.RetentionTime,
			Location:      p.Location,
			Scale:         p.Scale,
			Skew:          p.Skew,
			Amplitude:     p.Amplitude,
			Area:          p.Area,
			SignalMaximum: p.SignalMaximum,
		}
	}
	return rows
}

// TraceRows flattens the unmixed matrix, time-major. times is the series
// time axis (one entry per matrix row) and column j belongs to peaks[j].
func TraceRows(times []float64, peaks []deconvolution.Peak, unmixed *mat.Dense) ([]TraceRow, error) {
	if unmixed == nil {
		return nil, nil
	}
	r, c := unmixed.Dims()
	if r != len(times) || c != len(peaks) {
		return nil, fmt.Errorf("unmixed matrix is %dx%d, want %dx%d", r, c, len(times), len(peaks))
	}
	rows := make([]TraceRow, 0, r*c)
	for i, t := range times {
		for j, p := range peaks {
			rows = append(rows, TraceRow{Time: t, PeakID: int64(p.PeakID), Intensity: unmixed.At(i, j)})
		}
	}
	return rows, nil
}

// ReconstructedRows flattens every fitted peak's reconstruction against
// evalTimes, in window id order.
func ReconstructedRows(evalTimes []float64, fits map[int]*deconvolution.WindowFit) ([]ReconstructedRow, error) {
	ids := make([]int, 0, len(fits))
	for id := range fits {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var rows []ReconstructedRow
	for _, id := range ids {
		fit := fits[id]
		if fit == nil {
			continue
		}
		for _, fp := range fit.Peaks {
			if len(fp.Reconstructed) != len(evalTimes) {
				return nil, fmt.Errorf("window %d %s has %d reconstructed samples, want %d",
					id, fp.Label, len(fp.Reconstructed), len(evalTimes))
			}
			for i, t := range evalTimes {
				rows = append(rows, ReconstructedRow{
					Time:      t,
					WindowID:  int64(fit.WindowID),
					Label:     fp.Label,
					Intensity: fp.Reconstructed[i],
				})
			}
		}
	}
	return rows, nil
}

// Write encodes rows to w and closes the parquet writer (not w)
func Write[T any](w io.Writer, rows []T, opts ...parquet.WriterOption) error {
	pw := parquet.NewGenericWriter[T](w, opts...)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// Read decodes every row of a parquet file
func Read[T any](r io.ReaderAt) ([]T, error) {
	gr := parquet.NewGenericReader[T](r)
	defer gr.Close()

	out := make([]T, 0, 1024)
	batch := make([]T, 1024)
	for {
		n, err := gr.Read(batch)
		if n > 0 {
			out = append(out, batch[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return out, nil
}

// WriteResult writes <prefix>_peaks.parquet, <prefix>_unmixed.parquet (over
// the time axis of s) and <prefix>_reconstructed.parquet (over the
// evaluation axis of the run).
func WriteResult(prefix string, s chromatogram.Series, res *deconvolution.Result, compression string) error {
	if res == nil {
		return fmt.Errorf("no result to write")
	}
	opt := Compression(compression)

	if err := writeFile(prefix+"_peaks.parquet", func(w io.Writer) error {
		return Write(w, PeakRows(res.Peaks), opt)
	}); err != nil {
		return err
	}

	traces, err := TraceRows(s.Time, res.Peaks, res.Unmixed)
	if err != nil {
		return err
	}
	if err := writeFile(prefix+"_unmixed.parquet", func(w io.Writer) error {
		return Write(w, traces, opt)
	}); err != nil {
		return err
	}

	recon, err := ReconstructedRows(res.EvalTimes, res.Fits)
	if err != nil {
		return err
	}
	return writeFile(prefix+"_reconstructed.parquet", func(w io.Writer) error {
		return Write(w, recon, opt)
	})
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
