package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/RyanBlaney/ionome/chromatogram"
)

// readSeries loads a two-column CSV trace. Extra columns are ignored.
func readSeries(path string) (chromatogram.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return chromatogram.Series{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return parseSeries(f)
}

func parseSeries(r io.Reader) (chromatogram.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var times, values []float64
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return chromatogram.Series{}, fmt.Errorf("failed to read csv: %w", err)
		}
		line++
		if len(record) < 2 {
			return chromatogram.Series{}, fmt.Errorf("line %d: want at least 2 columns, got %d", line, len(record))
		}

		t, errT := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		v, errV := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if errT != nil || errV != nil {
			if line == 1 {
				continue // header
			}
			return chromatogram.Series{}, fmt.Errorf("line %d: invalid number in %q", line, strings.Join(record, ","))
		}
		times = append(times, t)
		values = append(values, v)
	}

	s := chromatogram.NewSeries(times, values)
	if err := s.Validate(); err != nil {
		return chromatogram.Series{}, err
	}
	return s, nil
}

// readScans loads long-form scan data: scan_id, retention_time, mz,
// intensity. A non-numeric header row is skipped.
func readScans(path string) ([]chromatogram.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scans: %w", err)
	}
	defer f.Close()
	return parseScans(f)
}

func parseScans(r io.Reader) ([]chromatogram.Point, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var points []chromatogram.Point
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line++
		if len(record) < 4 {
			return nil, fmt.Errorf("line %d: want 4 columns (scan_id, retention_time, mz, intensity), got %d", line, len(record))
		}

		id, errID := strconv.Atoi(strings.TrimSpace(record[0]))
		var values [3]float64
		var errV error
		for k := range values {
			if values[k], errV = strconv.ParseFloat(strings.TrimSpace(record[k+1]), 64); errV != nil {
				break
			}
		}
		if errID != nil || errV != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid value in %q", line, strings.Join(record, ","))
		}
		points = append(points, chromatogram.Point{
			ScanID:        id,
			RetentionTime: values[0],
			MZ:            values[1],
			Intensity:     values[2],
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no scan data", chromatogram.ErrConfiguration)
	}
	return points, nil
}

// parseTargets turns name=mz pairs into targets
func parseTargets(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("target %q: want name=mz", pair)
		}
		mz, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("target %q: invalid mz: %w", pair, err)
		}
		out[name] = mz
	}
	return out, nil
}

// writeSeriesCSV writes a two-column time,intensity trace
func writeSeriesCSV(w *csv.Writer, s chromatogram.Series) error {
	if err := w.Write([]string{"time", "intensity"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range s.Time {
		if err := w.Write([]string{formatFloat(s.Time[i]), formatFloat(s.Intensity[i])}); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
