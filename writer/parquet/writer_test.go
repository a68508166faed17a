package parquet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/algorithms/baseline"
	"github.com/RyanBlaney/ionome/algorithms/models"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution"
	"github.com/RyanBlaney/ionome/deconvolution/config"
	"github.com/RyanBlaney/ionome/logging"
)

func sampleResult() (chromatogram.Series, *deconvolution.Result) {
	s := chromatogram.NewSeries([]float64{3.9, 4, 4.1}, []float64{2.4, 4, 2.4})
	peaks := []deconvolution.Peak{
		{PeakID: 1, WindowID: 1, Label: "peak_1", RetentionTime: 4, Location: 4.0001, Scale: 0.1, Amplitude: 1, Area: 1, SignalMaximum: 3.98},
		{PeakID: 2, WindowID: 1, Label: "peak_2", RetentionTime: 5, Location: 4.9998, Scale: 0.1, Skew: 0.5, Amplitude: 0.5, Area: 0.5, SignalMaximum: 1.99},
	}
	unmixed := mat.NewDense(3, 2, []float64{
		2.4, 0,
		3.98, 0.01,
		2.4, 0.02,
	})
	fits := map[int]*deconvolution.WindowFit{
		1: {WindowID: 1, Peaks: []deconvolution.FittedPeak{
			{Label: "peak_1", Reconstructed: []float64{3.98}},
			{Label: "peak_2", Reconstructed: []float64{0.01}},
		}},
	}
	res := &deconvolution.Result{Peaks: peaks, Unmixed: unmixed, Fits: fits, EvalTimes: []float64{4}}
	return s, res
}

func TestPeakRowsRoundTrip(t *testing.T) {
	_, res := sampleResult()

	var buf bytes.Buffer
	if err := Write(&buf, PeakRows(res.Peaks), Compression("zstd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read[PeakRow](bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[1].Label != "peak_2" || got[1].Skew != 0.5 || got[1].PeakID != 2 {
		t.Fatalf("row 1 = %+v", got[1])
	}
}

func TestTraceRowsLayout(t *testing.T) {
	s, res := sampleResult()

	rows, err := TraceRows(s.Time, res.Peaks, res.Unmixed)
	if err != nil {
		t.Fatalf("TraceRows: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(rows))
	}
	want := TraceRow{Time: 4, PeakID: 2, Intensity: 0.01}
	if rows[3] != want {
		t.Fatalf("rows[3] = %+v, want %+v", rows[3], want)
	}

	if _, err := TraceRows(s.Time[:2], res.Peaks, res.Unmixed); err == nil {
		t.Fatal("expected error for mismatched time axis")
	}
}

func TestReconstructedRows(t *testing.T) {
	_, res := sampleResult()

	rows, err := ReconstructedRows(res.EvalTimes, res.Fits)
	if err != nil {
		t.Fatalf("ReconstructedRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	want := ReconstructedRow{Time: 4, WindowID: 1, Label: "peak_2", Intensity: 0.01}
	if rows[1] != want {
		t.Fatalf("rows[1] = %+v, want %+v", rows[1], want)
	}

	if _, err := ReconstructedRows([]float64{4, 4.1}, res.Fits); err == nil {
		t.Fatal("expected error for mismatched evaluation axis")
	}
}

func TestWriteResultFiles(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	s, res := sampleResult()
	if err := WriteResult(prefix, s, res, "snappy"); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}

	rows := readFile[TraceRow](t, prefix+"_unmixed.parquet")
	if len(rows) != 6 {
		t.Fatalf("trace rows = %d, want 6", len(rows))
	}
	if _, err := os.Stat(prefix + "_peaks.parquet"); err != nil {
		t.Fatalf("peaks file: %v", err)
	}
	if recon := readFile[ReconstructedRow](t, prefix+"_reconstructed.parquet"); len(recon) != 2 {
		t.Fatalf("reconstructed rows = %d, want 2", len(recon))
	}
}

func TestWriteResultWithIntegrationWindow(t *testing.T) {
	times := make([]float64, 1000)
	values := make([]float64, 1000)
	for i := range times {
		times[i] = float64(i) * 0.01
	}
	models.Sum(values, times, models.Pack([]models.SkewNormal{{Amplitude: 1, Location: 4, Scale: 0.1}}))
	s := chromatogram.NewSeries(times, values)

	cfg := config.Default()
	cfg.Baseline.Method = baseline.MethodNone
	cfg.Windowing.Prominence = 0.1
	cfg.Deconvolution.IntegrationWindow = []float64{3, 5}
	res, err := deconvolution.NewPipeline(cfg).WithLogger(&logging.NoOpLogger{}).Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.EvalTimes) == s.Len() {
		t.Fatalf("evaluation axis should be narrower than the series")
	}

	prefix := filepath.Join(t.TempDir(), "iw")
	if err := WriteResult(prefix, s, res, "gzip"); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}

	traces := readFile[TraceRow](t, prefix+"_unmixed.parquet")
	if len(traces) != s.Len()*len(res.Peaks) {
		t.Fatalf("trace rows = %d, want %d", len(traces), s.Len()*len(res.Peaks))
	}
	if traces[len(traces)-1].Time != s.Time[s.Len()-1] {
		t.Fatalf("last trace time = %v, want %v", traces[len(traces)-1].Time, s.Time[s.Len()-1])
	}
	recon := readFile[ReconstructedRow](t, prefix+"_reconstructed.parquet")
	if len(recon) != len(res.EvalTimes)*len(res.Peaks) {
		t.Fatalf("reconstructed rows = %d, want %d", len(recon), len(res.EvalTimes)*len(res.Peaks))
	}
	if recon[0].Time != res.EvalTimes[0] {
		t.Fatalf("first reconstructed time = %v, want %v", recon[0].Time, res.EvalTimes[0])
	}
}

func readFile[T any](t *testing.T, path string) []T {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rows, err := Read[T](bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read %s: %v", path, err)
	}
	return rows
}
