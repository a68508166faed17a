package deconvolution

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/RyanBlaney/ionome/algorithms/peaks"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution/config"
)

func uniformSeries(n int, dt float64) chromatogram.Series {
	times := make([]float64, n)
	values := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * dt
		values[i] = float64(i%7) + 1
	}
	return chromatogram.Series{Time: times, Intensity: values}
}

func candidate(index, left, right int) peaks.Candidate {
	return peaks.Candidate{Index: index, Polarity: 1, HalfWidth: 4, Left: left, Right: right}
}

func windowConfig(buffer int, merge bool) config.WindowConfig {
	cfg := config.DefaultWindowConfig()
	cfg.Buffer = buffer
	cfg.MergeOverlapping = merge
	return cfg
}

// checkPartition verifies windows are disjoint, contiguous and that no
// peak window's index range contains another's.
func checkPartition(t *testing.T, n int, windows []*Window) {
	t.Helper()
	owner := make([]int, n)
	for _, w := range windows {
		if w.End-w.Start+1 != w.Len() {
			t.Fatalf("window %d [%d, %d] has %d samples", w.ID, w.Start, w.End, w.Len())
		}
		for i := w.Start; i <= w.End; i++ {
			if owner[i] != 0 {
				t.Fatalf("index %d in windows %d and %d", i, owner[i], w.ID)
			}
			owner[i] = w.ID
		}
	}
	for _, a := range windows {
		for _, b := range windows {
			if a != b && a.Start <= b.Start && b.End <= a.End {
				t.Fatalf("window %d [%d, %d] contains window %d [%d, %d]", a.ID, a.Start, a.End, b.ID, b.Start, b.End)
			}
		}
	}
}

type span struct {
	id, start, end int
	kind           Kind
}

func spans(windows []*Window) []span {
	out := make([]span, len(windows))
	for i, w := range windows {
		out[i] = span{w.ID, w.Start, w.End, w.Kind}
	}
	return out
}

func TestBuildWindowsSubsetsAndDuplicates(t *testing.T) {
	s := uniformSeries(100, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{
		candidate(20, 15, 25),
		candidate(22, 17, 24), // inside the first range
		candidate(60, 55, 65),
		candidate(62, 55, 65), // same range as the previous one
	}}

	windows, err := BuildWindows(s, s.Intensity, loc, windowConfig(0, false))
	if err != nil {
		t.Fatalf("BuildWindows: %v", err)
	}
	checkPartition(t, s.Len(), windows)

	want := []span{
		{1, 15, 25, KindPeak},
		{2, 55, 65, KindPeak},
		{3, 0, 14, KindInterpeak},
		{4, 26, 54, KindInterpeak},
		{5, 66, 99, KindInterpeak},
	}
	if got := spans(windows); !reflect.DeepEqual(got, want) {
		t.Fatalf("windows = %+v, want %+v", got, want)
	}

	if !reflect.DeepEqual(windows[0].ApexIndices, []int{20, 22}) || windows[0].NumPeaks != 2 {
		t.Errorf("window 1 apexes = %v", windows[0].ApexIndices)
	}
	if !reflect.DeepEqual(windows[1].ApexIndices, []int{60, 62}) {
		t.Errorf("window 2 apexes = %v", windows[1].ApexIndices)
	}
	for _, w := range windows[2:] {
		if w.NumPeaks != 0 || len(w.ApexIndices) != 0 {
			t.Errorf("interpeak window %d has apexes %v", w.ID, w.ApexIndices)
		}
	}
}

func TestBuildWindowsDropsShortBackgroundRuns(t *testing.T) {
	s := uniformSeries(100, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{
		candidate(30, 5, 50),
		candidate(70, 53, 95),
	}}

	windows, err := BuildWindows(s, s.Intensity, loc, windowConfig(0, false))
	if err != nil {
		t.Fatalf("BuildWindows: %v", err)
	}
	checkPartition(t, s.Len(), windows)
	want := []span{
		{1, 5, 50, KindPeak},
		{2, 53, 95, KindPeak},
	}
	if got := spans(windows); !reflect.DeepEqual(got, want) {
		t.Fatalf("windows = %+v, want %+v", got, want)
	}
}

func TestBuildWindowsOverlap(t *testing.T) {
	s := uniformSeries(100, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{
		candidate(20, 15, 30),
		candidate(35, 25, 45),
	}}

	tests := []struct {
		name  string
		merge bool
		want  []span
	}{
		{"first claim wins", false, []span{
			{1, 10, 35, KindPeak},
			{2, 36, 50, KindPeak},
			{3, 0, 9, KindInterpeak},
			{4, 51, 99, KindInterpeak},
		}},
		{"merged", true, []span{
			{1, 10, 50, KindPeak},
			{2, 0, 9, KindInterpeak},
			{3, 51, 99, KindInterpeak},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := BuildWindows(s, s.Intensity, loc, windowConfig(5, tt.merge))
			if err != nil {
				t.Fatalf("BuildWindows: %v", err)
			}
			checkPartition(t, s.Len(), windows)
			if got := spans(windows); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("windows = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildWindowsMergesTouchingRanges(t *testing.T) {
	s := uniformSeries(60, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{
		candidate(15, 10, 20),
		candidate(25, 21, 30),
	}}
	windows, err := BuildWindows(s, s.Intensity, loc, windowConfig(0, true))
	if err != nil {
		t.Fatalf("BuildWindows: %v", err)
	}
	if windows[0].Start != 10 || windows[0].End != 30 || windows[0].NumPeaks != 2 {
		t.Fatalf("first window = [%d, %d] with %d peaks", windows[0].Start, windows[0].End, windows[0].NumPeaks)
	}
}

func TestBuildWindowsClipsBuffer(t *testing.T) {
	s := uniformSeries(50, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{candidate(3, 1, 6), candidate(46, 44, 48)}}
	windows, err := BuildWindows(s, s.Intensity, loc, windowConfig(5, true))
	if err != nil {
		t.Fatalf("BuildWindows: %v", err)
	}
	checkPartition(t, s.Len(), windows)
	if windows[0].Start != 0 || windows[1].End != 49 {
		t.Fatalf("windows = %+v", spans(windows))
	}
}

func TestBuildWindowsGuesses(t *testing.T) {
	s := uniformSeries(100, 0.01)
	corrected := make([]float64, 100)
	corrected[40] = 12.5
	loc := &peaks.Locations{Candidates: []peaks.Candidate{
		{Index: 40, Polarity: 1, HalfWidth: 6, Left: 35, Right: 45},
	}}

	windows, err := BuildWindows(s, corrected, loc, windowConfig(0, true))
	if err != nil {
		t.Fatalf("BuildWindows: %v", err)
	}
	w := windows[0]
	if w.Amplitude[0] != 12.5 {
		t.Errorf("amplitude = %v, want 12.5", w.Amplitude[0])
	}
	if w.Location[0] != 0.4 {
		t.Errorf("location = %v, want 0.4", w.Location[0])
	}
	if math.Abs(w.Width[0]-0.06) > 1e-12 {
		t.Errorf("width = %v, want 0.06", w.Width[0])
	}
	if w.SignalArea != 12.5 {
		t.Errorf("signal area = %v, want 12.5", w.SignalArea)
	}
	if w.Time[0] != s.Time[35] || w.Len() != 11 {
		t.Errorf("time range starts at %v with %d samples", w.Time[0], w.Len())
	}
}

func TestBuildWindowsErrors(t *testing.T) {
	s := uniformSeries(50, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{candidate(10, 5, 15)}}

	if _, err := BuildWindows(s, s.Intensity[:10], loc, windowConfig(0, true)); !errors.Is(err, chromatogram.ErrConfiguration) {
		t.Errorf("length mismatch: err = %v", err)
	}
	if _, err := BuildWindows(s, s.Intensity, &peaks.Locations{}, windowConfig(0, true)); !errors.Is(err, chromatogram.ErrNoPeaksDetected) {
		t.Errorf("no candidates: err = %v", err)
	}
	bad := windowConfig(-1, true)
	if _, err := BuildWindows(s, s.Intensity, loc, bad); !errors.Is(err, chromatogram.ErrConfiguration) {
		t.Errorf("negative buffer: err = %v", err)
	}
}

func TestBuildWindowsIDsAfterMerge(t *testing.T) {
	s := uniformSeries(100, 0.01)
	loc := &peaks.Locations{Candidates: []peaks.Candidate{
		candidate(20, 10, 30),
		candidate(35, 25, 45),
		candidate(75, 70, 80),
	}}

	tests := []struct {
		merge     bool
		wantPeaks int
		wantID    int
	}{
		{false, 3, 3},
		{true, 2, 2},
	}
	for _, tt := range tests {
		windows, err := BuildWindows(s, s.Intensity, loc, windowConfig(0, tt.merge))
		if err != nil {
			t.Fatalf("merge=%v: BuildWindows: %v", tt.merge, err)
		}
		checkPartition(t, s.Len(), windows)

		peakWindows, id := 0, 0
		for _, w := range windows {
			if w.Kind != KindPeak {
				continue
			}
			peakWindows++
			if w.Start <= 75 && 75 <= w.End {
				id = w.ID
			}
		}
		if peakWindows != tt.wantPeaks || id != tt.wantID {
			t.Errorf("merge=%v: %d peak windows, apex 75 in window %d; want %d and %d",
				tt.merge, peakWindows, id, tt.wantPeaks, tt.wantID)
		}
	}
}
