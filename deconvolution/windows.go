package deconvolution

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/ionome/algorithms/common"
	"github.com/RyanBlaney/ionome/algorithms/peaks"
	"github.com/RyanBlaney/ionome/chromatogram"
	"github.com/RyanBlaney/ionome/deconvolution/config"
)

// Kind tells analysed peak regions from background stretches
type Kind string

const (
	KindPeak      Kind = "peak"
	KindInterpeak Kind = "interpeak"
)

// Window is a contiguous stretch of the series assigned to one id.
// Start and End are inclusive sample indices.
type Window struct {
	ID         int       `json:"window_id"`
	Kind       Kind      `json:"window_type"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Time       []float64 `json:"time_range"`
	Signal     []float64 `json:"signal"`
	SignalArea float64   `json:"signal_area"`

	// Per contained apex, in index order. Empty for interpeak windows.
	NumPeaks    int       `json:"num_peaks"`
	ApexIndices []int     `json:"apex_indices,omitempty"`
	Amplitude   []float64 `json:"amplitude,omitempty"`
	Location    []float64 `json:"location,omitempty"`
	Width       []float64 `json:"width,omitempty"`
}

// Len returns the number of samples in the window
func (w *Window) Len() int {
	return len(w.Time)
}

type indexRange struct {
	lo, hi int
}

func (r indexRange) contains(o indexRange) bool {
	return r.lo <= o.lo && o.hi <= r.hi
}

func (r indexRange) has(i int) bool {
	return r.lo <= i && i <= r.hi
}

// BuildWindows partitions the series into peak and interpeak windows.
//
// Every candidate's boundary pair is widened by Buffer samples and clipped
// to the series. Duplicate ranges collapse to one and ranges contained in
// another are dropped. With MergeOverlapping the survivors are also united
// whenever they overlap or touch. A sample belongs to the first surviving
// range that contains it, whose 1-based position is the window id. The
// unclaimed samples form interpeak windows when a contiguous run has at
// least MinBackgroundRun samples; shorter runs belong to no window.
//
// Ids count positions after merging, so with MergeOverlapping (the
// default) they no longer match candidate positions. Callers that key
// windows by candidate position must turn merging off.
func BuildWindows(s chromatogram.Series, corrected []float64, loc *peaks.Locations, cfg config.WindowConfig) ([]*Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	if len(corrected) != n {
		return nil, fmt.Errorf("%w: corrected signal has %d samples, series has %d",
			chromatogram.ErrConfiguration, len(corrected), n)
	}
	if loc == nil || loc.Len() == 0 {
		return nil, fmt.Errorf("%w: no candidates to build windows from", chromatogram.ErrNoPeaksDetected)
	}

	ranges := candidateRanges(loc, n, cfg.Buffer)
	ranges = removeSubsets(dedupe(ranges))
	if cfg.MergeOverlapping {
		ranges = mergeOverlapping(ranges)
	}

	ids := make([]int, n)
	for i := range ids {
		for k, r := range ranges {
			if r.has(i) {
				ids[i] = k + 1
				break
			}
		}
	}

	windows := make([]*Window, 0, len(ranges))
	timestep := s.Timestep()
	precision := s.TimePrecision()
	for k := range ranges {
		w := collect(s, corrected, ids, k+1, KindPeak)
		if w == nil {
			continue
		}
		for _, c := range loc.Candidates {
			if ids[c.Index] != w.ID {
				continue
			}
			w.ApexIndices = append(w.ApexIndices, c.Index)
			w.Amplitude = append(w.Amplitude, corrected[c.Index])
			w.Location = append(w.Location, common.Round(s.Time[c.Index], precision))
			w.Width = append(w.Width, c.HalfWidth*timestep)
		}
		w.NumPeaks = len(w.ApexIndices)
		windows = append(windows, w)
	}

	next := len(ranges) + 1
	for _, run := range backgroundRuns(ids) {
		if run.hi-run.lo+1 < cfg.MinBackgroundRun {
			continue
		}
		for i := run.lo; i <= run.hi; i++ {
			ids[i] = next
		}
		windows = append(windows, collect(s, corrected, ids, next, KindInterpeak))
		next++
	}

	return windows, nil
}

func candidateRanges(loc *peaks.Locations, n, buffer int) []indexRange {
	out := make([]indexRange, 0, loc.Len())
	for _, c := range loc.Candidates {
		r := indexRange{
			lo: common.ClampInt(c.Left-buffer, 0, n-1),
			hi: common.ClampInt(c.Right+buffer, 0, n-1),
		}
		if r.lo <= r.hi {
			out = append(out, r)
		}
	}
	return out
}

func dedupe(ranges []indexRange) []indexRange {
	seen := make(map[indexRange]bool, len(ranges))
	out := ranges[:0:0]
	for _, r := range ranges {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// removeSubsets keeps only ranges not contained in another range. Input
// must be free of duplicates.
func removeSubsets(ranges []indexRange) []indexRange {
	out := ranges[:0:0]
	for j, r := range ranges {
		covered := false
		for i, o := range ranges {
			if i != j && o.contains(r) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

func mergeOverlapping(ranges []indexRange) []indexRange {
	if len(ranges) < 2 {
		return ranges
	}
	sorted := append([]indexRange(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].lo < sorted[j].lo
	})

	out := []indexRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.lo <= last.hi+1 {
			last.hi = max(last.hi, r.hi)
			continue
		}
		out = append(out, r)
	}
	return out
}

// backgroundRuns returns maximal runs of unassigned (id 0) samples
func backgroundRuns(ids []int) []indexRange {
	var runs []indexRange
	start := -1
	for i, id := range ids {
		switch {
		case id == 0 && start < 0:
			start = i
		case id != 0 && start >= 0:
			runs = append(runs, indexRange{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, indexRange{start, len(ids) - 1})
	}
	return runs
}

func collect(s chromatogram.Series, signal []float64, ids []int, id int, kind Kind) *Window {
	w := &Window{ID: id, Kind: kind, Start: -1}
	for i, owner := range ids {
		if owner != id {
			continue
		}
		if w.Start < 0 {
			w.Start = i
		}
		w.End = i
		w.Time = append(w.Time, s.Time[i])
		w.Signal = append(w.Signal, signal[i])
	}
	if w.Start < 0 {
		return nil
	}
	w.SignalArea = floats.Sum(w.Signal)
	return w
}
