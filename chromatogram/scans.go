package chromatogram

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Point is one centroid of one scan in long-form acquisition data
type Point struct {
	ScanID        int     `json:"scan_id"`
	RetentionTime float64 `json:"retention_time"`
	MZ            float64 `json:"mz"`
	Intensity     float64 `json:"intensity"`
}

type scan struct {
	id        int
	rt        float64
	mz        []float64
	intensity []float64
}

// groupScans collects points by scan id and orders the scans by retention
// time, ties broken by scan id.
func groupScans(points []Point) ([]*scan, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no scan data", ErrConfiguration)
	}

	byID := make(map[int]*scan)
	var scans []*scan
	for i, p := range points {
		if math.IsNaN(p.RetentionTime) || math.IsInf(p.RetentionTime, 0) {
			return nil, fmt.Errorf("%w: non-finite retention time at point %d", ErrConfiguration, i)
		}
		sc, ok := byID[p.ScanID]
		if !ok {
			sc = &scan{id: p.ScanID, rt: p.RetentionTime}
			byID[p.ScanID] = sc
			scans = append(scans, sc)
		} else if sc.rt != p.RetentionTime {
			return nil, fmt.Errorf("%w: scan %d has retention times %v and %v",
				ErrConfiguration, p.ScanID, sc.rt, p.RetentionTime)
		}
		sc.mz = append(sc.mz, p.MZ)
		sc.intensity = append(sc.intensity, p.Intensity)
	}

	sort.SliceStable(scans, func(i, j int) bool {
		if scans[i].rt != scans[j].rt {
			return scans[i].rt < scans[j].rt
		}
		return scans[i].id < scans[j].id
	})
	return scans, nil
}

func summarize(points []Point, reduce func(sc *scan) float64) (Series, error) {
	scans, err := groupScans(points)
	if err != nil {
		return Series{}, err
	}
	times := make([]float64, len(scans))
	values := make([]float64, len(scans))
	for i, sc := range scans {
		times[i] = sc.rt
		values[i] = reduce(sc)
	}
	return Series{Time: times, Intensity: values}, nil
}

// ExtractXIC builds the extracted ion chromatogram of mz ± tol. Every scan
// in points contributes one sample, zero when no centroid falls inside the
// tolerance; several matching centroids in one scan are summed.
func ExtractXIC(points []Point, mz, tol float64) (Series, error) {
	if !(tol >= 0) || math.IsInf(tol, 0) {
		return Series{}, fmt.Errorf("%w: mz tolerance must be non-negative and finite, got %v", ErrConfiguration, tol)
	}
	if math.IsNaN(mz) || math.IsInf(mz, 0) {
		return Series{}, fmt.Errorf("%w: target mz must be finite, got %v", ErrConfiguration, mz)
	}

	lo, hi := mz-tol, mz+tol
	return summarize(points, func(sc *scan) float64 {
		var matched []float64
		for k, m := range sc.mz {
			if m >= lo && m <= hi {
				matched = append(matched, sc.intensity[k])
			}
		}
		return floats.Sum(matched)
	})
}

// TIC returns the total ion chromatogram: summed intensity per scan
func TIC(points []Point) (Series, error) {
	return summarize(points, func(sc *scan) float64 {
		return floats.Sum(sc.intensity)
	})
}

// BPC returns the base peak chromatogram: maximum intensity per scan
func BPC(points []Point) (Series, error) {
	return summarize(points, func(sc *scan) float64 {
		return floats.Max(sc.intensity)
	})
}
