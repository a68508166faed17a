package deconvolution

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/ionome/algorithms/common"
	"github.com/RyanBlaney/ionome/algorithms/models"
	"github.com/RyanBlaney/ionome/chromatogram"
)

// Peak is one row of the peak table
type Peak struct {
	PeakID        int     `json:"peak_id"`
	WindowID      int     `json:"window_id"`
	Label         string  `json:"label"`
	RetentionTime float64 `json:"retention_time"`
	Location      float64 `json:"location"` // unrounded fitted location
	Scale         float64 `json:"scale"`
	Skew          float64 `json:"skew"`
	Amplitude     float64 `json:"amplitude"`
	Area          float64 `json:"area"`
	SignalMaximum float64 `json:"signal_maximum"`
}

// Aggregate flattens the window fits into a peak table sorted by
// retention time, numbering peaks from 1 in that order, and evaluates
// every fitted component over the full series time axis. Column j of the
// unmixed matrix is the peak with PeakID j+1; values are rounded to
// precision decimals.
func Aggregate(fits map[int]*WindowFit, s chromatogram.Series, precision int) ([]Peak, *mat.Dense, error) {
	ids := make([]int, 0, len(fits))
	for id := range fits {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var table []Peak
	for _, id := range ids {
		fit := fits[id]
		if fit == nil {
			continue
		}
		for _, fp := range fit.Peaks {
			table = append(table, Peak{
				WindowID:      fit.WindowID,
				Label:         fp.Label,
				RetentionTime: fp.RetentionTime,
				Location:      fp.Model.Location,
				Scale:         fp.Model.Scale,
				Skew:          fp.Model.Skew,
				Amplitude:     fp.Model.Amplitude,
				Area:          fp.Area,
				SignalMaximum: fp.SignalMax,
			})
		}
	}
	if len(table) == 0 {
		return nil, nil, fmt.Errorf("%w: no peaks were extracted", chromatogram.ErrEmptyResult)
	}

	sort.SliceStable(table, func(i, j int) bool {
		return table[i].RetentionTime < table[j].RetentionTime
	})
	for i := range table {
		table[i].PeakID = i + 1
	}

	unmixed := mat.NewDense(s.Len(), len(table), nil)
	for j, pk := range table {
		unmixed.SetCol(j, common.RoundAll(pk.model().Evaluate(s.Time), precision))
	}
	return table, unmixed, nil
}

func (p Peak) model() models.SkewNormal {
	return models.SkewNormal{
		Amplitude: p.Amplitude,
		Location:  p.Location,
		Scale:     p.Scale,
		Skew:      p.Skew,
	}
}
