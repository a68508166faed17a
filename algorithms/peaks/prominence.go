package peaks

// Peak is a local maximum together with its topographic prominence
type Peak struct {
	Index      int     // apex sample index (midpoint for flat tops)
	Height     float64 // signal value at the apex
	Prominence float64 // height above the higher of the two bases
	LeftBase   int     // index of the lowest sample on the left before a higher one
	RightBase  int     // index of the lowest sample on the right before a higher one
}

// LocalMaxima returns the indices of all local maxima in x. A flat top
// counts once, at its midpoint (rounded down). The first and last samples
// are never maxima.
func LocalMaxima(x []float64) []int {
	var maxima []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				left, right := i, ahead-1
				maxima = append(maxima, (left+right)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return maxima
}

// Prominences measures each apex in x. Walking outward from the apex, the
// base on each side is the minimum reached before the signal rises above
// the apex or the series ends.
func Prominences(x []float64, apexes []int) []Peak {
	out := make([]Peak, 0, len(apexes))
	for _, p := range apexes {
		if p < 0 || p >= len(x) {
			continue
		}
		top := x[p]

		leftBase, leftMin := p, top
		for i := p; i >= 0 && x[i] <= top; i-- {
			if x[i] < leftMin {
				leftMin = x[i]
				leftBase = i
			}
		}

		rightBase, rightMin := p, top
		for i := p; i < len(x) && x[i] <= top; i++ {
			if x[i] < rightMin {
				rightMin = x[i]
				rightBase = i
			}
		}

		out = append(out, Peak{
			Index:      p,
			Height:     top,
			Prominence: top - max(leftMin, rightMin),
			LeftBase:   leftBase,
			RightBase:  rightBase,
		})
	}
	return out
}

// FindPeaks returns the local maxima of x whose prominence is at least
// minProminence, in index order.
func FindPeaks(x []float64, minProminence float64) []Peak {
	candidates := Prominences(x, LocalMaxima(x))
	kept := candidates[:0]
	for _, pk := range candidates {
		if pk.Prominence >= minProminence {
			kept = append(kept, pk)
		}
	}
	return kept
}
