package peaks

// Width describes where a peak crosses a reference height below its apex.
// Positions are fractional sample indices.
type Width struct {
	Width  float64 // Right - Left, in samples
	Height float64 // reference height: apex - relHeight*prominence
	Left   float64 // interpolated left crossing
	Right  float64 // interpolated right crossing
}

// Widths measures every peak of x at relHeight of its prominence
// (0.5 gives the full width at half prominence). The search on each side
// stops at the peak's base, so a crossing is always found.
func Widths(x []float64, peaks []Peak, relHeight float64) []Width {
	out := make([]Width, len(peaks))
	for k, pk := range peaks {
		p := pk.Index
		height := x[p] - pk.Prominence*relHeight

		i := p
		for pk.LeftBase < i && height < x[i] {
			i--
		}
		left := float64(i)
		if x[i] < height {
			left += (height - x[i]) / (x[i+1] - x[i])
		}

		i = p
		for i < pk.RightBase && height < x[i] {
			i++
		}
		right := float64(i)
		if x[i] < height {
			right -= (height - x[i]) / (x[i-1] - x[i])
		}

		out[k] = Width{
			Width:  right - left,
			Height: height,
			Left:   left,
			Right:  right,
		}
	}
	return out
}

// WidthsAt measures the given apexes of x, computing their prominence on x
// first. The apexes do not have to be local maxima of x.
func WidthsAt(x []float64, apexes []int, relHeight float64) []Width {
	return Widths(x, Prominences(x, apexes), relHeight)
}
