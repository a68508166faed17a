package chromatogram

import "errors"

// Error taxonomy shared by every stage of the engine. Stages wrap one of
// these sentinels so callers can branch with errors.Is.
var (
	// ErrConfiguration reports invalid parameters or a malformed series.
	ErrConfiguration = errors.New("configuration error")

	// ErrNoPeaksDetected reports that the peak locator found no apex.
	ErrNoPeaksDetected = errors.New("no peaks detected")

	// ErrConvergence reports that a window fit exhausted its iteration budget.
	ErrConvergence = errors.New("fit did not converge")

	// ErrEmptyResult reports that no peak was extracted from any window.
	ErrEmptyResult = errors.New("no peaks extracted")
)
