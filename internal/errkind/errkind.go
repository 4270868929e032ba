// Package errkind defines the error categories reported by the bubble and
// mass-transfer engines.
//
// Every error returned by the core packages wraps exactly one of these
// sentinels, so callers classify failures with errors.Is:
//
//	if errors.Is(err, errkind.ErrInvalidConfiguration) {
//	    // ask the user for different parameters
//	}
//
// An empty detection result is not an error and has no sentinel here.
package errkind

import "errors"

var (
	// ErrInvalidInput reports malformed data: an empty or undecodable image,
	// mismatched column lengths, non-numeric CSV cells.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration reports parameters that make the computation
	// ill-defined: a non-positive physical scale, minRadius > maxRadius,
	// non-positive Re or Sc passed to the correlation fit.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotConverged reports an optimisation that stopped before meeting its
	// convergence criterion. It is informational; the partial result is still
	// returned to the caller.
	ErrNotConverged = errors.New("optimization did not converge")
)
