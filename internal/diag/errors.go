package diag

import "errors"

// Degraded-mode kinds. Stages substitute a documented default, record the
// substitution and continue; none of these abort a run.
var (
	ErrMissingInput       = errors.New("missing input")
	ErrInsufficientSample = errors.New("insufficient sample")
	ErrUnknownRole        = errors.New("unknown role")
	ErrDegenerateRange    = errors.New("degenerate range")
)

// ErrNoInput is fatal: the primary player table is empty or absent.
var ErrNoInput = errors.New("no input")

// KindName returns the short label used for a sentinel kind in counters and
// persisted diagnostics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrInsufficientSample):
		return "insufficient_sample"
	case errors.Is(err, ErrUnknownRole):
		return "unknown_role"
	case errors.Is(err, ErrDegenerateRange):
		return "degenerate_range"
	case errors.Is(err, ErrNoInput):
		return "no_input"
	default:
		return "other"
	}
}
