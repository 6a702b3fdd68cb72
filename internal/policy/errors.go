package policy

import "errors"

// Error kinds surfaced by the accounting core. Every precondition
// violation aborts the enclosing operation with one of these; callers
// match with errors.Is.
var (
	ErrAlreadyInitialized        = errors.New("already initialized")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrInvalidSchedule           = errors.New("flight date must be in the future")
	ErrInvalidOutcome            = errors.New("invalid flight outcome")
	ErrInsufficientLiquidity     = errors.New("insufficient liquidity pool")
	ErrInsufficientPool          = errors.New("insufficient pool balance")
	ErrInsufficientPoolForPayout = errors.New("insufficient pool for payout")
	ErrInsufficientCoverage      = errors.New("withdrawal would breach active policy coverage")
	ErrNotFound                  = errors.New("not found")
	ErrNoPoliciesForFlight       = errors.New("no policies for flight")
	ErrAlreadyResolved           = errors.New("policy already resolved")
	ErrResolutionDeadlineExpired = errors.New("resolution deadline expired")
	ErrUnauthorized              = errors.New("unauthorized")
)

// Kind returns a stable label for an error, used as a metrics reason
// label. Unrecognized errors are reported as internal.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidSchedule):
		return "invalid_schedule"
	case errors.Is(err, ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ErrInsufficientPool):
		return "insufficient_pool"
	case errors.Is(err, ErrInsufficientPoolForPayout):
		return "insufficient_pool_for_payout"
	case errors.Is(err, ErrInsufficientCoverage):
		return "insufficient_coverage"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoPoliciesForFlight):
		return "no_policies_for_flight"
	case errors.Is(err, ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, ErrResolutionDeadlineExpired):
		return "resolution_deadline_expired"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
