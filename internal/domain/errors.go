package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrPartialFailure      = errors.New("partial failure")
)

// ErrForbidden is an ownership mismatch; errors.Is(err, ErrConflict) holds for it too.
var ErrForbidden error = &forbiddenError{}

type forbiddenError struct{}

func (*forbiddenError) Error() string { return "forbidden" }

func (*forbiddenError) Is(target error) bool {
	return target == ErrConflict
}
