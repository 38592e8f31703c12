package trivia

import "errors"

// Error kinds returned by the engine and the coordinator. Wrap them with
// fmt.Errorf("%w: ...") and classify with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
	ErrStorage         = errors.New("storage failure")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrUnauthenticated, "unauthenticated"},
	{ErrForbidden, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrInvalidState, "invalid_state"},
	{ErrValidation, "validation_error"},
	{ErrConflict, "conflict"},
	{ErrUnavailable, "unavailable"},
	{ErrStorage, "storage_failure"},
}

// Code returns a stable machine-readable name for the kind of err, or
// "internal" when err carries none of the known kinds.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}
