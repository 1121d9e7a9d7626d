package layer

import "errors"

// Errors returned by layer operations.
var (
	// ErrConfig is returned at construction when no valid geometry
	// derivation strategy is configured.
	ErrConfig = errors.New("invalid layer configuration")

	// ErrUnsupportedQuery is returned for query types outside the
	// recognized set. Never downgraded to an empty result.
	ErrUnsupportedQuery = errors.New("unsupported query type")

	// ErrDecode is returned when a query payload does not match the shape
	// its query type requires. Never downgraded to an empty result.
	ErrDecode = errors.New("malformed query parameters")

	// ErrResolution is returned when a business-key lookup yields no
	// matching entity.
	ErrResolution = errors.New("could not resolve entity")

	// ErrUnsupported is returned by operations the index contract does not
	// support (PutIfAbsent).
	ErrUnsupported = errors.New("operation not supported")
)
