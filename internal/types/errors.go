package types

import "errors"

// Error taxonomy for the planning core. Handlers translate these with
// errors.Is; services wrap them with context via fmt.Errorf("...: %w", ...).
var (
	// ErrNotFound signals a missing persona, destination, hotel or itinerary.
	ErrNotFound = errors.New("requested item not found")

	// ErrValidation signals bad user input or a failed transition guard.
	// The session is left exactly as it was before the attempt.
	ErrValidation = errors.New("validation failed")

	// ErrSessionBusy signals that another request currently holds the session.
	// Requests never interleave on a single session.
	ErrSessionBusy = errors.New("session is busy processing another request")

	// ErrRetrievalUnavailable signals an embedding or search collaborator
	// outage. Distinct from an empty result set, which is not an error.
	ErrRetrievalUnavailable = errors.New("retrieval collaborator unavailable")

	// ErrGenerationUnavailable signals a generation collaborator outage.
	ErrGenerationUnavailable = errors.New("generation collaborator unavailable")

	// ErrMalformedOutput signals that generated output failed structural
	// validation twice (initial attempt plus the single strict-format retry).
	ErrMalformedOutput = errors.New("generated output failed structural validation")

	// ErrPersistence signals a save/load failure. The in-memory itinerary is
	// retained so the caller can retry saving without regenerating.
	ErrPersistence = errors.New("persistence failure")
)
