package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Member stores and the token
// revocation lists return these (optionally wrapped) and services translate them
// into coded domain errors:
// - ErrNotFound: document does not exist in the store
// - ErrConflict: a unique key (cpf) is already taken
// - ErrInvalidState: store was asked for something it cannot represent
// - ErrUnavailable: the backing store could not be reached or failed the call
//
// Validation failures never come from here; use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
