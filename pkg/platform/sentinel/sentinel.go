package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores. Services map
// them to domain errors or field errors; stores never decide policy.
//
//   - ErrNotFound: no record under the key
//   - ErrAlreadyUsed: a unique value (username, email) is taken, or a
//     single-use challenge was already consumed
//   - ErrExpired: the record existed but its TTL elapsed
//   - ErrUnavailable: the backing store cannot be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
