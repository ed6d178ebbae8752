package storage

import "errors"

var (
	// ErrStorageUnavailable is returned by every call on a store that could not be
	// opened (or was closed) until a later Open succeeds.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("record not found")
	ErrReadOnly           = errors.New("write in read-only transaction")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrUnknownIndex       = errors.New("unknown index")
	ErrWrongCollection    = errors.New("record does not belong to collection")
)
