package shared

import "errors"

var (
	// ErrStoreRequired occurs when a request carries no store scope.
	ErrStoreRequired = errors.New("store scope required")
)
