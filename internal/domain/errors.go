package domain

import "errors"

// Repository-level sentinels shared by every storage driver.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
