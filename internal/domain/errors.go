package domain

import "errors"

// ErrNotFound is returned by a provider whose lookup succeeded but whose
// catalog has no entry for the content ID. It is a per-provider miss,
// not a failure.
var ErrNotFound = errors.New("metadata not found")
