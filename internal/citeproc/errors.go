package citeproc

import "errors"

// Error kinds. Wrapped errors keep the underlying cause in the chain, so
// errors.Is matches both the kind and the original error.
var (
	// ErrEngineInit means the engine could not be initialized or a handle
	// could not be created. Not retried.
	ErrEngineInit = errors.New("engine initialization failed")

	// ErrReferenceResolution means the item provider could not produce a
	// record for a cited or uncited item
	ErrReferenceResolution = errors.New("reference resolution failed")

	// ErrHandleRelease means releasing an engine handle failed
	ErrHandleRelease = errors.New("engine handle release failed")

	// ErrLocaleFetch means the locale collaborator failed during handle creation
	ErrLocaleFetch = errors.New("locale fetch failed")

	// ErrSessionClosed is returned for any operation on a freed or failed
	// session, or on a session that has no live handle
	ErrSessionClosed = errors.New("engine session closed")

	// ErrInvalidNoteIndex is returned for note indexes that are not
	// non-negative integers
	ErrInvalidNoteIndex = errors.New("invalid note index")
)
