package feed

import "errors"

// ErrValidation is returned when a feed definition or its URL is rejected.
var ErrValidation = errors.New("feed: validation failed")

// ErrDuplicate is returned when a feed id or URL is already registered.
var ErrDuplicate = errors.New("feed: duplicate feed")

// ErrNotFound is returned for an unknown feed id.
var ErrNotFound = errors.New("feed: not found")

// ErrFetch covers network failures, timeouts and non-2xx responses.
var ErrFetch = errors.New("feed: fetch failed")

// ErrParse is returned when a document is neither valid RSS nor valid Atom.
var ErrParse = errors.New("feed: document is not RSS or Atom")
