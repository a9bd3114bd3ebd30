package feed

import "fmt"

// StatusError is a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// TransientError is a rate-limit, forbidden or timeout failure that was
// still failing after the last attempt.
type TransientError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("fetch %s: giving up after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ParseError means the body could not be parsed as a feed at all.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MalformedFeedError is reported as a warning when the feed only parsed
// after cleanup.
type MalformedFeedError struct {
	URL string
	Err error
}

func (e *MalformedFeedError) Error() string {
	return fmt.Sprintf("malformed feed %s: %v", e.URL, e.Err)
}

func (e *MalformedFeedError) Unwrap() error { return e.Err }

// EntryError describes an entry that was dropped during extraction.
type EntryError struct {
	Index int
	Link  string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", e.Index, e.Link, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
