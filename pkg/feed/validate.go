package feed

import (
	"context"
	"errors"
)

// Validation reports whether a URL is usable as a feed.
type Validation struct {
	URL     string `json:"url"`
	Valid   bool   `json:"valid"`
	Title   string `json:"title,omitempty"`
	Entries int    `json:"entries"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Validate fetches url once through the normal pipeline. A feed that parses
// but has no usable entries is reported as invalid.
func (f *Fetcher) Validate(ctx context.Context, url string) *Validation {
	v := &Validation{URL: url}

	res, err := f.Fetch(ctx, url)
	if err != nil {
		v.Error = describe(err)
		return v
	}

	v.Title = res.Title
	v.Entries = len(res.Entries)
	if res.Warning != nil {
		v.Warning = res.Warning.Error()
	}
	if v.Entries == 0 {
		v.Error = "feed has no usable entries"
		return v
	}
	v.Valid = true
	return v
}

func describe(err error) string {
	var (
		te *TransientError
		se *StatusError
		pe *ParseError
	)
	switch {
	case errors.As(err, &te):
		return "source is rate limiting or refusing requests: " + err.Error()
	case errors.As(err, &se):
		return "unexpected HTTP status: " + err.Error()
	case errors.As(err, &pe):
		return "not a valid RSS or Atom feed: " + err.Error()
	}
	return err.Error()
}
