package extract

import "errors"

var (
	// ErrPageFetch is returned when the page itself cannot be fetched.
	// It is the only error that aborts an extraction.
	ErrPageFetch = errors.New("failed to fetch page")

	// ErrInvalidURL is returned when the page URL is not an absolute
	// http or https URL.
	ErrInvalidURL = errors.New("invalid page URL")
)
