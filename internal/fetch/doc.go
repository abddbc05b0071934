// Package fetch retrieves resources over HTTP for the mirror.
//
// The Fetcher interface is the only network capability the extraction
// engine sees: text for pages, stylesheets and scripts, bytes for
// images, fonts and icons. HTTPFetcher is the production implementation.
//
// HTTPFetcher treats any non-2xx status as a failure (*StatusError), so
// an error page is never saved in place of the real resource. Text is
// decoded to UTF-8 according to the response's declared or sniffed
// charset; bytes are returned untouched.
//
// Optional politeness:
//   - a token bucket limits the request rate (WithRate)
//   - robots.txt is honoured per host (WithRobots); a disallowed URL
//     fails with ErrDisallowed
package fetch
