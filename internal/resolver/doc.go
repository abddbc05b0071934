// Package resolver turns references found in markup and stylesheets into
// absolute URLs and decides how the mirror treats them.
//
// Four questions are answered here, and nowhere else:
//   - Resolve: what absolute URL does a reference point at?
//   - SameOrigin: is that URL in scope for the mirror?
//   - LocalName: what file name does it get on disk?
//   - Classify: is it an image, a font, or something else?
//
// Scope is deliberately narrow. Two URLs are in scope of each other when
// their host names are byte-equal; scheme and port do not matter, so an
// https page may pull assets from http on the same host.
//
// Local names are the last "/" segment of the URL's string form, query
// included. Two resources that share a final segment share a file name,
// and the one written last wins.
package resolver
