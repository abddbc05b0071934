// Package stylesheet fetches a stylesheet, localises its @font-face
// sources and expands its @import chain into a tree of StylesheetNodes.
//
// Expansion is bounded by a depth budget. Each level of @import consumes
// one unit, and depth 0 fetches the stylesheet without expanding any of
// its imports. An expanded @import statement is replaced by the bare
// local name of the imported file; an import that is off-origin, points
// back at the same path, or fails to load is left exactly as written.
//
// Fonts are written to a sibling "font" directory, so their url() sources
// are rewritten to "../font/<name>".
//
// The regular expressions used here are compiled once at package load
// and are safe for concurrent use. FindURLs exposes the url() matcher to
// other packages that scan CSS fragments, such as inline style attributes.
package stylesheet
