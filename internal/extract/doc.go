// Package extract turns one web page into a self-contained PageResult.
//
// The page is fetched, parsed once with goquery and then walked by a
// fixed sequence of passes:
//
//  1. icon, with a favicon.ico fallback chain
//  2. shortcut icon
//  3. stylesheets, expanded through the stylesheet package
//  4. scripts
//  5. images
//  6. anchors (rewritten, never fetched)
//  7. url() references in inline style attributes
//
// Every pass follows the same steps for each reference: resolve it
// against the page URL, drop it if it leaves the page's host, fetch it,
// then rewrite the reference in the page text to its local path. Any
// failure skips only that reference; it is recorded in
// PageResult.Skipped and the original text is left in place. The only
// fatal error is failing to fetch the page itself (ErrPageFetch).
//
// Rewrites operate on the raw page text so that everything the passes do
// not touch is preserved byte for byte. A replacement only matches the
// value where it appears as the value of the same attribute name, in any
// quoting, so visible text that happens to equal a URL is not rewritten.
package extract
