// Package persist writes a PageResult to an output directory.
//
// Layout:
//
//	<dir>/index.html     rewritten page
//	<dir>/css/<name>     every flattened stylesheet
//	<dir>/src/<name>     scripts
//	<dir>/img/<name>     images
//	<dir>/font/<name>    fonts
//	<dir>/<name>         icon and shortcut icon
//
// All four sub-directories are always created. Files that map to the same
// path are resolved before writing: the one that comes later in the
// result wins. Distinct paths are then written concurrently. Any
// directory or file error is fatal.
package persist
