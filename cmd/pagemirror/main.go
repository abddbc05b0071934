// Package main provides the entry point for the pagemirror CLI.
//
// pagemirror downloads a single web page together with its stylesheets,
// scripts, images, fonts and favicon, rewrites every same-origin
// reference to point at the local copy, and writes the result to a
// directory that can be served as a static site.
//
// Usage:
//
//	pagemirror <url> [output-dir] [depth]
//	pagemirror history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
