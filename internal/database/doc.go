// Package database provides SQLite-based run history for pagemirror.
//
// Every mirror run is recorded with its page URL, output directory, the
// files that were written and the references that were skipped. The
// history command reads it back.
//
// SQLite is used through modernc.org/sqlite, so the database is a single
// CGO-free file under the XDG data directory.
package database
