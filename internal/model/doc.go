// Package model defines the core data structures used throughout pagemirror.
//
// This package contains the following main types:
//   - PageResult: The rewritten page together with every downloaded asset
//   - TextAsset / BinaryAsset: A local file name plus its content
//   - StylesheetNode: A stylesheet and the stylesheets it imports
//   - Run: One mirror invocation, as recorded in history and reports
//
// Models live in their own package because extract, persist, database and
// report all consume them; keeping them here prevents import cycles.
//
// The models are serializable to JSON for report output and history storage.
package model
