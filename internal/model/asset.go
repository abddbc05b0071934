package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// TextAsset is a downloaded text resource (stylesheet or script).
// Content is decoded to UTF-8 and may have been rewritten.
type TextAsset struct {
	// Name is the local file name, derived from the last path segment
	// of the resource's absolute URL.
	Name string `json:"name"`

	// Content is the decoded text.
	Content string `json:"-"`
}

// Size returns the content length in bytes.
func (a TextAsset) Size() int {
	return len(a.Content)
}

// BinaryAsset is a downloaded binary resource (image, font or icon).
// Content is stored exactly as received; no decoding is ever attempted.
type BinaryAsset struct {
	// Name is the local file name.
	Name string `json:"name"`

	// Content is the raw response body.
	Content []byte `json:"-"`
}

// Size returns the content length in bytes.
func (a BinaryAsset) Size() int {
	return len(a.Content)
}

// Hash returns the hex encoded SHA-256 of the content.
// An empty asset has an empty hash.
func (a BinaryAsset) Hash() string {
	return hashBytes(a.Content)
}

// Hash returns the hex encoded SHA-256 of the content.
func (a TextAsset) Hash() string {
	return hashBytes([]byte(a.Content))
}

func hashBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Anchor is a same-origin link that was rewritten but not fetched.
type Anchor struct {
	// URL is the absolute URL the anchor pointed at.
	URL string `json:"url"`

	// Name is the local name the anchor now points at ("/<Name>").
	Name string `json:"name"`
}

// StylesheetNode is a fetched stylesheet and the stylesheets it imports.
//
// Nodes form a tree rooted at a stylesheet referenced from the page.
// Each node exclusively owns its children; the tree is finite because
// every level of @import expansion consumes one unit of depth.
type StylesheetNode struct {
	// Name is the local file name of this stylesheet.
	Name string

	// Content is the stylesheet text after font and import rewriting.
	Content string

	// Fonts are the @font-face sources downloaded for this stylesheet.
	Fonts []BinaryAsset

	// Imports are the resolved @import children, in source order.
	Imports []*StylesheetNode
}

// Flatten returns the tree in pre-order: the node itself first, then
// each child's flattened subtree in child order.
//
// Fonts are not deduplicated across nodes; every node keeps its own list.
func Flatten(node *StylesheetNode) []*StylesheetNode {
	if node == nil {
		return nil
	}

	out := []*StylesheetNode{node}
	for _, child := range node.Imports {
		out = append(out, Flatten(child)...)
	}
	return out
}

// Count returns the number of nodes in the tree.
func (n *StylesheetNode) Count() int {
	return len(Flatten(n))
}
