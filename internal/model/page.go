package model

// ResourceKind identifies which extraction pass discovered a resource.
type ResourceKind string

// Resource kinds in the order the page passes run.
const (
	KindPage         ResourceKind = "page"
	KindIcon         ResourceKind = "icon"
	KindShortcutIcon ResourceKind = "shortcut_icon"
	KindStylesheet   ResourceKind = "stylesheet"
	KindFont         ResourceKind = "font"
	KindScript       ResourceKind = "script"
	KindImage        ResourceKind = "image"
	KindAnchor       ResourceKind = "anchor"
	KindInlineStyle  ResourceKind = "inline_style"
)

// Skip records a reference that was left untouched.
// Skips are informational: the page still mirrors successfully, and the
// original reference stays in the emitted text.
type Skip struct {
	// Kind is the pass that found the reference.
	Kind ResourceKind `json:"kind"`

	// Reference is the reference as written in the document, or the
	// resolved URL when the failure happened after resolution.
	Reference string `json:"reference"`

	// Reason is a short description such as "off-origin" or the fetch error.
	Reason string `json:"reason"`
}

// PageResult is the output of extracting one page.
//
// It is created once per run by the extractor and owned by the caller
// after return. Nothing mutates it afterwards.
type PageResult struct {
	// URL is the page URL the result was extracted from.
	URL string `json:"url"`

	// Content is the page text with every resolved reference rewritten.
	Content string `json:"-"`

	// Icon is the favicon, if any candidate could be fetched.
	Icon *BinaryAsset `json:"icon,omitempty"`

	// ShortcutIcon is the link[rel="shortcut icon"] target, if fetched.
	ShortcutIcon *BinaryAsset `json:"shortcut_icon,omitempty"`

	// Stylesheets holds every flattened stylesheet, in discovery order.
	Stylesheets []TextAsset `json:"stylesheets"`

	// Scripts holds external scripts, in document order.
	Scripts []TextAsset `json:"scripts"`

	// Images holds <img> targets followed by inline-style images.
	Images []BinaryAsset `json:"images"`

	// Fonts holds stylesheet fonts followed by inline-style fonts.
	Fonts []BinaryAsset `json:"fonts"`

	// Anchors holds (absolute URL, local name) pairs for rewritten links.
	Anchors []Anchor `json:"anchors"`

	// Skipped lists references dropped by the silent-skip policy.
	Skipped []Skip `json:"skipped,omitempty"`
}

// NewPageResult creates an empty result for the given page URL.
func NewPageResult(pageURL string) *PageResult {
	return &PageResult{
		URL:         pageURL,
		Stylesheets: make([]TextAsset, 0),
		Scripts:     make([]TextAsset, 0),
		Images:      make([]BinaryAsset, 0),
		Fonts:       make([]BinaryAsset, 0),
		Anchors:     make([]Anchor, 0),
	}
}

// AddSkip records a skipped reference.
func (r *PageResult) AddSkip(kind ResourceKind, reference, reason string) {
	r.Skipped = append(r.Skipped, Skip{Kind: kind, Reference: reference, Reason: reason})
}

// AssetCount returns the number of downloaded files, icons included.
// The page itself and anchors are not counted.
func (r *PageResult) AssetCount() int {
	n := len(r.Stylesheets) + len(r.Scripts) + len(r.Images) + len(r.Fonts)
	if r.Icon != nil {
		n++
	}
	if r.ShortcutIcon != nil {
		n++
	}
	return n
}

// TotalBytes returns the combined size of the page and every asset.
func (r *PageResult) TotalBytes() int64 {
	total := int64(len(r.Content))
	for _, a := range r.Stylesheets {
		total += int64(a.Size())
	}
	for _, a := range r.Scripts {
		total += int64(a.Size())
	}
	for _, a := range r.Images {
		total += int64(a.Size())
	}
	for _, a := range r.Fonts {
		total += int64(a.Size())
	}
	if r.Icon != nil {
		total += int64(r.Icon.Size())
	}
	if r.ShortcutIcon != nil {
		total += int64(r.ShortcutIcon.Size())
	}
	return total
}
