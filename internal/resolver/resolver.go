package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrResolve is returned when a reference cannot be joined against its base.
// Callers treat it as a per-resource skip, never as a fatal error.
var ErrResolve = errors.New("cannot resolve reference")

// Class is the coarse kind of a resource, derived from its file extension.
type Class int

const (
	// ClassOther is anything that is neither an image nor a font.
	ClassOther Class = iota

	// ClassImage covers png, jpg, jpeg, webp, gif and svg.
	ClassImage

	// ClassFont covers ttf, eot, woff and woff2.
	ClassFont
)

// String returns a lowercase name for the class.
func (c Class) String() string {
	switch c {
	case ClassImage:
		return "image"
	case ClassFont:
		return "font"
	default:
		return "other"
	}
}

// extensionClasses maps file extensions to classes.
// Lookups are case-sensitive: "a.PNG" is ClassOther.
var extensionClasses = map[string]Class{
	"png":   ClassImage,
	"jpg":   ClassImage,
	"jpeg":  ClassImage,
	"webp":  ClassImage,
	"gif":   ClassImage,
	"svg":   ClassImage,
	"ttf":   ClassFont,
	"eot":   ClassFont,
	"woff":  ClassFont,
	"woff2": ClassFont,
}

// Resolve joins ref against base using standard URL reference resolution.
// Relative paths, protocol-relative references and absolute URLs are all
// accepted. Surrounding whitespace in ref is ignored.
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: %q: no base URL", ErrResolve, ref)
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrResolve)
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrResolve, ref, err)
	}

	return base.ResolveReference(parsed), nil
}

// ResolveString parses base and then resolves ref against it.
func ResolveString(base, ref string) (*url.URL, error) {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("%w: base %q: %w", ErrResolve, base, err)
	}
	return Resolve(b, ref)
}

// LocalName returns the final "/" segment of u's string form.
// It returns false when that segment is empty, as for "http://h/dir/",
// or when the URL has no path at all, as for "http://h".
func LocalName(u *url.URL) (string, bool) {
	if u == nil || u.Opaque != "" {
		return "", false
	}
	if u.Path == "" && u.RawPath == "" {
		return "", false
	}

	s := u.String()
	name := s[strings.LastIndex(s, "/")+1:]
	if name == "" {
		return "", false
	}
	return name, true
}

// SameOrigin reports whether u belongs to the same host as base.
// Host names are compared byte for byte; scheme and port are ignored.
func SameOrigin(base, u *url.URL) bool {
	if base == nil || u == nil {
		return false
	}
	host := u.Hostname()
	return host != "" && host == base.Hostname()
}

// Extension returns the substring after the last "." in name.
// It returns false when name has no ".".
func Extension(name string) (string, bool) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", false
	}
	return name[idx+1:], true
}

// Classify returns the class of a local file name by its extension.
func Classify(name string) Class {
	ext, ok := Extension(name)
	if !ok {
		return ClassOther
	}
	if class, found := extensionClasses[ext]; found {
		return class
	}
	return ClassOther
}

// StripQueryAndFragment drops everything from the first "?" or "#" on.
// Stylesheet font sources are cleaned this way before resolution.
func StripQueryAndFragment(ref string) string {
	if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		return ref[:idx]
	}
	return ref
}

// Unquote removes one pair of matching surrounding quotes, single or double.
// Whitespace around the value is trimmed first.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
