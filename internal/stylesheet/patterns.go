package stylesheet

import (
	"regexp"
	"strings"

	"github.com/nao1215/pagemirror/internal/resolver"
)

var (
	// fontFacePattern matches a whole @font-face block.
	fontFacePattern = regexp.MustCompile(`@font-face\s*\{([^}]+)\}`)

	// urlPattern matches a url(...) token. Group 1 is the raw argument,
	// quotes and surrounding spaces included.
	urlPattern = regexp.MustCompile(`url\(([^)]+)\)`)

	// importPattern matches one @import statement up to its semicolon.
	// Groups 1-3 are the url() forms (double quoted, single quoted, bare)
	// and groups 4-5 the plain string forms.
	importPattern = regexp.MustCompile(`(?i)@import\s+(?:url\s*\(\s*(?:"([^"]+)"|'([^']+)'|([^)"'\s]+))\s*\)|"([^"]+)"|'([^']+)')[^;]*;`)
)

// URLRef is one url(...) token found in CSS text.
type URLRef struct {
	// Token is the full matched text, e.g. `url("a.png")`.
	Token string

	// Raw is the argument between the parentheses, as written.
	Raw string

	// Value is Raw with surrounding whitespace and matching quotes removed.
	Value string
}

// Quote returns the quote character Raw was written with, or "".
func (r URLRef) Quote() string {
	t := strings.TrimSpace(r.Raw)
	if len(t) >= 2 && (t[0] == '"' || t[0] == '\'') && t[len(t)-1] == t[0] {
		return t[:1]
	}
	return ""
}

// Replace returns a url() token with the same quoting pointing at target.
func (r URLRef) Replace(target string) string {
	q := r.Quote()
	return "url(" + q + target + q + ")"
}

// FindURLs returns every url(...) token in css, in order of appearance.
func FindURLs(css string) []URLRef {
	matches := urlPattern.FindAllStringSubmatch(css, -1)
	refs := make([]URLRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, URLRef{
			Token: m[0],
			Raw:   m[1],
			Value: resolver.Unquote(m[1]),
		})
	}
	return refs
}

// importRef is one @import statement and the reference it names.
type importRef struct {
	statement string
	target    string
}

// findImports returns every @import statement in css, in order.
func findImports(css string) []importRef {
	matches := importPattern.FindAllStringSubmatch(css, -1)
	refs := make([]importRef, 0, len(matches))
	for _, m := range matches {
		target := ""
		for _, g := range m[1:] {
			if g != "" {
				target = g
				break
			}
		}
		if target == "" {
			continue
		}
		refs = append(refs, importRef{statement: m[0], target: target})
	}
	return refs
}

// findFontFaceURLs returns the url() tokens inside @font-face blocks.
func findFontFaceURLs(css string) []URLRef {
	var refs []URLRef
	for _, block := range fontFacePattern.FindAllString(css, -1) {
		refs = append(refs, FindURLs(block)...)
	}
	return refs
}
