package extract

import (
	"html"
	"regexp"
	"slices"
	"strings"
)

// attrPattern matches one attribute assignment. Group 2 is the name and
// group 4 the raw value with its quotes, if any.
var attrPattern = regexp.MustCompile(`(\s)([^\s"'<>/=]+)(\s*=\s*)("[^"]*"|'[^']*'|[^\s"'<>=` + "`" + `]+)`)

// styleAttrPattern matches a quoted style attribute. Group 2 is the value
// including its quotes.
var styleAttrPattern = regexp.MustCompile(`(?is)(\sstyle\s*=\s*)("[^"]*"|'[^']*')`)

// valueVariants returns value and, when different, its HTML-escaped form.
// Attribute values come back unescaped from the parser while the raw page
// text may carry entities.
func valueVariants(value string) []string {
	variants := []string{value}
	if escaped := html.EscapeString(value); escaped != value {
		variants = append(variants, escaped)
	}
	if amp := strings.ReplaceAll(value, "&", "&amp;"); amp != value && amp != variants[len(variants)-1] {
		variants = append(variants, amp)
	}
	return variants
}

// rewriteAttr replaces value with replacement wherever it is the whole
// value of attribute attr in content. Double quoted, single quoted and
// unquoted attributes are handled; the original quoting is kept.
// Attribute names match case-insensitively, values match exactly.
// It returns the new content and the number of replacements.
func rewriteAttr(content, attr, value, replacement string) (string, int) {
	if value == "" {
		return content, 0
	}

	variants := valueVariants(value)
	var sb strings.Builder
	last, total := 0, 0

	for _, m := range attrPattern.FindAllStringSubmatchIndex(content, -1) {
		if !strings.EqualFold(content[m[4]:m[5]], attr) {
			continue
		}
		replaced, ok := replaceAttrValue(content[m[8]:m[9]], variants, replacement)
		if !ok {
			continue
		}
		sb.WriteString(content[last:m[8]])
		sb.WriteString(replaced)
		last = m[9]
		total++
	}

	if total == 0 {
		return content, 0
	}
	sb.WriteString(content[last:])
	return sb.String(), total
}

// replaceAttrValue swaps a raw attribute value for replacement when its
// unquoted form is one of variants.
func replaceAttrValue(raw string, variants []string, replacement string) (string, bool) {
	quote, inner, trailer := "", raw, ""
	if raw[0] == '"' || raw[0] == '\'' {
		quote, inner = raw[:1], raw[1:len(raw)-1]
	}
	// <img src=a.png/> keeps the self-closing slash outside the value.
	if quote == "" && strings.HasSuffix(inner, "/") && !slices.Contains(variants, inner) {
		inner, trailer = strings.TrimSuffix(inner, "/"), "/"
	}
	if !slices.Contains(variants, inner) {
		return "", false
	}
	return quote + replacement + quote + trailer, true
}

// rewriteInStyleAttrs replaces token with replacement inside style
// attribute values only.
func rewriteInStyleAttrs(content, token, replacement string) (string, int) {
	total := 0
	for _, v := range valueVariants(token) {
		escapedRepl := replacement
		if v != token {
			escapedRepl = html.EscapeString(replacement)
		}
		content = styleAttrPattern.ReplaceAllStringFunc(content, func(m string) string {
			n := strings.Count(m, v)
			if n == 0 {
				return m
			}
			total += n
			return strings.ReplaceAll(m, v, escapedRepl)
		})
	}
	return content, total
}
