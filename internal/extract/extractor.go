package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/pagemirror/internal/fetch"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/resolver"
	"github.com/nao1215/pagemirror/internal/stylesheet"
)

// Selectors for each pass. rel values match exactly, as written.
const (
	selectorIcon         = `link[rel="icon"][href]`
	selectorShortcutIcon = `link[rel="shortcut icon"][href]`
	selectorStylesheet   = `link[rel="stylesheet"][href]`
	selectorScript       = `script[src]`
	selectorImage        = `img[src]`
	selectorAnchor       = `a[href]`
	selectorInlineStyle  = `[style]`
)

// Local path prefixes written into the page.
const (
	prefixCSS         = "css/"
	prefixScript      = "src/"
	prefixImage       = "img/"
	prefixAnchor      = "/"
	prefixInlineImage = "img/"
	prefixInlineFont  = "fonts/"
)

// faviconName is the local name of an icon found by the fallback chain.
const faviconName = "favicon.ico"

// Progress is called for every resource about to be fetched.
type Progress = stylesheet.Progress

// Extractor mirrors single pages. It holds no per-page state and may be
// reused; Extract itself issues one fetch at a time.
type Extractor struct {
	fetcher  fetch.Fetcher
	logger   *slog.Logger
	progress Progress
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for skipped resources.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithProgress sets a callback narrating each fetch.
func WithProgress(fn Progress) Option {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// New creates an Extractor fetching through f.
func New(f fetch.Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher: f,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// session is the mutable state of one Extract call.
type session struct {
	*Extractor

	ctx     context.Context //nolint:containedctx // scoped to a single Extract call
	base    *url.URL
	doc     *goquery.Document
	content string
	result  *model.PageResult
	styles  *stylesheet.Processor

	// rewritten remembers attribute values already replaced, keyed by
	// attribute name and value.
	rewritten map[string]bool
	// visited remembers references each pass has handled, keyed by
	// resource kind and value.
	visited map[string]bool
}

// Extract fetches pageURL, localises every same-origin resource it
// references and returns the rewritten page with all downloaded assets.
// depth bounds @import expansion in stylesheets.
func (e *Extractor) Extract(ctx context.Context, pageURL string, depth int) (*model.PageResult, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, pageURL)
	}

	e.notify(model.KindPage, base)
	content, err := e.fetcher.Text(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageFetch, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", base, err)
	}

	s := &session{
		Extractor: e,
		ctx:       ctx,
		base:      base,
		doc:       doc,
		content:   content,
		result:    model.NewPageResult(base.String()),
		rewritten: make(map[string]bool),
		visited:   make(map[string]bool),
	}
	s.styles = stylesheet.NewProcessor(e.fetcher,
		stylesheet.WithLogger(e.logger),
		stylesheet.WithProgress(e.progress),
		stylesheet.WithSkipHandler(func(skip model.Skip) {
			s.result.Skipped = append(s.result.Skipped, skip)
		}),
	)

	passes := []func(){
		s.iconPass,
		s.shortcutIconPass,
		func() { s.stylesheetPass(depth) },
		s.scriptPass,
		s.imagePass,
		s.anchorPass,
		s.inlineStylePass,
	}
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pass()
	}

	s.result.Content = s.content
	return s.result, nil
}

// locate resolves ref against the page and checks it is in scope.
// It records a skip and returns false otherwise.
func (s *session) locate(kind model.ResourceKind, ref string) (*url.URL, string, bool) {
	u, err := resolver.Resolve(s.base, ref)
	if err != nil {
		s.skip(kind, ref, err.Error())
		return nil, "", false
	}
	if !resolver.SameOrigin(s.base, u) {
		s.skip(kind, u.String(), "off-origin")
		return nil, "", false
	}
	name, ok := resolver.LocalName(u)
	if !ok {
		s.skip(kind, u.String(), "no file name")
		return nil, "", false
	}
	return u, name, true
}

// fetchText fetches u as text, recording a skip on failure.
func (s *session) fetchText(kind model.ResourceKind, u *url.URL) (string, bool) {
	s.notify(kind, u)
	text, err := s.fetcher.Text(s.ctx, u)
	if err != nil {
		s.skip(kind, u.String(), err.Error())
		return "", false
	}
	return text, true
}

// fetchBytes fetches u as bytes, recording a skip on failure.
func (s *session) fetchBytes(kind model.ResourceKind, u *url.URL) ([]byte, bool) {
	s.notify(kind, u)
	data, err := s.fetcher.Bytes(s.ctx, u)
	if err != nil {
		s.skip(kind, u.String(), err.Error())
		return nil, false
	}
	return data, true
}

// rewrite replaces an attribute value with its local path once per
// distinct (attribute, value) pair.
func (s *session) rewrite(attr, value, replacement string) {
	key := attr + "\x00" + value
	if s.rewritten[key] {
		return
	}
	s.rewritten[key] = true

	var n int
	s.content, n = rewriteAttr(s.content, attr, value, replacement)
	if n == 0 {
		s.logger.Debug("attribute value not found in page text", "attr", attr, "value", value)
	}
}

// visit marks ref as handled by the pass for kind. It returns false when
// that pass has already seen ref.
func (s *session) visit(kind model.ResourceKind, ref string) bool {
	key := string(kind) + "\x00" + ref
	if s.visited[key] {
		return false
	}
	s.visited[key] = true
	return true
}

// fetchMode says how an element pass retrieves its resource.
type fetchMode int

const (
	fetchNone fetchMode = iota
	fetchAsText
	fetchAsBytes
)

// elementPass describes one attribute-driven pass.
type elementPass struct {
	selector string
	attr     string
	prefix   string
	kind     model.ResourceKind
	mode     fetchMode
}

// fetched is what an element pass retrieved for one reference.
type fetched struct {
	url  *url.URL
	name string
	text string
	data []byte
}

// runElementPass is the shared resolve, scope check, fetch, rewrite and
// record loop behind the script, image and anchor passes.
func (s *session) runElementPass(p elementPass, record func(fetched)) {
	s.doc.Find(p.selector).Each(func(_ int, sel *goquery.Selection) {
		ref, _ := sel.Attr(p.attr)
		if p.kind == model.KindAnchor && strings.HasPrefix(ref, "#") {
			return
		}
		if !s.visit(p.kind, ref) {
			return
		}

		u, name, ok := s.locate(p.kind, ref)
		if !ok {
			return
		}

		f := fetched{url: u, name: name}
		switch p.mode {
		case fetchAsText:
			if f.text, ok = s.fetchText(p.kind, u); !ok {
				return
			}
		case fetchAsBytes:
			if f.data, ok = s.fetchBytes(p.kind, u); !ok {
				return
			}
		case fetchNone:
		}

		s.rewrite(p.attr, ref, p.prefix+name)
		record(f)
	})
}

func (s *session) iconPass() {
	link := s.doc.Find(selectorIcon).First()
	href, hasLink := link.Attr("href")

	type candidate struct {
		url  *url.URL
		name string
	}
	var candidates []candidate

	// The favicon.ico fallbacks only apply to pages without an icon link.
	if hasLink {
		if u, name, ok := s.locate(model.KindIcon, href); ok {
			candidates = append(candidates, candidate{u, name})
		}
	} else {
		if u, err := resolver.Resolve(s.base, faviconName); err == nil {
			candidates = append(candidates, candidate{u, faviconName})
		}
		if u, err := url.Parse(originFavicon(s.base)); err == nil {
			candidates = append(candidates, candidate{u, faviconName})
		}
	}

	tried := make(map[string]bool)
	for _, c := range candidates {
		if tried[c.url.String()] {
			continue
		}
		tried[c.url.String()] = true

		data, ok := s.fetchBytes(model.KindIcon, c.url)
		if !ok {
			continue
		}
		if hasLink {
			s.rewrite("href", href, c.name)
		}
		s.result.Icon = &model.BinaryAsset{Name: c.name, Content: data}
		return
	}
}

// originFavicon returns <scheme>://<host>:<port>/favicon.ico with the
// scheme's default port filled in.
func originFavicon(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return u.Scheme + "://" + net.JoinHostPort(u.Hostname(), port) + "/" + faviconName
}

func (s *session) shortcutIconPass() {
	link := s.doc.Find(selectorShortcutIcon).First()
	href, ok := link.Attr("href")
	if !ok {
		return
	}
	u, name, ok := s.locate(model.KindShortcutIcon, href)
	if !ok {
		return
	}
	data, ok := s.fetchBytes(model.KindShortcutIcon, u)
	if !ok {
		return
	}
	s.rewrite("href", href, name)
	s.result.ShortcutIcon = &model.BinaryAsset{Name: name, Content: data}
}

func (s *session) stylesheetPass(depth int) {
	s.doc.Find(selectorStylesheet).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !s.visit(model.KindStylesheet, href) {
			return
		}
		u, name, ok := s.locate(model.KindStylesheet, href)
		if !ok {
			return
		}

		root, err := s.styles.Resolve(s.ctx, u, depth)
		if err != nil {
			s.skip(model.KindStylesheet, u.String(), err.Error())
			return
		}

		for _, node := range model.Flatten(root) {
			s.result.Fonts = append(s.result.Fonts, node.Fonts...)
			s.result.Stylesheets = append(s.result.Stylesheets, model.TextAsset{
				Name:    node.Name,
				Content: node.Content,
			})
		}
		s.rewrite("href", href, prefixCSS+name)
	})
}

func (s *session) scriptPass() {
	p := elementPass{selector: selectorScript, attr: "src", prefix: prefixScript, kind: model.KindScript, mode: fetchAsText}
	s.runElementPass(p, func(f fetched) {
		s.result.Scripts = append(s.result.Scripts, model.TextAsset{Name: f.name, Content: f.text})
	})
}

func (s *session) imagePass() {
	p := elementPass{selector: selectorImage, attr: "src", prefix: prefixImage, kind: model.KindImage, mode: fetchAsBytes}
	s.runElementPass(p, func(f fetched) {
		s.result.Images = append(s.result.Images, model.BinaryAsset{Name: f.name, Content: f.data})
	})
}

// anchorPass rewrites same-origin links without fetching them.
func (s *session) anchorPass() {
	p := elementPass{selector: selectorAnchor, attr: "href", prefix: prefixAnchor, kind: model.KindAnchor, mode: fetchNone}
	s.runElementPass(p, func(f fetched) {
		s.result.Anchors = append(s.result.Anchors, model.Anchor{URL: f.url.String(), Name: f.name})
	})
}

func (s *session) inlineStylePass() {
	done := make(map[string]bool)

	s.doc.Find(selectorInlineStyle).Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		for _, ref := range stylesheet.FindURLs(style) {
			if done[ref.Token] {
				continue
			}
			s.inlineReference(ref)
			done[ref.Token] = true
		}
	})
}

// inlineReference localises one url() found in a style attribute.
// Only image and font extensions are fetched.
func (s *session) inlineReference(ref stylesheet.URLRef) {
	u, name, ok := s.locate(model.KindInlineStyle, ref.Value)
	if !ok {
		return
	}
	if _, hasExt := resolver.Extension(name); !hasExt {
		s.skip(model.KindInlineStyle, u.String(), "no extension")
		return
	}

	var prefix string
	var kind model.ResourceKind
	switch resolver.Classify(name) {
	case resolver.ClassImage:
		prefix, kind = prefixInlineImage, model.KindImage
	case resolver.ClassFont:
		prefix, kind = prefixInlineFont, model.KindFont
	default:
		return
	}

	data, ok := s.fetchBytes(kind, u)
	if !ok {
		return
	}

	s.content, _ = rewriteInStyleAttrs(s.content, ref.Token, ref.Replace(prefix+name))
	asset := model.BinaryAsset{Name: name, Content: data}
	if kind == model.KindImage {
		s.result.Images = append(s.result.Images, asset)
	} else {
		s.result.Fonts = append(s.result.Fonts, asset)
	}
}

func (e *Extractor) notify(kind model.ResourceKind, u *url.URL) {
	if e.progress != nil {
		e.progress(kind, u)
	}
}

func (s *session) skip(kind model.ResourceKind, ref, reason string) {
	s.logger.Debug("skipping resource", "kind", string(kind), "reference", ref, "reason", reason)
	s.result.AddSkip(kind, ref, reason)
}
