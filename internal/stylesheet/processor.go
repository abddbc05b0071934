package stylesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/pagemirror/internal/fetch"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/resolver"
)

// fontDir is the path from the css directory to the font directory.
const fontDir = "../font/"

// ErrNoLocalName is returned when a stylesheet URL has no file name.
var ErrNoLocalName = errors.New("stylesheet URL has no file name")

// Progress is called for every resource about to be fetched.
type Progress func(kind model.ResourceKind, u *url.URL)

// Processor resolves stylesheets into trees of StylesheetNodes.
// Fetches are issued one at a time in document order.
type Processor struct {
	fetcher  fetch.Fetcher
	logger   *slog.Logger
	progress Progress
	onSkip   func(model.Skip)
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger for skipped fonts and imports.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithProgress sets a callback invoked before each stylesheet or font fetch.
func WithProgress(fn Progress) ProcessorOption {
	return func(p *Processor) {
		p.progress = fn
	}
}

// WithSkipHandler sets a callback receiving every skipped font or import.
func WithSkipHandler(fn func(model.Skip)) ProcessorOption {
	return func(p *Processor) {
		p.onSkip = fn
	}
}

// NewProcessor creates a Processor fetching through f.
func NewProcessor(f fetch.Fetcher, opts ...ProcessorOption) *Processor {
	p := &Processor{
		fetcher: f,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve fetches the stylesheet at u, downloads the fonts its @font-face
// blocks reference and, while depth is positive, expands same-origin
// @import statements with depth-1.
//
// Only a failure to fetch u itself is returned as an error. Failed fonts
// and imports are skipped and their text is left untouched.
func (p *Processor) Resolve(ctx context.Context, u *url.URL, depth int) (*model.StylesheetNode, error) {
	name, ok := resolver.LocalName(u)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLocalName, u)
	}

	p.notify(model.KindStylesheet, u)
	css, err := p.fetcher.Text(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stylesheet %s: %w", u, err)
	}

	node := &model.StylesheetNode{
		Name:  name,
		Fonts: make([]model.BinaryAsset, 0),
	}

	css = p.localiseFonts(ctx, u, css, node)
	if depth > 0 {
		css = p.expandImports(ctx, u, css, depth, node)
	}

	node.Content = css
	return node, nil
}

// localiseFonts downloads every @font-face source and points it at ../font/.
func (p *Processor) localiseFonts(ctx context.Context, base *url.URL, css string, node *model.StylesheetNode) string {
	done := make(map[string]bool)

	for _, ref := range findFontFaceURLs(css) {
		if done[ref.Value] {
			continue
		}
		done[ref.Value] = true

		fontURL, err := resolver.Resolve(base, resolver.StripQueryAndFragment(ref.Value))
		if err != nil {
			p.skip(model.KindFont, ref.Value, err.Error())
			continue
		}
		name, ok := resolver.LocalName(fontURL)
		if !ok {
			p.skip(model.KindFont, fontURL.String(), "no file name")
			continue
		}

		p.notify(model.KindFont, fontURL)
		content, err := p.fetcher.Bytes(ctx, fontURL)
		if err != nil {
			p.skip(model.KindFont, fontURL.String(), err.Error())
			continue
		}

		node.Fonts = append(node.Fonts, model.BinaryAsset{Name: name, Content: content})
		css = rewriteURLValue(css, ref.Value, fontDir+name)
	}

	return css
}

// expandImports resolves @import statements one level down.
func (p *Processor) expandImports(ctx context.Context, base *url.URL, css string, depth int, node *model.StylesheetNode) string {
	for _, imp := range findImports(css) {
		if !strings.Contains(css, imp.statement) {
			// an identical statement was already expanded
			continue
		}
		target, err := resolver.Resolve(base, imp.target)
		if err != nil {
			p.skip(model.KindStylesheet, imp.target, err.Error())
			continue
		}
		if !resolver.SameOrigin(base, target) {
			p.skip(model.KindStylesheet, target.String(), "off-origin")
			continue
		}
		if target.Path == base.Path {
			p.logger.Debug("ignoring self import", "url", target.String())
			continue
		}

		child, err := p.Resolve(ctx, target, depth-1)
		if err != nil {
			p.skip(model.KindStylesheet, target.String(), err.Error())
			continue
		}

		css = strings.ReplaceAll(css, imp.statement, child.Name)
		node.Imports = append(node.Imports, child)
	}
	return css
}

// rewriteURLValue replaces every url() token whose unquoted argument is
// value with a token pointing at target, keeping the original quoting.
// Plain text that merely contains value is left alone.
func rewriteURLValue(css, value, target string) string {
	return urlPattern.ReplaceAllStringFunc(css, func(token string) string {
		m := urlPattern.FindStringSubmatch(token)
		ref := URLRef{Token: token, Raw: m[1], Value: resolver.Unquote(m[1])}
		if ref.Value != value {
			return token
		}
		return ref.Replace(target)
	})
}

func (p *Processor) notify(kind model.ResourceKind, u *url.URL) {
	if p.progress != nil {
		p.progress(kind, u)
	}
}

func (p *Processor) skip(kind model.ResourceKind, ref, reason string) {
	p.logger.Debug("skipping stylesheet reference", "kind", string(kind), "reference", ref, "reason", reason)
	if p.onSkip != nil {
		p.onSkip(model.Skip{Kind: kind, Reference: ref, Reason: reason})
	}
}
