package resolver

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestResolve tests reference resolution against a base URL.
func TestResolve(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "http://ex.com/dir/page.html")

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"relative file", "s.css", "http://ex.com/dir/s.css"},
		{"parent directory", "../img/a.png", "http://ex.com/img/a.png"},
		{"root relative", "/favicon.ico", "http://ex.com/favicon.ico"},
		{"protocol relative", "//cdn.ex.com/x.js", "http://cdn.ex.com/x.js"},
		{"absolute", "https://other.com/a.png", "https://other.com/a.png"},
		{"surrounding whitespace", "  s.css\n", "http://ex.com/dir/s.css"},
		{"query kept", "a.css?v=2", "http://ex.com/dir/a.css?v=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(base, tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %q, expected %q", got.String(), tt.want)
			}
		})
	}

	t.Run("malformed reference", func(t *testing.T) {
		t.Parallel()

		_, err := Resolve(base, "http://[::1")
		if !errors.Is(err, ErrResolve) {
			t.Errorf("expected ErrResolve, got %v", err)
		}
	})

	t.Run("empty reference", func(t *testing.T) {
		t.Parallel()

		_, err := Resolve(base, "   ")
		if !errors.Is(err, ErrResolve) {
			t.Errorf("expected ErrResolve, got %v", err)
		}
	})

	t.Run("nil base", func(t *testing.T) {
		t.Parallel()

		if _, err := Resolve(nil, "a.css"); !errors.Is(err, ErrResolve) {
			t.Errorf("expected ErrResolve, got %v", err)
		}
	})
}

// TestResolveString tests the string convenience wrapper.
func TestResolveString(t *testing.T) {
	t.Parallel()

	got, err := ResolveString("http://ex.com/", "favicon.ico")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "http://ex.com/favicon.ico" {
		t.Errorf("got %q", got.String())
	}

	if _, err := ResolveString("http://[::1", "a"); !errors.Is(err, ErrResolve) {
		t.Errorf("expected ErrResolve, got %v", err)
	}
}

// TestLocalName tests file name derivation.
func TestLocalName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{"simple file", "http://ex.com/a/b/s.css", "s.css", true},
		{"root file", "http://ex.com/favicon.ico", "favicon.ico", true},
		{"query included", "http://ex.com/a.css?v=2", "a.css?v=2", true},
		{"directory", "http://ex.com/dir/", "", false},
		{"root slash", "http://ex.com/", "", false},
		{"no path", "http://ex.com", "", false},
		{"page without extension", "http://ex.com/about", "about", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := LocalName(mustParse(t, tt.url))
			if ok != tt.wantOK {
				t.Fatalf("got ok=%v, expected %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %q, expected %q", got, tt.want)
			}
		})
	}

	t.Run("opaque URL", func(t *testing.T) {
		t.Parallel()

		if _, ok := LocalName(mustParse(t, "mailto:a@ex.com")); ok {
			t.Error("expected no local name for opaque URL")
		}
	})
}

// TestSameOrigin tests host-only scope comparison.
func TestSameOrigin(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://ex.com:8443/")

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"same host", "https://ex.com/a.png", true},
		{"different scheme", "http://ex.com/a.png", true},
		{"different port", "https://ex.com:9000/a.png", true},
		{"different host", "https://other.com/a.png", false},
		{"subdomain", "https://cdn.ex.com/a.png", false},
		{"data URL", "data:image/png;base64,AAAA", false},
		{"mailto", "mailto:me@ex.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SameOrigin(base, mustParse(t, tt.url)); got != tt.want {
				t.Errorf("got %v, expected %v", got, tt.want)
			}
		})
	}

	t.Run("nil URLs", func(t *testing.T) {
		t.Parallel()

		if SameOrigin(nil, base) || SameOrigin(base, nil) {
			t.Error("expected false for nil URLs")
		}
	})
}

// TestClassify tests the extension classification table.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Class
	}{
		{"a.png", ClassImage},
		{"a.jpg", ClassImage},
		{"a.jpeg", ClassImage},
		{"a.webp", ClassImage},
		{"a.gif", ClassImage},
		{"a.svg", ClassImage},
		{"f.ttf", ClassFont},
		{"f.eot", ClassFont},
		{"f.woff", ClassFont},
		{"f.woff2", ClassFont},
		{"s.css", ClassOther},
		{"x.js", ClassOther},
		{"a.PNG", ClassOther},
		{"noextension", ClassOther},
		{"archive.tar.gz", ClassOther},
		{"a.png?v=1", ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %v, expected %v", tt.name, got, tt.want)
			}
		})
	}
}

// TestExtension tests extension extraction.
func TestExtension(t *testing.T) {
	t.Parallel()

	if ext, ok := Extension("a.b.woff2"); !ok || ext != "woff2" {
		t.Errorf("got %q %v", ext, ok)
	}
	if _, ok := Extension("README"); ok {
		t.Error("expected no extension")
	}
	if ext, ok := Extension("trailing."); !ok || ext != "" {
		t.Errorf("got %q %v", ext, ok)
	}
}

// TestClassString tests class names.
func TestClassString(t *testing.T) {
	t.Parallel()

	if ClassImage.String() != "image" || ClassFont.String() != "font" || ClassOther.String() != "other" {
		t.Error("unexpected class names")
	}
}

// TestUnquoteAndStrip tests reference cleanup helpers.
func TestUnquoteAndStrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`"a.woff"`, "a.woff"},
		{`'a.woff'`, "a.woff"},
		{` a.woff `, "a.woff"},
		{`"a.woff'`, `"a.woff'`},
		{`""`, ""},
	}
	for _, tt := range tests {
		if got := Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}

	if got := StripQueryAndFragment("f.eot?#iefix"); got != "f.eot" {
		t.Errorf("got %q", got)
	}
	if got := StripQueryAndFragment("f.svg#font"); got != "f.svg" {
		t.Errorf("got %q", got)
	}
	if got := StripQueryAndFragment("f.woff"); got != "f.woff" {
		t.Errorf("got %q", got)
	}
}
