package extract

import "testing"

// TestRewriteAttr tests attribute-scoped literal replacement.
func TestRewriteAttr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		attr    string
		value   string
		repl    string
		want    string
		wantN   int
	}{
		{
			name:    "double quoted",
			content: `<img src="a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src="img/a.png">`,
			wantN: 1,
		},
		{
			name:    "single quoted",
			content: `<img src='a.png'>`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src='img/a.png'>`,
			wantN: 1,
		},
		{
			name:    "unquoted before end of tag",
			content: `<img src=a.png>`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src=img/a.png>`,
			wantN: 1,
		},
		{
			name:    "unquoted self closing",
			content: `<img src=a.png/>`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src=img/a.png/>`,
			wantN: 1,
		},
		{
			name:    "spaces and upper case attribute",
			content: `<IMG SRC = "a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<IMG SRC = "img/a.png">`,
			wantN: 1,
		},
		{
			name:    "every occurrence",
			content: `<img src="a.png"><img src="a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src="img/a.png"><img src="img/a.png">`,
			wantN: 2,
		},
		{
			name:    "visible text untouched",
			content: `<p>a.png</p><img src="a.png" alt="a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<p>a.png</p><img src="img/a.png" alt="a.png">`,
			wantN: 1,
		},
		{
			name:    "prefix of a longer value untouched",
			content: `<img src="a.png.bak"><img src="a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src="a.png.bak"><img src="img/a.png">`,
			wantN: 1,
		},
		{
			name:    "other attribute with same suffix",
			content: `<img data-src="a.png" src="a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img data-src="a.png" src="img/a.png">`,
			wantN: 1,
		},
		{
			name:    "escaped ampersand",
			content: `<script src="app.js?a=1&amp;b=2"></script>`,
			attr:    "src", value: "app.js?a=1&b=2", repl: "src/app.js?a=1&b=2",
			want:  `<script src="src/app.js?a=1&b=2"></script>`,
			wantN: 1,
		},
		{
			name:    "dollar in replacement",
			content: `<a href="x">`,
			attr:    "href", value: "x", repl: "/$1",
			want:  `<a href="/$1">`,
			wantN: 1,
		},
		{
			name:    "value case is significant",
			content: `<img src="a.png"><img src="A.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src="img/a.png"><img src="A.png">`,
			wantN: 1,
		},
		{
			name:    "assignment text inside another value",
			content: `<img alt="x src=a.png" src="a.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img alt="x src=a.png" src="img/a.png">`,
			wantN: 1,
		},
		{
			name:    "not found",
			content: `<img src="b.png">`,
			attr:    "src", value: "a.png", repl: "img/a.png",
			want:  `<img src="b.png">`,
			wantN: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, n := rewriteAttr(tt.content, tt.attr, tt.value, tt.repl)
			if got != tt.want {
				t.Errorf("got %q, expected %q", got, tt.want)
			}
			if n != tt.wantN {
				t.Errorf("got %d replacements, expected %d", n, tt.wantN)
			}
		})
	}
}

// TestRewriteInStyleAttrs tests url() replacement scoped to style attributes.
func TestRewriteInStyleAttrs(t *testing.T) {
	t.Parallel()

	content := `<div style="background:url('i.png')"></div><style>.x{background:url('i.png')}</style>`
	got, n := rewriteInStyleAttrs(content, `url('i.png')`, `url('img/i.png')`)

	want := `<div style="background:url('img/i.png')"></div><style>.x{background:url('i.png')}</style>`
	if got != want {
		t.Errorf("got %q, expected %q", got, want)
	}
	if n != 1 {
		t.Errorf("got %d replacements, expected 1", n)
	}
}
