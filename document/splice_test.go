package document

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"dropcss/config"
)

func render(t *testing.T, n *html.Node) string {
	t.Helper()
	var buf strings.Builder
	if err := html.Render(&buf, n); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestBytes_Unchanged(t *testing.T) {
	const markup = `<!DOCTYPE html><html lang=en><head><link rel=stylesheet href=a.css></head><body><p class='x'>&copy;</p></body></html>`
	doc := mustParse(t, markup)
	data, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != markup {
		t.Errorf("Bytes() = %q, want source as is", data)
	}
}

func TestBytes_PreservesSource(t *testing.T) {
	const (
		link   = `<link rel=stylesheet href=site.css>`
		markup = "<!doctype html>\n<html lang=en><head>" + link + "\n<title>t</title></head>" +
			"<body><p class='used' data-x=a>&copy; 2024&nbsp;x<br/></p></body></html>"
	)

	tests := []struct {
		name string
		fb   Fallback
		tail string
	}{
		{"none", Fallback{Mode: config.FallbackModeNone}, ""},
		{"original", Fallback{Mode: config.FallbackModeOriginal}, "site.css"},
		{"override", Fallback{Mode: config.FallbackModeOverride, Href: "/all.css"}, "/all.css"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, markup)
			units := doc.Units(config.ScanModeHead, "")
			if len(units) != 1 {
				t.Fatalf("expected one unit, got %d", len(units))
			}
			if err := doc.Rewrite(units[0].References, ".used{color:red}", tt.fb); err != nil {
				t.Fatal(err)
			}

			replacement := "<style>.used{color:red}</style>"
			if tt.tail != "" {
				replacement += render(t, NewFallbackLink(tt.tail))
			}
			want := strings.Replace(markup, link, replacement, 1)

			data, err := doc.Bytes()
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != want {
				t.Errorf("Bytes() =\n%s\nwant\n%s", data, want)
			}
		})
	}
}

func TestBytes_AdjacentLinks(t *testing.T) {
	const markup = `<head><LINK REL="stylesheet" HREF="a.css"/><link rel='stylesheet' href='b.css'></head><body><P>x</P></body>`
	doc := mustParse(t, markup)
	units := doc.Units(config.ScanModeHead, "")
	if len(units) != 1 {
		t.Fatalf("expected one unit, got %d", len(units))
	}
	if err := doc.Rewrite(units[0].References, ".p{}", Fallback{Mode: config.FallbackModeOriginal}); err != nil {
		t.Fatal(err)
	}

	want := `<head><style>.p{}</style>` + render(t, NewFallbackLink("a.css")) + render(t, NewFallbackLink("b.css")) +
		`</head><body><P>x</P></body>`
	data, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("Bytes() =\n%s\nwant\n%s", data, want)
	}
}

func TestBytes_Template(t *testing.T) {
	const markup = `<body class=b><template><link class="drop-inline-css" rel=stylesheet href=t.css><p class=a></p></template></body>`
	doc := mustParse(t, markup)
	units := doc.Units(config.ScanModeScoped, "drop-inline-css")
	if len(units) != 1 {
		t.Fatalf("expected one unit, got %d", len(units))
	}
	if err := doc.Rewrite(units[0].References, ".a{}", Fallback{Mode: config.FallbackModeNone}); err != nil {
		t.Fatal(err)
	}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := `<body class=b><template><style>.a{}</style><p class=a></p></template></body>`
	if string(data) != want {
		t.Errorf("Bytes() = %q, want %q", data, want)
	}
}

func TestBytes_Rerender(t *testing.T) {
	doc := mustParse(t, `<html lang=en><head><title>t</title></head><body></body></html>`)
	title := find(doc.Root(), atom.Title)
	if err := doc.InsertBefore(title, NewStyle(".x{}")); err != nil {
		t.Fatal(err)
	}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`<head><style>.x{}</style><title>t</title>`)) {
		t.Errorf("edit not anchored on a link must be rendered from tree: %q", data)
	}
}

func TestLocateLinks(t *testing.T) {
	const markup = `<html><head><Link Href=" a.css "></head>` +
		`<body><template><link href=t.css></template><svg><link href="s.css"/></svg>` +
		`<script>document.write('<link href=x.css>')</script></body></html>`

	doc := mustParse(t, markup)
	if len(doc.spans) != 3 {
		t.Fatalf("expected 3 located links, got %d", len(doc.spans))
	}
	for n, s := range doc.spans {
		raw := markup[s.start:s.end]
		if !strings.HasPrefix(strings.ToLower(raw), "<link") || !strings.HasSuffix(raw, ">") {
			t.Errorf("span of %s covers %q", Href(n), raw)
		}
		if !strings.Contains(raw, Href(n)) {
			t.Errorf("span of %s covers %q", Href(n), raw)
		}
	}
}

func TestLocateLinks_Disagreement(t *testing.T) {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Link, Data: "link",
		Attr: []html.Attribute{{Key: "href", Val: "other.css"}}})

	if spans := locateLinks([]byte(`<link href="a.css">`), root); spans != nil {
		t.Errorf("href mismatch must disable source mapping, got %v", spans)
	}
	if spans := locateLinks([]byte(`<link href="other.css"><link href="b.css">`), root); spans != nil {
		t.Errorf("count mismatch must disable source mapping, got %v", spans)
	}
}
