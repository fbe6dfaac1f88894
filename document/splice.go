package document

import (
	"bytes"
	"cmp"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// span is byte range of a start tag in source markup.
type span struct {
	start, end int
}

// edit replaces source bytes [start, end) with text. Empty range is an
// insertion.
type edit struct {
	start, end int
	text       string
}

// locateLinks maps link elements of the parsed tree to their start tags in
// source. Tokenizer and tree must agree on every link (count, order and
// href), otherwise nil is returned and edits fall back to rendering.
func locateLinks(src []byte, root *html.Node) map[*html.Node]span {
	type tag struct {
		span
		href string
	}

	var tags []tag
	z := html.NewTokenizer(bytes.NewReader(src))
	for offset := 0; ; {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		// TagName may modify raw buffer
		size := len(z.Raw())
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if name, more := z.TagName(); string(name) == "link" {
				t := tag{span: span{start: offset, end: offset + size}}
				for more {
					var key, val []byte
					key, val, more = z.TagAttr()
					if string(key) == "href" {
						t.href = strings.TrimSpace(string(val))
						break
					}
				}
				tags = append(tags, t)
			}
		}
		offset += size
	}

	var links []*html.Node
	walk(root, true, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			links = append(links, n)
		}
	})
	if len(links) != len(tags) {
		return nil
	}

	spans := make(map[*html.Node]span, len(links))
	for i, n := range links {
		if Href(n) != tags[i].href {
			return nil
		}
		spans[n] = tags[i].span
	}
	return spans
}

func (d *Document) recordInsert(anchor, n *html.Node, after bool) {
	s, ok := d.spans[anchor]
	if !ok {
		d.rerender = true
		return
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		d.rerender = true
		return
	}
	pos := s.start
	if after {
		pos = s.end
	}
	d.edits = append(d.edits, edit{start: pos, end: pos, text: buf.String()})
}

func (d *Document) recordRemove(n *html.Node) {
	s, ok := d.spans[n]
	if !ok {
		d.rerender = true
		return
	}
	delete(d.spans, n)
	d.edits = append(d.edits, edit{start: s.start, end: s.end})
}

// splice applies edits to src. Edits at the same position keep the order
// they were recorded in.
func splice(src []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return src
	}
	edits = slices.Clone(edits)
	slices.SortStableFunc(edits, func(a, b edit) int {
		return cmp.Compare(a.start, b.start)
	})

	out := make([]byte, 0, len(src))
	cursor := 0
	for _, e := range edits {
		if e.start > cursor {
			out = append(out, src[cursor:e.start]...)
		}
		out = append(out, e.text...)
		cursor = max(cursor, e.end)
	}
	return append(out, src[cursor:]...)
}
