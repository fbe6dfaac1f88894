// Package document owns parsed HTML documents and the tree editing needed to
// replace stylesheet links with inlined styles.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when tree operation anchor is not part of the
// document anymore.
var ErrDetached = errors.New("node is not attached to the document")

// Document is a mutable HTML tree of a single file. Tree edits anchored on
// link elements are also recorded against source markup, so unchanged parts
// of the file survive byte for byte.
type Document struct {
	root  *html.Node
	src   []byte
	spans map[*html.Node]span
	edits []edit
	// set when some edit could not be expressed on source bytes
	rerender bool
}

// Parse builds document tree from markup.
func Parse(data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse html: %w", err)
	}
	return &Document{root: root, src: data, spans: locateLinks(data, root)}, nil
}

// Root returns document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Render serializes the whole document tree.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Bytes returns document markup: source with recorded edits spliced in or,
// when edits could not be mapped to the source, rendered tree.
func (d *Document) Bytes() ([]byte, error) {
	if !d.rerender && d.src != nil {
		return splice(d.src, d.edits), nil
	}
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Attached reports whether node belongs to the document tree.
func (d *Document) Attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

// InsertBefore inserts node as previous sibling of anchor.
func (d *Document) InsertBefore(anchor, n *html.Node) error {
	if anchor == d.root || !d.Attached(anchor) {
		return ErrDetached
	}
	anchor.Parent.InsertBefore(n, anchor)
	d.recordInsert(anchor, n, false)
	return nil
}

// InsertAfter inserts node as next sibling of anchor.
func (d *Document) InsertAfter(anchor, n *html.Node) error {
	if anchor == d.root || !d.Attached(anchor) {
		return ErrDetached
	}
	// nil next sibling means append
	anchor.Parent.InsertBefore(n, anchor.NextSibling)
	d.recordInsert(anchor, n, true)
	return nil
}

// Remove detaches node from the document.
func (d *Document) Remove(n *html.Node) error {
	if n == d.root || !d.Attached(n) {
		return ErrDetached
	}
	n.Parent.RemoveChild(n)
	d.recordRemove(n)
	return nil
}

// Attr returns value of the attribute. Attribute names are lower-cased by the
// parser.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Href returns trimmed href attribute.
func Href(n *html.Node) string {
	v, _ := Attr(n, "href")
	return strings.TrimSpace(v)
}

// Rel returns lower-cased link types.
func Rel(n *html.Node) []string {
	v, _ := Attr(n, "rel")
	return strings.Fields(strings.ToLower(v))
}

// Classes returns element classes.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// Media returns lower-cased media attribute.
func Media(n *html.Node) string {
	v, _ := Attr(n, "media")
	return strings.ToLower(strings.TrimSpace(v))
}

// HasClass reports whether element carries the class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

// NewStyle creates <style> element with given text.
func NewStyle(text string) *html.Node {
	style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return style
}

// NewFallbackLink creates stylesheet link which does not block rendering: it
// is declared for print and switches itself to all media once loaded.
func NewFallbackLink(href string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Link,
		Data:     "link",
		Attr: []html.Attribute{
			{Key: "rel", Val: "stylesheet"},
			{Key: "href", Val: href},
			{Key: "media", Val: "print"},
			{Key: "onload", Val: "this.media='all';this.onload=null;"},
		},
	}
}
