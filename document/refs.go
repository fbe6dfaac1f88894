package document

import (
	"slices"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"dropcss/config"
)

// Kind tells how referenced stylesheet is put into the document.
type Kind int

const (
	// KindReduce - stylesheet is reduced to used rules before inlining.
	KindReduce Kind = iota
	// KindInline - stylesheet is copied as is.
	KindInline
)

// Reference is a stylesheet link found in the document.
type Reference struct {
	Href string
	Node *html.Node
	Kind Kind
}

// Unit is a group of references reduced together against the same usage
// corpus and replaced by a single style element. Nil Container means the
// whole document.
type Unit struct {
	Container  *html.Node
	References []Reference
}

// Hrefs returns locators of unit references in document order.
func (u *Unit) Hrefs() []string {
	hrefs := make([]string, 0, len(u.References))
	for _, r := range u.References {
		hrefs = append(hrefs, r.Href)
	}
	return hrefs
}

// Corpus returns tree stylesheet usage is checked against. For scoped units
// it is a detached copy of container content, so selectors cannot match
// anything outside of the container, document wrappers included.
func (d *Document) Corpus(u *Unit) *html.Node {
	if u.Container == nil {
		return d.root
	}
	frag := &html.Node{Type: html.DocumentNode}
	for c := u.Container.FirstChild; c != nil; c = c.NextSibling {
		frag.AppendChild(clone(c))
	}
	return frag
}

func clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      slices.Clone(n.Attr),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(clone(ch))
	}
	return c
}

// InlineReferences returns links marked with class for as-is inlining.
func (d *Document) InlineReferences(class string) []Reference {
	if len(class) == 0 {
		return nil
	}
	var refs []Reference
	walk(d.root, true, func(n *html.Node) {
		if isElement(n, atom.Link) && HasClass(n, class) && len(Href(n)) > 0 {
			refs = append(refs, Reference{Href: Href(n), Node: n, Kind: KindInline})
		}
	})
	return refs
}

// Units finds references to reduce. In head mode there is at most one unit:
// render-blocking stylesheet links which are direct children of <head>,
// checked against the whole document. In scoped mode every <head> and
// <template> with links carrying the class makes its own unit checked against
// container markup only.
func (d *Document) Units(mode config.ScanMode, class string) []Unit {
	switch mode {
	case config.ScanModeScoped:
		return d.scopedUnits(class)
	default:
		return d.headUnits()
	}
}

func (d *Document) headUnits() []Unit {
	var refs []Reference
	walk(d.root, false, func(n *html.Node) {
		if !isElement(n, atom.Head) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isBlockingStylesheet(c) {
				refs = append(refs, Reference{Href: Href(c), Node: c, Kind: KindReduce})
			}
		}
	})
	if len(refs) == 0 {
		return nil
	}
	return []Unit{{References: refs}}
}

func isBlockingStylesheet(n *html.Node) bool {
	if !isElement(n, atom.Link) || len(Href(n)) == 0 || Media(n) == "print" {
		return false
	}
	rel := Rel(n)
	return slices.Contains(rel, "stylesheet") && !slices.Contains(rel, "alternate")
}

func (d *Document) scopedUnits(class string) []Unit {
	if len(class) == 0 {
		return nil
	}
	var units []Unit
	walk(d.root, true, func(n *html.Node) {
		if !isElement(n, atom.Head) && !isElement(n, atom.Template) {
			return
		}
		u := Unit{Container: n}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			// nested templates are units of their own
			walk(c, false, func(l *html.Node) {
				if isElement(l, atom.Link) && HasClass(l, class) && len(Href(l)) > 0 {
					u.References = append(u.References, Reference{Href: Href(l), Node: l, Kind: KindReduce})
				}
			})
		}
		if len(u.References) > 0 {
			units = append(units, u)
		}
	})
	return units
}

// walk visits nodes in document order. Unless intoTemplates is set it does
// not descend into <template> elements (the element itself is visited).
func walk(n *html.Node, intoTemplates bool, fn func(*html.Node)) {
	fn(n)
	if !intoTemplates && isElement(n, atom.Template) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, intoTemplates, fn)
	}
}

// Fallback describes what replaces links after their stylesheets were
// inlined.
type Fallback struct {
	Mode config.FallbackMode
	// Href is used in override mode instead of original link target.
	Href string
}

// Rewrite puts style element with css before the first reference and removes
// all references, replacing them with non-blocking links when fallback
// requires it.
func (d *Document) Rewrite(refs []Reference, css string, fb Fallback) error {
	if len(refs) == 0 {
		return nil
	}
	if err := d.InsertBefore(refs[0].Node, NewStyle(css)); err != nil {
		return err
	}
	for _, ref := range refs {
		if fb.Mode.KeepsLink() {
			href := ref.Href
			if fb.Mode == config.FallbackModeOverride {
				href = fb.Href
			}
			if err := d.InsertAfter(ref.Node, NewFallbackLink(href)); err != nil {
				return err
			}
		}
		if err := d.Remove(ref.Node); err != nil {
			return err
		}
	}
	return nil
}

// Inline replaces a single link with style element containing css.
func (d *Document) Inline(ref Reference, css string) error {
	if err := d.InsertBefore(ref.Node, NewStyle(css)); err != nil {
		return err
	}
	return d.Remove(ref.Node)
}
