package css

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Source is stylesheet text together with where it came from.
type Source struct {
	Locator string
	Text    []byte
	// Remote is set for sources fetched over network, relative references in
	// such sources could be rebased to the source location.
	Remote bool
}

// Reducer removes style rules which cannot apply to a given document.
type Reducer struct {
	log    *zap.Logger
	parser *Parser
	rebase bool
}

// NewReducer creates a reducer. When rebase is set relative url references
// in remote sources are resolved against source location so they stay valid
// after stylesheet text is moved into the document.
func NewReducer(log *zap.Logger, rebase bool) *Reducer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reducer{
		log:    log.Named("reducer"),
		parser: NewParser(log),
		rebase: rebase,
	}
}

// Reduce parses all sources (in order, so cascade is preserved) and returns
// single stylesheet containing only rules whose selectors match something in
// markup. Each source is parsed separately, first malformed source stops
// reduction.
func (r *Reducer) Reduce(sources []Source, markup []byte) (*Stylesheet, error) {
	root, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("unable to parse markup: %w", err)
	}
	return r.ReduceTree(sources, root)
}

// ReduceTree is Reduce against already parsed tree. Root may be a detached
// fragment, only nodes under it are matched.
func (r *Reducer) ReduceTree(sources []Source, root *html.Node) (*Stylesheet, error) {
	sheet := &Stylesheet{}
	for _, src := range sources {
		s, err := r.parser.Parse(src.Text, src.Locator)
		if err != nil {
			return nil, err
		}
		if r.rebase && src.Remote {
			if base, err := url.Parse(src.Locator); err == nil {
				s.RewriteURLs(func(ref string) string { return RebaseURL(base, ref) })
			}
		}
		sheet.Items = append(sheet.Items, s.Items...)
	}
	return r.ReduceSheet(sheet, root), nil
}

// ReduceSheet filters already parsed stylesheet against document tree.
func (r *Reducer) ReduceSheet(sheet *Stylesheet, root *html.Node) *Stylesheet {
	m := &matcher{
		log:   r.log,
		doc:   goquery.NewDocumentFromNode(root),
		cache: make(map[string]bool),
	}

	items := m.filter(sheet.Items)
	refs := collectReferences(items)
	items = refs.filter(items)

	reduced := &Stylesheet{Items: items}
	r.log.Debug("Stylesheet reduced",
		zap.Int("rules", sheet.Rules()), zap.Int("kept", reduced.Rules()),
		zap.Int("selectors", len(m.cache)))
	return reduced
}

// dynamicPseudo matches pseudo-classes which depend on user interaction or
// browser state and pseudo-elements. None of them could be evaluated against
// static markup, selector is matched with them removed.
var dynamicPseudo = regexp.MustCompile(`(?i)::?(?:-[a-z]+-)?(?:` +
	`focus-within|focus-visible|focus|hover|active|visited|any-link|link|target-within|target|` +
	`placeholder-shown|placeholder|autofill|user-invalid|user-valid|invalid|valid|in-range|out-of-range|` +
	`indeterminate|default|popover-open|open|closed|modal|fullscreen|playing|paused|defined|` +
	`before|after|first-line|first-letter|selection|marker|backdrop|file-selector-button|` +
	`scrollbar[a-z-]*|search-[a-z-]*|inner-spin-button|outer-spin-button|cue|` +
	`part\([^)]*\)|slotted\([^)]*\)|host-context\([^)]*\)|host(?:\([^)]*\))?)`)

type matcher struct {
	log   *zap.Logger
	doc   *goquery.Document
	cache map[string]bool
}

// used reports whether selector matches at least one element. Selectors which
// cannot be compiled are considered used.
func (m *matcher) used(sel string) bool {
	if v, ok := m.cache[sel]; ok {
		return v
	}

	query := strings.TrimSpace(dynamicPseudo.ReplaceAllString(sel, ""))
	if query == "" || strings.HasSuffix(query, ">") || strings.HasSuffix(query, "+") || strings.HasSuffix(query, "~") {
		query += "*"
	}

	var v bool
	compiled, err := cascadia.Compile(query)
	if err != nil {
		m.log.Debug("Keeping selector which cannot be matched statically", zap.String("selector", sel), zap.Error(err))
		v = true
	} else {
		v = m.doc.FindMatcher(compiled).Length() > 0
	}
	m.cache[sel] = v
	return v
}

func (m *matcher) filter(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		switch {
		case it.Rule != nil:
			var kept []string
			for _, sel := range it.Rule.Selectors {
				if m.used(sel) {
					kept = append(kept, sel)
				}
			}
			if len(kept) == 0 {
				continue
			}
			out = append(out, Item{Rule: &Rule{Selectors: kept, Declarations: it.Rule.Declarations}})

		case it.AtRule != nil:
			at := it.AtRule
			if at.Block && at.empty() {
				continue
			}
			if !at.Block || len(at.Items) == 0 {
				// statements and descriptor blocks, reachability of
				// @font-face is decided later
				out = append(out, it)
				continue
			}
			if at.Keyword() == "keyframes" {
				out = append(out, it)
				continue
			}
			nested := *at
			nested.Items = m.filter(at.Items)
			if nested.empty() {
				continue
			}
			out = append(out, Item{AtRule: &nested})
		}
	}
	return out
}

// references are names defined by @-rules and used by kept style rules.
type references struct {
	animations map[string]bool
	families   map[string]bool
}

func collectReferences(items []Item) *references {
	refs := &references{animations: make(map[string]bool), families: make(map[string]bool)}
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, it := range items {
			switch {
			case it.Rule != nil:
				for _, d := range it.Rule.Declarations {
					refs.add(d)
				}
			case it.AtRule != nil:
				switch it.AtRule.Keyword() {
				case "keyframes", "font-face":
				default:
					for _, d := range it.AtRule.Declarations {
						refs.add(d)
					}
					walk(it.AtRule.Items)
				}
			}
		}
	}
	walk(items)
	return refs
}

func (refs *references) add(d Declaration) {
	prop := strings.ToLower(d.Property)
	switch {
	case d.Custom:
		// value of custom property may end up anywhere
		for _, name := range strings.FieldsFunc(d.Value(), func(r rune) bool {
			return r != '-' && r != '_' && !isAlnum(r)
		}) {
			refs.animations[name] = true
			refs.families[strings.ToLower(name)] = true
		}
	case strings.HasSuffix(prop, "animation") || strings.HasSuffix(prop, "animation-name"):
		for _, t := range d.Values {
			switch t.Type {
			case css.IdentToken:
				refs.animations[t.Data] = true
			case css.StringToken:
				refs.animations[unquote(t.Data)] = true
			}
		}
	case prop == "font-family" || prop == "font":
		for _, name := range familyNames(d.Values) {
			refs.families[strings.ToLower(name)] = true
		}
	}
}

// filter drops @keyframes and @font-face nobody refers to and grouping rules
// left empty after that.
func (refs *references) filter(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.AtRule == nil || !it.AtRule.Block {
			out = append(out, it)
			continue
		}
		at := it.AtRule
		switch at.Keyword() {
		case "keyframes":
			if !refs.animations[unquote(tokensString(at.Prelude))] {
				continue
			}
		case "font-face":
			if !refs.usesFontFace(at) {
				continue
			}
		default:
			if len(at.Items) == 0 {
				break
			}
			nested := *at
			nested.Items = refs.filter(at.Items)
			if nested.empty() {
				continue
			}
			it = Item{AtRule: &nested}
		}
		out = append(out, it)
	}
	return out
}

func (refs *references) usesFontFace(at *AtRule) bool {
	for _, d := range at.Declarations {
		if strings.EqualFold(d.Property, "font-family") {
			for _, name := range familyNames(d.Values) {
				if refs.families[strings.ToLower(name)] {
					return true
				}
			}
		}
	}
	return false
}

// familyNames extracts font family names from font-family or font value: for
// each comma separated part either quoted string or trailing run of
// identifiers.
func familyNames(values []Token) []string {
	var (
		names []string
		run   []string
	)
	flush := func() {
		if len(run) > 0 {
			names = append(names, strings.Join(run, " "))
			run = nil
		}
	}
	for _, t := range values {
		switch t.Type {
		case css.CommaToken:
			flush()
		case css.StringToken:
			run = nil
			names = append(names, unquote(t.Data))
		case css.IdentToken:
			run = append(run, t.Data)
		case css.WhitespaceToken:
		default:
			run = nil
		}
	}
	flush()
	return names
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
