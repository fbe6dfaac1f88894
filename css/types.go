// Package css keeps the stylesheet model used for usage reduction and
// compaction: a lossless-enough tree of rules, declarations and at-rules built
// with tdewolff parser and written back in compact form.
package css

import (
	"io"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Token is a single lexical token of a declaration value or at-rule prelude.
type Token struct {
	Type css.TokenType
	Data string
}

// Declaration is "property: value" pair. Custom properties keep their value
// verbatim in a single token.
type Declaration struct {
	Property string
	Values   []Token
	Custom   bool
}

// Value returns declaration value as written.
func (d Declaration) Value() string {
	return tokensString(d.Values)
}

// Important reports whether declaration ends with !important.
func (d Declaration) Important() bool {
	n := len(d.Values)
	return n >= 2 && d.Values[n-2].Type == css.DelimToken && d.Values[n-2].Data == "!" &&
		strings.EqualFold(d.Values[n-1].Data, "important")
}

// Rule is a style rule - group of selectors sharing declarations.
type Rule struct {
	Selectors    []string
	Declarations []Declaration
}

// AtRule is any @-rule. Statements (@import, @charset) have no block,
// grouping rules (@media, @supports) keep nested Items, descriptor rules
// (@font-face, @page) keep Declarations. Bodies of rules with unknown
// structure (@layer, @container) are kept as Raw tokens.
type AtRule struct {
	Name         string
	Prelude      []Token
	Block        bool
	Declarations []Declaration
	Items        []Item
	Raw          []Token
}

// Keyword returns lower-cased at-rule name without "@" and vendor prefix.
func (a *AtRule) Keyword() string {
	name := strings.ToLower(strings.TrimPrefix(a.Name, "@"))
	if strings.HasPrefix(name, "-") {
		if i := strings.Index(name[1:], "-"); i >= 0 {
			name = name[i+2:]
		}
	}
	return name
}

// Item is a single top level (or nested) stylesheet entry, exactly one field
// is set.
type Item struct {
	Rule   *Rule
	AtRule *AtRule
}

// Stylesheet is an ordered list of items, order is significant for cascade.
type Stylesheet struct {
	Items []Item
}

// Rules returns number of style rules in the stylesheet including nested ones.
func (s *Stylesheet) Rules() int {
	return countRules(s.Items)
}

func countRules(items []Item) int {
	n := 0
	for _, it := range items {
		switch {
		case it.Rule != nil:
			n++
		case it.AtRule != nil:
			n += countRules(it.AtRule.Items)
		}
	}
	return n
}

// Selectors returns all style rule selectors in document order, selectors of
// keyframe blocks are not included.
func (s *Stylesheet) Selectors() []string {
	var out []string
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, it := range items {
			switch {
			case it.Rule != nil:
				out = append(out, it.Rule.Selectors...)
			case it.AtRule != nil && it.AtRule.Keyword() != "keyframes":
				walk(it.AtRule.Items)
			}
		}
	}
	walk(s.Items)
	return out
}

// WriteTo writes stylesheet in compact form: no comments, no optional
// whitespace between tokens the parser normalized, no trailing semicolons.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	writeItems(&sb, s.Items)
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String returns compact text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	writeItems(&sb, s.Items)
	return sb.String()
}

func writeItems(sb *strings.Builder, items []Item) {
	for _, it := range items {
		switch {
		case it.Rule != nil:
			writeRule(sb, it.Rule)
		case it.AtRule != nil:
			writeAtRule(sb, it.AtRule)
		}
	}
}

func writeRule(sb *strings.Builder, r *Rule) {
	sb.WriteString(strings.Join(r.Selectors, ","))
	sb.WriteByte('{')
	writeDeclarations(sb, r.Declarations)
	sb.WriteByte('}')
}

func writeDeclarations(sb *strings.Builder, decls []Declaration) {
	for i, d := range decls {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(d.Property)
		sb.WriteByte(':')
		sb.WriteString(d.Value())
	}
}

func writeAtRule(sb *strings.Builder, a *AtRule) {
	sb.WriteString(a.Name)
	if prelude := tokensString(a.Prelude); prelude != "" {
		if !strings.HasPrefix(prelude, "(") {
			sb.WriteByte(' ')
		}
		sb.WriteString(prelude)
	}
	if !a.Block {
		sb.WriteByte(';')
		return
	}
	sb.WriteByte('{')
	writeDeclarations(sb, a.Declarations)
	if len(a.Declarations) > 0 && len(a.Items) > 0 {
		sb.WriteByte(';')
	}
	writeItems(sb, a.Items)
	sb.WriteString(tokensString(a.Raw))
	sb.WriteByte('}')
}

// empty reports whether at-rule block has nothing left in it.
func (a *AtRule) empty() bool {
	return len(a.Items) == 0 && len(a.Declarations) == 0 && len(a.Raw) == 0
}

func tokensString(tokens []Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(t.Data)
	}
	return sb.String()
}
