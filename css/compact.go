package css

import (
	"fmt"
	"strings"

	"github.com/mazznoer/csscolorparser"
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

const mediaType = "text/css"

// Compactor produces semantically equivalent minimal stylesheet text.
type Compactor struct {
	log    *zap.Logger
	parser *Parser
	min    *minify.M
}

// NewCompactor creates a new compactor.
func NewCompactor(log *zap.Logger) *Compactor {
	if log == nil {
		log = zap.NewNop()
	}
	m := minify.New()
	m.Add(mediaType, &mincss.Minifier{})
	return &Compactor{log: log.Named("compactor"), parser: NewParser(log), min: m}
}

// Compact validates text, shortens color literals, drops comments and
// insignificant whitespace. Empty or whitespace-only input produces empty
// output. Malformed input is reported with ErrMalformed.
func (c *Compactor) Compact(text string) (string, error) {
	sheet, err := c.parser.Parse([]byte(text), "reduced stylesheet")
	if err != nil {
		return "", err
	}
	return c.CompactSheet(sheet)
}

// CompactSheet writes already parsed stylesheet in compact form. Strings,
// url references and math functions are tokenized by the minifier, their
// content is never touched.
func (c *Compactor) CompactSheet(sheet *Stylesheet) (string, error) {
	shortenColors(sheet.Items)
	out, err := c.min.String(mediaType, sheet.String())
	if err != nil {
		return "", fmt.Errorf("%w: unable to compact stylesheet: %w", ErrMalformed, err)
	}
	out = strings.TrimSpace(out)
	c.log.Debug("Stylesheet compacted", zap.Int("rules", sheet.Rules()), zap.Int("bytes", len(out)))
	return out, nil
}

func shortenColors(items []Item) {
	for _, it := range items {
		switch {
		case it.Rule != nil:
			shortenDeclarations(it.Rule.Declarations)
		case it.AtRule != nil:
			shortenDeclarations(it.AtRule.Declarations)
			shortenColors(it.AtRule.Items)
		}
	}
}

// colorProperties are properties where bare identifier may be a named color.
var colorProperties = map[string]bool{
	"color": true, "background": true, "background-color": true,
	"border": true, "border-color": true, "border-top": true, "border-right": true,
	"border-bottom": true, "border-left": true, "border-top-color": true,
	"border-right-color": true, "border-bottom-color": true, "border-left-color": true,
	"outline": true, "outline-color": true, "column-rule": true, "column-rule-color": true,
	"text-decoration": true, "text-decoration-color": true, "caret-color": true,
	"accent-color": true, "fill": true, "stroke": true, "stop-color": true,
	"flood-color": true, "lighting-color": true,
}

var colorFunctions = map[string]bool{
	"rgb(": true, "rgba(": true, "hsl(": true, "hsla(": true, "hwb(": true,
}

func shortenDeclarations(decls []Declaration) {
	for i := range decls {
		d := &decls[i]
		if d.Custom {
			continue
		}
		d.Values = shortenValue(d.Values, colorProperties[strings.ToLower(d.Property)])
	}
}

func shortenValue(values []Token, named bool) []Token {
	out := make([]Token, 0, len(values))
	for i := 0; i < len(values); i++ {
		t := values[i]
		switch t.Type {
		case css.HashToken:
			t.Data = shortenHex(t.Data)

		case css.IdentToken:
			if named {
				if c, err := csscolorparser.Parse(t.Data); err == nil && c.A == 1 {
					if hex := shortenHex(c.HexString()); len(hex) < len(t.Data) {
						t = Token{Type: css.HashToken, Data: hex}
					}
				}
			}

		case css.FunctionToken:
			if !colorFunctions[strings.ToLower(t.Data)] {
				break
			}
			end := closingParen(values, i)
			if end < 0 {
				break
			}
			c, err := csscolorparser.Parse(tokensString(values[i : end+1]))
			if err != nil || c.A != 1 {
				break
			}
			out = append(out, Token{Type: css.HashToken, Data: shortenHex(c.HexString())})
			i = end
			continue
		}
		out = append(out, t)
	}
	return out
}

func closingParen(values []Token, start int) int {
	depth := 0
	for i := start; i < len(values); i++ {
		switch values[i].Type {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// shortenHex turns #aabbcc into #abc (and #aabbccdd into #abcd), other
// values are only lower-cased.
func shortenHex(h string) string {
	if !strings.HasPrefix(h, "#") {
		return h
	}
	digits := strings.ToLower(h[1:])
	for _, r := range digits {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return h
		}
	}
	if len(digits) != 6 && len(digits) != 8 {
		return "#" + digits
	}
	short := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		if digits[i] != digits[i+1] {
			return "#" + digits
		}
		short = append(short, digits[i])
	}
	return "#" + string(short)
}
