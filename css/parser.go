package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ErrMalformed is returned when stylesheet text cannot be parsed.
var ErrMalformed = errors.New("malformed css")

var errUnexpectedEOF = errors.New("unexpected end of stylesheet, unterminated block")

// Parser parses CSS stylesheets into structured rules.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Source identifies what is being
// parsed and is used for logging and in returned errors. Unlike browsers
// parser does not recover: any grammar error makes the whole text rejected
// with ErrMalformed.
func (p *Parser) Parse(data []byte, source string) (*Stylesheet, error) {
	if source != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	items, _, _, err := p.parseBlock(parser, 0)
	if err != nil {
		if source == "" {
			source = "<inline>"
		}
		return nil, fmt.Errorf("%w (%s): %w", ErrMalformed, source, err)
	}
	return &Stylesheet{Items: items}, nil
}

// parseBlock consumes grammar until the end of the current block (or the end
// of input on top level). Depending on the block it collects nested items,
// declarations or, for at-rules tdewolff does not know the structure of, raw
// tokens.
func (p *Parser) parseBlock(parser *css.Parser, level int) ([]Item, []Declaration, []Token, error) {
	var (
		items     []Item
		decls     []Declaration
		raw       []Token
		selectors []string
	)

	for {
		gt, tt, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, nil, nil, err
			}
			if level > 0 || len(selectors) > 0 {
				return nil, nil, nil, errUnexpectedEOF
			}
			return items, decls, raw, nil

		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			if level == 0 {
				return nil, nil, nil, errors.New("unexpected end of block")
			}
			return items, decls, normalizeTokens(raw), nil

		case css.QualifiedRuleGrammar:
			// one selector of the comma separated list
			selectors = append(selectors, tokensString(convertTokens(data, parser.Values())))

		case css.BeginRulesetGrammar:
			selectors = append(selectors, tokensString(convertTokens(data, parser.Values())))
			_, ruleDecls, _, err := p.parseBlock(parser, level+1)
			if err != nil {
				return nil, nil, nil, err
			}
			items = append(items, Item{Rule: &Rule{
				Selectors:    splitSelectors(strings.Join(selectors, ",")),
				Declarations: ruleDecls,
			}})
			selectors = nil

		case css.DeclarationGrammar:
			decls = append(decls, Declaration{
				Property: string(data),
				Values:   convertTokens(nil, parser.Values()),
			})

		case css.CustomPropertyGrammar:
			decls = append(decls, Declaration{
				Property: string(data),
				Values:   convertTokens(nil, parser.Values()),
				Custom:   true,
			})

		case css.AtRuleGrammar:
			items = append(items, Item{AtRule: &AtRule{
				Name:    string(data),
				Prelude: convertTokens(nil, parser.Values()),
			}})

		case css.BeginAtRuleGrammar:
			at := &AtRule{
				Name:    string(data),
				Prelude: convertTokens(nil, parser.Values()),
				Block:   true,
			}
			nested, atDecls, atRaw, err := p.parseBlock(parser, level+1)
			if err != nil {
				return nil, nil, nil, err
			}
			at.Items, at.Declarations, at.Raw = nested, atDecls, atRaw
			p.log.Debug("Parsed @-rule", zap.String("rule", at.Name), zap.Int("items", len(at.Items)), zap.Int("declarations", len(at.Declarations)))
			items = append(items, Item{AtRule: at})

		case css.TokenGrammar:
			// body of an unknown @-rule, kept verbatim
			if level > 0 && tt != css.CommentToken {
				raw = append(raw, Token{Type: tt, Data: string(data)})
			}

		case css.CommentGrammar:
			// dropped
		}
	}
}

// convertTokens copies parser tokens (they are only valid until the next call
// to parser) normalizing whitespace and dropping comments.
func convertTokens(data []byte, values []css.Token) []Token {
	out := make([]Token, 0, len(values)+1)
	if len(data) > 0 {
		out = append(out, Token{Type: css.IdentToken, Data: string(data)})
	}
	for _, v := range values {
		out = append(out, Token{Type: v.TokenType, Data: string(v.Data)})
	}
	return normalizeTokens(out)
}

func normalizeTokens(tokens []Token) []Token {
	out := tokens[:0]
	for _, t := range tokens {
		switch t.Type {
		case css.CommentToken:
			continue
		case css.WhitespaceToken:
			if len(out) == 0 || out[len(out)-1].Type == css.WhitespaceToken {
				continue
			}
			t.Data = " "
		}
		out = append(out, t)
	}
	for len(out) > 0 && out[len(out)-1].Type == css.WhitespaceToken {
		out = out[:len(out)-1]
	}
	return out
}

// splitSelectors splits selector list on top level commas, commas inside
// functional pseudo-classes, attribute selectors and strings are preserved.
func splitSelectors(list string) []string {
	var (
		out   []string
		depth int
		quote rune
		start int
	)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	for i, r := range list {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			add(list[start:i])
			start = i + 1
		}
	}
	add(list[start:])
	return out
}
