package css

import (
	"net/url"
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// RewriteURLs calls fn for every url reference in the stylesheet (url()
// values and @import targets) and replaces reference with returned value.
func (s *Stylesheet) RewriteURLs(fn func(ref string) string) {
	rewriteItems(s.Items, fn)
}

func rewriteItems(items []Item, fn func(string) string) {
	for _, it := range items {
		switch {
		case it.Rule != nil:
			rewriteDeclarations(it.Rule.Declarations, fn)
		case it.AtRule != nil:
			if it.AtRule.Keyword() == "import" {
				rewriteTokens(it.AtRule.Prelude, fn, true)
			}
			rewriteDeclarations(it.AtRule.Declarations, fn)
			rewriteItems(it.AtRule.Items, fn)
			rewriteTokens(it.AtRule.Raw, fn, false)
		}
	}
}

func rewriteDeclarations(decls []Declaration, fn func(string) string) {
	for i := range decls {
		rewriteTokens(decls[i].Values, fn, false)
	}
}

// rewriteTokens handles both unquoted url(ref) tokens and url("ref")
// functions. When bareStrings is set any string token is treated as a
// reference (@import "x.css").
func rewriteTokens(tokens []Token, fn func(string) string, bareStrings bool) {
	for i := range tokens {
		t := &tokens[i]
		switch t.Type {
		case css.URLToken:
			open := strings.IndexByte(t.Data, '(')
			if open < 0 || !strings.HasSuffix(t.Data, ")") {
				continue
			}
			ref := strings.TrimSpace(t.Data[open+1 : len(t.Data)-1])
			quote := ""
			if len(ref) >= 2 && (ref[0] == '"' || ref[0] == '\'') && ref[len(ref)-1] == ref[0] {
				quote, ref = ref[:1], ref[1:len(ref)-1]
			}
			if repl := fn(ref); repl != ref {
				if quote == "" && strings.ContainsAny(repl, " ()'\"") {
					quote = `"`
				}
				t.Data = t.Data[:open+1] + quote + repl + quote + ")"
			}
		case css.StringToken:
			if !bareStrings && !(i > 0 && tokens[i-1].Type == css.FunctionToken && strings.EqualFold(tokens[i-1].Data, "url(")) {
				continue
			}
			if len(t.Data) < 2 {
				continue
			}
			quote, ref := t.Data[:1], t.Data[1:len(t.Data)-1]
			if repl := fn(ref); repl != ref {
				t.Data = quote + strings.ReplaceAll(repl, quote, `\`+quote) + quote
			}
		}
	}
}

// RebaseURL resolves relative reference against stylesheet location. Absolute
// references, fragments and data URIs are returned unchanged.
func RebaseURL(base *url.URL, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
