package inline

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"dropcss/config"
	"dropcss/css"
	"dropcss/document"
	"dropcss/resolve"
)

// Result is outcome of a single document processing.
type Result struct {
	// Output is serialized document, original bytes when nothing was changed.
	Output  []byte
	Changed bool
	// CSS holds compacted stylesheet of every reduced unit in document order.
	CSS []string
}

// Pipeline processes single documents. It keeps no per-document state and
// could be reused for any number of documents of a run.
type Pipeline struct {
	log       *zap.Logger
	opts      *Options
	rpt       *config.Report
	resolver  *resolve.Resolver
	reducer   *css.Reducer
	compactor *css.Compactor
	fallback  document.Fallback

	explicit     string
	haveExplicit bool
}

// NewPipeline prepares pipeline for options. Explicit stylesheet, when
// requested, is read here once per run.
func NewPipeline(opts *Options, rpt *config.Report, log *zap.Logger) (*Pipeline, error) {
	resolver, err := resolve.New(&opts.Fetch, opts.RootDir, log)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare resolver: %w", err)
	}
	p := &Pipeline{
		log:       log,
		opts:      opts,
		rpt:       rpt,
		resolver:  resolver,
		reducer:   css.NewReducer(log, opts.RebaseURLs),
		compactor: css.NewCompactor(log),
		fallback:  document.Fallback{Mode: opts.Fallback, Href: opts.FallbackHref},
	}
	if len(opts.ExplicitCSSPath) > 0 {
		data, err := os.ReadFile(opts.ExplicitCSSPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read css from %q: %w", opts.ExplicitCSSPath, err)
		}
		p.explicit, p.haveExplicit = string(data), true
	}
	return p, nil
}

// Process runs Resolve, Reduce, Compact and Rewrite for a document and
// serializes result. Name identifies document in logs and debug report.
func (p *Pipeline) Process(ctx context.Context, name string, data []byte) (res *Result, rerr error) {
	p.log.Info("Processing document", zap.String("document", name))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			p.log.Error("Processing ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("document", name), zap.ByteString("stack", debug.Stack()))
			res, rerr = nil, fmt.Errorf("processing panic: %v", r)
		} else if rerr == nil {
			p.log.Debug("Processing completed", zap.Duration("elapsed", time.Since(start)), zap.String("document", name), zap.Bool("changed", res.Changed))
		}
	}(time.Now())

	doc, err := document.Parse(data)
	if err != nil {
		return nil, err
	}
	res = &Result{Output: data}

	// as is inlining goes first so its styles are part of the usage corpus
	for _, ref := range doc.InlineReferences(p.opts.InlineClass) {
		src, err := p.resolver.Resolve(ctx, ref.Href)
		if err != nil {
			if err := p.unreachable(err); err != nil {
				return nil, err
			}
			continue
		}
		if err := doc.Inline(ref, string(src.Text)); err != nil {
			return nil, fmt.Errorf("unable to inline %s: %w", ref.Href, err)
		}
		res.Changed = true
	}

	units := doc.Units(p.opts.Mode, p.opts.ReduceClass)
	for i := range units {
		unit := &units[i]

		refs, text := unit.References, p.explicit
		if !p.haveExplicit {
			if refs, text, err = p.reduce(ctx, doc, unit); err != nil {
				return nil, err
			}
			if len(refs) == 0 {
				continue
			}
			res.CSS = append(res.CSS, text)
			p.rpt.StoreData(fmt.Sprintf("css/%s-%d.css", slug.Make(name), i), []byte(text))
		}

		if err := doc.Rewrite(refs, text, p.fallback); err != nil {
			return nil, fmt.Errorf("unable to rewrite document: %w", err)
		}
		res.Changed = true
	}

	if !res.Changed {
		p.log.Debug("No stylesheet references, document left as is", zap.String("document", name))
		return res, nil
	}
	if res.Output, err = doc.Bytes(); err != nil {
		return nil, fmt.Errorf("unable to serialize document: %w", err)
	}
	return res, nil
}

// reduce resolves unit stylesheets, reduces them against unit corpus and
// compacts the result. Only references which were resolved are returned, so
// links to unreachable stylesheets stay in the document.
func (p *Pipeline) reduce(ctx context.Context, doc *document.Document, unit *document.Unit) ([]document.Reference, string, error) {
	sources, err := p.resolver.ResolveAll(ctx, unit.Hrefs())
	if err != nil {
		if err := p.unreachable(err); err != nil {
			return nil, "", err
		}
	}
	if len(sources) == 0 {
		return nil, "", nil
	}

	resolved := make(map[string]bool, len(sources))
	for _, s := range sources {
		resolved[s.Locator] = true
	}
	refs := make([]document.Reference, 0, len(unit.References))
	for _, ref := range unit.References {
		if resolved[ref.Href] {
			refs = append(refs, ref)
		}
	}

	sheet, err := p.reducer.ReduceTree(sources, doc.Corpus(unit))
	if err != nil {
		return nil, "", err
	}
	text, err := p.compactor.Compact(sheet.String())
	if err != nil {
		return nil, "", err
	}
	return refs, text, nil
}

// unreachable applies failure policy to resolution errors.
func (p *Pipeline) unreachable(err error) error {
	if p.opts.OnUnreachable == config.FailurePolicyAbort {
		return err
	}
	for _, e := range multierr.Errors(err) {
		p.log.Warn("Skipping unreachable stylesheet", zap.Error(e))
	}
	return nil
}
