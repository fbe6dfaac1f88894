// Package inline drives stylesheet reduction and inlining for documents,
// directories and archives.
package inline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"dropcss/archive"
	"dropcss/config"
	"dropcss/state"
)

// Flags returns command line flags of inline command.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "css", Usage: "inline stylesheet from `FILE` as is instead of reducing referenced ones"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output `PATH`, file for a single document, directory otherwise"},
		&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "process documents in subdirectories too"},
		&cli.BoolFlag{Name: "show-inline-css", Aliases: []string{"i"}, Usage: "print produced stylesheet instead of document (single file only)"},
		&cli.BoolFlag{Name: "keep-link", Aliases: []string{"k"}, Usage: "replace inlined links with non-blocking links to the same stylesheets"},
		&cli.StringFlag{Name: "href", Usage: "replace inlined links with non-blocking links to `URL`"},
		&cli.BoolFlag{Name: "scoped", Aliases: []string{"s"}, Usage: "reduce marked links of <head> and every <template> separately"},
		&cli.BoolFlag{Name: "strict", Usage: "fail document when any of its stylesheets cannot be resolved"},
		&cli.StringFlag{Name: "force-zip-cp",
			Usage: "Force `ENCODING` for ALL non UTF-8 file names in processed archives (see IANA.org for character set names)"},
	}
}

// Run is the action of inline command.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("inline")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	opts := NewOptions(&env.Cfg.Processing)
	opts.ExplicitCSSPath = cmd.String("css")
	opts.OutputPath = cmd.String("output")
	opts.Recursive = cmd.Bool("recursive")
	opts.ShowCSS = cmd.Bool("show-inline-css")
	if cmd.Bool("scoped") {
		opts.Mode = config.ScanModeScoped
	}
	if cmd.Bool("keep-link") && opts.Fallback == config.FallbackModeNone {
		opts.Fallback = config.FallbackModeOriginal
	}
	if href := cmd.String("href"); len(href) > 0 {
		opts.Fallback, opts.FallbackHref = config.FallbackModeOverride, href
	}
	if cmd.Bool("strict") {
		opts.OnUnreachable = config.FailurePolicyAbort
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", opts.OutputPath), zap.Stringer("mode", opts.Mode))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return Process(ctx, src, opts, log)
}

// Process handles target independently of CLI framework: single file,
// directory tree or zip archive. Options are validated before anything is
// read or written.
func Process(ctx context.Context, target string, opts *Options, log *zap.Logger) error {
	fi, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w (%s)", ErrInputNotFound, target)
		}
		return err
	}

	kind := TargetFile
	switch {
	case fi.IsDir():
		kind = TargetDirectory
	case !fi.Mode().IsRegular():
		return fmt.Errorf("unexpected path mode for (%s)", target)
	default:
		isArchive, err := isArchiveFile(target)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			kind = TargetArchive
		}
	}

	if err := opts.Validate(kind); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	p, err := NewPipeline(opts, env.Rpt, log)
	if err != nil {
		return err
	}

	switch kind {
	case TargetDirectory:
		return p.processDir(ctx, target)
	case TargetArchive:
		return p.processArchive(ctx, target, env)
	}
	return p.processFile(ctx, target)
}

func (p *Pipeline) processFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read (%s): %w", path, err)
	}
	res, err := p.Process(ctx, filepath.Base(path), data)
	if err != nil {
		return fmt.Errorf("unable to process (%s): %w", path, err)
	}

	out := p.opts.stdout()
	if p.opts.ShowCSS {
		for _, text := range res.CSS {
			if _, err := fmt.Fprintln(out, text); err != nil {
				return err
			}
		}
	}

	switch {
	case len(p.opts.OutputPath) > 0:
		dst := p.opts.OutputPath
		if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
			dst = filepath.Join(dst, filepath.Base(path))
		}
		return p.write(dst, res.Output)
	case !p.opts.ShowCSS:
		_, err := out.Write(res.Output)
		return err
	}
	return nil
}

// processDir collects all matching documents first, so output written under
// the input root is never picked up, and processes them one by one.
func (p *Pipeline) processDir(ctx context.Context, dir string) error {
	outRoot, err := filepath.Abs(p.opts.OutputPath)
	if err != nil {
		return err
	}
	pattern := documentPattern(p.opts.Recursive)

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			p.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if abs, err := filepath.Abs(path); (err == nil && abs == outRoot) || !p.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if isDocument(pattern, rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(natural.StringSlice(files))

	b := p.newBatch()
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			b.failed(rel, err)
			continue
		}
		b.process(ctx, rel, data)
	}
	return b.summary(dir)
}

// processArchive processes matching documents inside zip archive mirroring
// their paths under output root.
func (p *Pipeline) processArchive(ctx context.Context, path string, env *state.LocalEnv) error {
	pattern := documentPattern(p.opts.Recursive)
	b := p.newBatch()

	err := archive.Walk(path, env.CodePage, func(name string) bool { return isDocument(pattern, name) },
		func(_ string, e archive.Entry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := e.File.Open()
			if err != nil {
				b.failed(e.Name, err)
				return nil
			}
			defer r.Close()

			data, err := io.ReadAll(r)
			if err != nil {
				b.failed(e.Name, err)
				return nil
			}
			b.process(ctx, filepath.FromSlash(e.Name), data)
			return nil
		})
	if err != nil {
		return fmt.Errorf("unable to process archive: %w", err)
	}
	return b.summary(path)
}

// batch counts documents of directory or archive run. Failure of a single
// document is logged and never stops the run.
type batch struct {
	p               *Pipeline
	done, unchanged int
	errors          int
}

func (p *Pipeline) newBatch() *batch {
	return &batch{p: p}
}

func (b *batch) process(ctx context.Context, rel string, data []byte) {
	res, err := b.p.Process(ctx, rel, data)
	if err != nil {
		b.failed(rel, err)
		return
	}
	if err := b.p.write(filepath.Join(b.p.opts.OutputPath, rel), res.Output); err != nil {
		b.failed(rel, err)
		return
	}
	b.done++
	if !res.Changed {
		b.unchanged++
	}
}

func (b *batch) failed(rel string, err error) {
	b.errors++
	b.p.log.Error("Unable to process document", zap.String("document", rel), zap.Error(err))
}

func (b *batch) summary(source string) error {
	total := b.done + b.errors
	if total == 0 {
		b.p.log.Info("Nothing to process", zap.String("source", source))
		return nil
	}
	b.p.log.Info("Batch completed", zap.String("source", source),
		zap.Int("documents", total), zap.Int("processed", b.done), zap.Int("unchanged", b.unchanged), zap.Int("failed", b.errors))
	if b.errors > 0 {
		return fmt.Errorf("%d of %d documents failed", b.errors, total)
	}
	return nil
}

// write creates all necessary directories before writing the file.
func (p *Pipeline) write(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	p.log.Debug("Document written", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}
