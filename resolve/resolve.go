// Package resolve turns stylesheet locators found in documents into CSS text,
// either fetched over network or read from local files.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/transform"

	"dropcss/config"
	"dropcss/css"
)

var (
	// ErrUnreachableResource is returned when stylesheet could not be obtained
	// by any means.
	ErrUnreachableResource = errors.New("stylesheet is unreachable")
	// ErrNetworkFailure marks failed fetch, only such failure makes resolver
	// try local file instead.
	ErrNetworkFailure = errors.New("network failure")
)

// Resolver obtains stylesheet text for locators.
type Resolver struct {
	log    *zap.Logger
	cfg    *config.FetchConfig
	client *http.Client
	root   string
}

// New creates resolver. Root is the directory local (and root-relative)
// locators are resolved against, when empty current working directory is
// used.
func New(cfg *config.FetchConfig, root string, log *zap.Logger) (*Resolver, error) {
	if len(root) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("unable to get working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.FetchConfig{}
	}
	return &Resolver{
		log:    log.Named("resolver"),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		root:   root,
	}, nil
}

// Resolve returns stylesheet text for a single locator. Absolute http(s) URLs
// are fetched, on network failure URL path is tried as a local file under
// root. Anything else is local path.
func (r *Resolver) Resolve(ctx context.Context, locator string) (css.Source, error) {
	src := css.Source{Locator: locator}

	u, err := url.Parse(locator)
	if err != nil {
		// not an URL, may still be a file name
		data, err := r.read(locator)
		if err != nil {
			return src, fmt.Errorf("%w (%s): %w", ErrUnreachableResource, locator, err)
		}
		src.Text = data
		return src, nil
	}

	if u.Scheme == "" && u.Host != "" {
		// protocol relative, locator is kept as is so rebased references
		// stay protocol relative too
		u.Scheme = "https"
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		data, ferr := r.fetch(ctx, u)
		if ferr == nil {
			src.Text, src.Remote = data, true
			return src, nil
		}
		if !errors.Is(ferr, ErrNetworkFailure) {
			return src, fmt.Errorf("%w (%s): %w", ErrUnreachableResource, locator, ferr)
		}
		r.log.Debug("Unable to fetch stylesheet, trying local file", zap.String("url", locator), zap.Error(ferr))
		data, err := r.read(u.Path)
		if err != nil {
			return src, fmt.Errorf("%w (%s): %w", ErrUnreachableResource, locator, multierr.Combine(ferr, err))
		}
		src.Text = data
		return src, nil

	case "file":
		r.log.Debug("Reading stylesheet", zap.String("file", u.Path))
		data, err := os.ReadFile(filepath.FromSlash(u.Path))
		if err != nil {
			return src, fmt.Errorf("%w (%s): %w", ErrUnreachableResource, locator, err)
		}
		src.Text = data
		return src, nil

	case "":
		// query and fragment mean nothing for local files
		data, err := r.read(u.Path)
		if err != nil {
			return src, fmt.Errorf("%w (%s): %w", ErrUnreachableResource, locator, err)
		}
		src.Text = data
		return src, nil
	}
	if len(u.Scheme) == 1 {
		// windows drive letter
		data, err := os.ReadFile(locator)
		if err != nil {
			return src, fmt.Errorf("%w (%s): %w", ErrUnreachableResource, locator, err)
		}
		src.Text = data
		return src, nil
	}
	return src, fmt.Errorf("%w (%s): unsupported scheme %q", ErrUnreachableResource, locator, u.Scheme)
}

// ResolveAll resolves all locators concurrently and waits for all of them.
// Successfully resolved sources are returned in locator order, failures are
// combined into returned error.
func (r *Resolver) ResolveAll(ctx context.Context, locators []string) ([]css.Source, error) {
	var (
		g       errgroup.Group
		results = make([]css.Source, len(locators))
		errs    = make([]error, len(locators))
	)
	if r.cfg.MaxParallel > 0 {
		g.SetLimit(r.cfg.MaxParallel)
	}
	for i, locator := range locators {
		g.Go(func() error {
			results[i], errs[i] = r.Resolve(ctx, locator)
			return nil
		})
	}
	_ = g.Wait()

	var (
		sources = make([]css.Source, 0, len(locators))
		err     error
	)
	for i := range locators {
		if errs[i] != nil {
			err = multierr.Append(err, errs[i])
			continue
		}
		sources = append(sources, results[i])
	}
	return sources, err
}

func (r *Resolver) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	if len(r.cfg.UserAgent) > 0 {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}
	for k, v := range r.cfg.Headers {
		req.Header.Set(k, v.Reveal())
	}

	r.log.Debug("Fetching stylesheet", zap.Stringer("url", u))
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// interrupted, not worth trying anything else
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrNetworkFailure, resp.Status)
	}

	data, err := io.ReadAll(decodeBody(resp.Body, resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read response: %w", ErrNetworkFailure, err)
	}
	return data, nil
}

// decodeBody transcodes response to UTF-8 when server declared other
// charset.
func decodeBody(body io.Reader, contentType string) io.Reader {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	label := params["charset"]
	if len(label) == 0 || strings.EqualFold(label, "utf-8") {
		return body
	}
	enc, _ := charset.Lookup(label)
	if enc == nil {
		return body
	}
	return transform.NewReader(body, enc.NewDecoder())
}

// read reads local file. Leading slash means root-relative path, same as in
// URL, relative paths are also resolved against root.
func (r *Resolver) read(name string) ([]byte, error) {
	if len(name) == 0 {
		return nil, errors.New("empty path")
	}
	fname := filepath.FromSlash(name)
	if !filepath.IsAbs(fname) || strings.HasPrefix(name, "/") {
		fname = filepath.Join(r.root, fname)
	}
	r.log.Debug("Reading stylesheet", zap.String("file", fname))
	return os.ReadFile(fname)
}
