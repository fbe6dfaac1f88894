package inline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap/zaptest"

	"dropcss/config"
	"dropcss/state"
)

const sheet = ".used { color: red; }\n.unused { color: blue; }\n"

func page(href string) string {
	return `<html><head><link rel="stylesheet" href="` + href + `"></head><body><p class="used">x</p></body></html>`
}

// newTestContext creates context with environment the way main does it.
func newTestContext(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Cfg = cfg
	env.Log = zaptest.NewLogger(t)
	return ctx, env
}

func newRunOptions(t *testing.T, env *state.LocalEnv, root string, out *bytes.Buffer) *Options {
	t.Helper()
	opts := NewOptions(&env.Cfg.Processing)
	opts.RootDir = root
	opts.Stdout = out
	return opts
}

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(data)
}

func isEmptyDir(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) == 0
}

func TestProcess_SingleFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)
	src := filepath.Join(root, "index.html")
	writeFile(t, src, page("site.css"))

	t.Run("stdout", func(t *testing.T) {
		ctx, env := newTestContext(t)
		var out bytes.Buffer
		if err := Process(ctx, src, newRunOptions(t, env, root, &out), env.Log); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if !strings.Contains(out.String(), "<style>.used{color:red}</style>") {
			t.Errorf("document not written to stdout: %s", out.String())
		}
	})

	t.Run("show css", func(t *testing.T) {
		ctx, env := newTestContext(t)
		var out bytes.Buffer
		opts := newRunOptions(t, env, root, &out)
		opts.ShowCSS = true
		if err := Process(ctx, src, opts, env.Log); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if out.String() != ".used{color:red}\n" {
			t.Errorf("stdout = %q", out.String())
		}
	})

	t.Run("output file", func(t *testing.T) {
		ctx, env := newTestContext(t)
		var out bytes.Buffer
		opts := newRunOptions(t, env, root, &out)
		opts.OutputPath = filepath.Join(t.TempDir(), "new", "result.html")
		if err := Process(ctx, src, opts, env.Log); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("nothing expected on stdout: %q", out.String())
		}
		if got := readFile(t, opts.OutputPath); !strings.Contains(got, "<style>.used{color:red}</style>") {
			t.Errorf("unexpected output: %s", got)
		}
	})

	t.Run("output directory", func(t *testing.T) {
		ctx, env := newTestContext(t)
		var out bytes.Buffer
		opts := newRunOptions(t, env, root, &out)
		opts.OutputPath = t.TempDir()
		if err := Process(ctx, src, opts, env.Log); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if got := readFile(t, filepath.Join(opts.OutputPath, "index.html")); !strings.Contains(got, "<style>") {
			t.Errorf("unexpected output: %s", got)
		}
	})
}

func TestProcess_InputNotFound(t *testing.T) {
	ctx, env := newTestContext(t)
	var out bytes.Buffer
	opts := newRunOptions(t, env, "", &out)
	opts.OutputPath = t.TempDir()

	err := Process(ctx, "/no/such/file.html", opts, env.Log)
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("Process() error = %v, want %v", err, ErrInputNotFound)
	}
	if out.Len() != 0 || !isEmptyDir(t, opts.OutputPath) {
		t.Error("nothing must be written")
	}
}

func TestProcess_DirectoryMisconfigured(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)
	writeFile(t, filepath.Join(root, "index.html"), page("site.css"))

	t.Run("no output", func(t *testing.T) {
		ctx, env := newTestContext(t)
		var out bytes.Buffer
		err := Process(ctx, root, newRunOptions(t, env, root, &out), env.Log)
		if !errors.Is(err, ErrMisconfiguredOutput) {
			t.Errorf("Process() error = %v, want %v", err, ErrMisconfiguredOutput)
		}
		if out.Len() != 0 {
			t.Error("nothing must be written")
		}
	})

	t.Run("show css", func(t *testing.T) {
		ctx, env := newTestContext(t)
		var out bytes.Buffer
		opts := newRunOptions(t, env, root, &out)
		opts.OutputPath, opts.ShowCSS = t.TempDir(), true
		err := Process(ctx, root, opts, env.Log)
		if !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("Process() error = %v, want %v", err, ErrInvalidOptions)
		}
		if !isEmptyDir(t, opts.OutputPath) {
			t.Error("nothing must be written")
		}
	})
}

func TestProcess_Directory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)
	writeFile(t, filepath.Join(root, "index.html"), page("site.css"))
	writeFile(t, filepath.Join(root, "About.HTM"), page("/site.css"))
	writeFile(t, filepath.Join(root, "notes.txt"), "not a document")
	writeFile(t, filepath.Join(root, "blog", "post.html"), page("/site.css"))
	writeFile(t, filepath.Join(root, "blog", "2024", "old.html"), `<html><head></head><body>plain</body></html>`)

	tests := []struct {
		name      string
		recursive bool
		want      []string
		absent    []string
	}{
		{"flat", false, []string{"index.html", "About.HTM"}, []string{"notes.txt", "blog"}},
		{"recursive", true, []string{"index.html", "About.HTM", "blog/post.html", "blog/2024/old.html"}, []string{"notes.txt", "site.css"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, env := newTestContext(t)
			var out bytes.Buffer
			opts := newRunOptions(t, env, root, &out)
			opts.OutputPath = filepath.Join(t.TempDir(), "out")
			opts.Recursive = tt.recursive

			if err := Process(ctx, root, opts, env.Log); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			for _, name := range tt.want {
				if _, err := os.Stat(filepath.Join(opts.OutputPath, filepath.FromSlash(name))); err != nil {
					t.Errorf("%s not written: %v", name, err)
				}
			}
			for _, name := range tt.absent {
				if _, err := os.Stat(filepath.Join(opts.OutputPath, name)); err == nil {
					t.Errorf("%s must not be written", name)
				}
			}
			if got := readFile(t, filepath.Join(opts.OutputPath, "index.html")); !strings.Contains(got, "<style>.used{color:red}</style>") {
				t.Errorf("index.html not processed: %s", got)
			}
			if tt.recursive {
				if got := readFile(t, filepath.Join(opts.OutputPath, "blog", "2024", "old.html")); got != `<html><head></head><body>plain</body></html>` {
					t.Errorf("unchanged document must be copied as is: %s", got)
				}
			}
		})
	}
}

func TestProcess_DirectoryOutputInside(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)
	writeFile(t, filepath.Join(root, "index.html"), page("site.css"))

	ctx, env := newTestContext(t)
	var out bytes.Buffer
	opts := newRunOptions(t, env, root, &out)
	opts.OutputPath = filepath.Join(root, "out")
	opts.Recursive = true

	// second run must not pick up documents written by the first one
	for range 2 {
		if err := Process(ctx, root, opts, env.Log); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "out", "out")); err == nil {
		t.Error("output directory must not be processed")
	}
}

func TestProcess_DirectoryPartialFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)
	writeFile(t, filepath.Join(root, "broken.css"), ".b{color:red}.a")
	writeFile(t, filepath.Join(root, "a.html"), page("site.css"))
	writeFile(t, filepath.Join(root, "b.html"), page("broken.css"))
	writeFile(t, filepath.Join(root, "c.html"), page("site.css"))

	ctx, env := newTestContext(t)
	var out bytes.Buffer
	opts := newRunOptions(t, env, root, &out)
	opts.OutputPath = t.TempDir()

	if err := Process(ctx, root, opts, env.Log); err == nil {
		t.Error("expected error for failed document")
	}
	for _, name := range []string{"a.html", "c.html"} {
		if _, err := os.Stat(filepath.Join(opts.OutputPath, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(opts.OutputPath, "b.html")); err == nil {
		t.Error("failed document must not be written")
	}
}

func TestProcess_Archive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)

	arc := filepath.Join(t.TempDir(), "site.zip")
	f, err := os.Create(arc)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range map[string]string{
		"index.html":      page("site.css"),
		"docs/guide.html": page("/site.css"),
		"docs/readme.md":  "# readme",
	} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	w.Close()
	f.Close()

	ctx, env := newTestContext(t)
	var out bytes.Buffer
	opts := newRunOptions(t, env, root, &out)
	opts.OutputPath = t.TempDir()
	opts.Recursive = true

	if err := Process(ctx, arc, opts, env.Log); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, name := range []string{"index.html", filepath.Join("docs", "guide.html")} {
		if got := readFile(t, filepath.Join(opts.OutputPath, name)); !strings.Contains(got, "<style>.used{color:red}</style>") {
			t.Errorf("%s not processed: %s", name, got)
		}
	}
	if _, err := os.Stat(filepath.Join(opts.OutputPath, "docs", "readme.md")); err == nil {
		t.Error("non document entry must not be written")
	}
}

func TestRun_Command(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site.css"), sheet)
	src := filepath.Join(root, "index.html")
	writeFile(t, src, page("site.css"))
	dst := filepath.Join(t.TempDir(), "index.html")

	ctx, env := newTestContext(t)
	env.Cfg.Processing.RootDir = root

	cmd := &cli.Command{
		Name:   "inline",
		Flags:  Flags(),
		Action: Run,
	}
	if err := cmd.Run(ctx, []string{"inline", "--keep-link", "-o", dst, src}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := readFile(t, dst)
	if !strings.Contains(got, "<style>.used{color:red}</style>") || !strings.Contains(got, `media="print"`) {
		t.Errorf("unexpected output: %s", got)
	}
}

func TestRun_NoSource(t *testing.T) {
	ctx, _ := newTestContext(t)
	cmd := &cli.Command{Name: "inline", Flags: Flags(), Action: Run}
	if err := cmd.Run(ctx, []string{"inline"}); err == nil {
		t.Error("expected error without source")
	}
}

func TestProcess_BatchMirroring(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "x.html"), `<html><head></head><body></body></html>`)
	writeFile(t, filepath.Join(src, "sub", "y.html"), `<html><head></head><body></body></html>`)

	ctx, env := newTestContext(t)
	var out bytes.Buffer
	opts := newRunOptions(t, env, src, &out)
	opts.OutputPath = filepath.Join(t.TempDir(), "b")
	opts.Recursive = true

	if err := Process(ctx, src, opts, env.Log); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	var got []string
	err := filepath.WalkDir(opts.OutputPath, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(opts.OutputPath, p)
		got = append(got, filepath.ToSlash(rel))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "sub/y.html,x.html" {
		t.Errorf("output tree = %v, want exactly x.html and sub/y.html", got)
	}
}
