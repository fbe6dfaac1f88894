package inline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dropcss/config"
)

func defaultOptions(t *testing.T) *Options {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return NewOptions(&cfg.Processing)
}

func TestOptions_Validate(t *testing.T) {
	existingFile := filepath.Join(t.TempDir(), "out.html")
	if err := os.WriteFile(existingFile, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target Target
		modify func(o *Options)
		want   error
	}{
		{"file defaults", TargetFile, func(o *Options) {}, nil},
		{"file to stdout with css shown", TargetFile, func(o *Options) { o.ShowCSS = true }, nil},
		{"directory with output", TargetDirectory, func(o *Options) { o.OutputPath = t.TempDir() }, nil},
		{"directory with new output", TargetDirectory, func(o *Options) { o.OutputPath = filepath.Join(t.TempDir(), "new") }, nil},
		{"directory without output", TargetDirectory, func(o *Options) {}, ErrMisconfiguredOutput},
		{"archive without output", TargetArchive, func(o *Options) {}, ErrMisconfiguredOutput},
		{"directory output is file", TargetDirectory, func(o *Options) { o.OutputPath = existingFile }, ErrMisconfiguredOutput},
		{"directory shows css", TargetDirectory, func(o *Options) { o.OutputPath, o.ShowCSS = t.TempDir(), true }, ErrInvalidOptions},
		{"override without href", TargetFile, func(o *Options) { o.Fallback = config.FallbackModeOverride }, ErrInvalidOptions},
		{"href without override", TargetFile, func(o *Options) {
			o.Fallback, o.FallbackHref = config.FallbackModeOriginal, "/x.css"
		}, ErrInvalidOptions},
		{"override with href", TargetFile, func(o *Options) {
			o.Fallback, o.FallbackHref = config.FallbackModeOverride, "/x.css"
		}, nil},
		{"scoped without class", TargetFile, func(o *Options) { o.Mode, o.ReduceClass = config.ScanModeScoped, "" }, ErrInvalidOptions},
		{"unknown mode", TargetFile, func(o *Options) { o.Mode = config.ScanMode(42) }, ErrInvalidOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions(t)
			tt.modify(o)
			err := o.Validate(tt.target)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTarget_String(t *testing.T) {
	for target, want := range map[Target]string{TargetFile: "file", TargetDirectory: "directory", TargetArchive: "archive"} {
		if target.String() != want {
			t.Errorf("String() = %q, want %q", target.String(), want)
		}
	}
}
