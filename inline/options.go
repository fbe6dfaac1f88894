package inline

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"dropcss/config"
)

var (
	// ErrInputNotFound is returned when processing target does not exist.
	ErrInputNotFound = errors.New("input source was not found")
	// ErrMisconfiguredOutput is returned when batch processing has no usable
	// output location.
	ErrMisconfiguredOutput = errors.New("output is misconfigured")
	// ErrInvalidOptions is returned for contradictory option combinations.
	ErrInvalidOptions = errors.New("invalid options")
)

// Target is the kind of processing target.
type Target int

const (
	TargetFile Target = iota
	TargetDirectory
	TargetArchive
)

func (t Target) String() string {
	switch t {
	case TargetDirectory:
		return "directory"
	case TargetArchive:
		return "archive"
	default:
		return "file"
	}
}

// Options control single run. Configured processing values could be changed
// by command line before validation.
type Options struct {
	config.ProcessingConfig

	// ExplicitCSSPath names stylesheet to inline as is instead of reducing
	// referenced ones.
	ExplicitCSSPath string
	// OutputPath is output file for a single document or output root for
	// batch processing.
	OutputPath string
	Recursive  bool
	// ShowCSS prints produced stylesheet instead of the document.
	ShowCSS bool

	// Stdout receives document or stylesheet when no output path is set,
	// os.Stdout when nil.
	Stdout io.Writer
}

// NewOptions creates options from configuration.
func NewOptions(cfg *config.ProcessingConfig) *Options {
	return &Options{ProcessingConfig: *cfg}
}

func (o *Options) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

// Validate checks options for the target kind. It has to be called before
// anything is processed.
func (o *Options) Validate(t Target) error {
	var err error
	if o.ShowCSS && t != TargetFile {
		err = multierr.Append(err, fmt.Errorf("%w: inlined css could be shown only when processing single file, not %s", ErrInvalidOptions, t))
	}
	if !o.Mode.IsValid() {
		err = multierr.Append(err, fmt.Errorf("%w: unknown scan mode %d", ErrInvalidOptions, o.Mode))
	}
	if o.Mode == config.ScanModeScoped && len(o.ReduceClass) == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: scoped mode requires reduction class", ErrInvalidOptions))
	}
	if !o.Fallback.IsValid() {
		err = multierr.Append(err, fmt.Errorf("%w: unknown fallback mode %d", ErrInvalidOptions, o.Fallback))
	}
	if o.Fallback == config.FallbackModeOverride && len(o.FallbackHref) == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: fallback override requires href", ErrInvalidOptions))
	}
	if len(o.FallbackHref) > 0 && o.Fallback != config.FallbackModeOverride {
		err = multierr.Append(err, fmt.Errorf("%w: fallback href is only used with override mode, not %s", ErrInvalidOptions, o.Fallback))
	}
	if err != nil {
		return err
	}

	if t == TargetFile {
		return nil
	}
	if len(o.OutputPath) == 0 {
		return fmt.Errorf("%w: processing %s requires output directory", ErrMisconfiguredOutput, t)
	}
	if fi, e := os.Stat(o.OutputPath); e == nil && !fi.IsDir() {
		return fmt.Errorf("%w: output (%s) exists and is not a directory", ErrMisconfiguredOutput, o.OutputPath)
	}
	return nil
}
