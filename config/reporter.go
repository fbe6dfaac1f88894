package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"dropcss/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates empty debug report. When destination could not be created
// report goes to a temporary file.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	f, err := os.Create(conf.Destination)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err != nil {
			return nil, fmt.Errorf("unable to create report: %w", err)
		}
	}
	return &Report{file: f, entries: make(map[string]entry)}, nil
}

// entry is either a file on disk, read when report is finalized (so logs are
// complete), or data captured at the time of a call.
type entry struct {
	path  string
	data  []byte
	stamp time.Time
}

// Report collects logs, effective configuration and produced stylesheets into
// zip archive. All methods could be called on nil Report, which means no
// report has been requested.
type Report struct {
	mu      sync.Mutex
	file    *os.File
	entries map[string]entry
}

// Name returns absolute name of the report archive.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	if n, err := filepath.Abs(r.file.Name()); err == nil {
		return n
	}
	return r.file.Name()
}

// Store remembers file to be put into report under name. File content is
// taken when report is closed.
func (r *Report) Store(name, file string) {
	if r == nil {
		return
	}
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// the same file could be registered more than once (panic log, for example)
	if old, exists := r.entries[name]; exists && old.path == file {
		return
	}
	r.entries[r.unique(name)] = entry{path: file, stamp: time.Now()}
}

// StoreData puts data into report under name. Names are versioned when
// already taken, so nothing stored is ever lost.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.unique(name)] = entry{data: slices.Clone(data), stamp: time.Now()}
}

// unique returns name or its numbered variant not yet present in report.
// Must be called with lock held.
func (r *Report) unique(name string) string {
	if _, exists := r.entries[name]; !exists {
		return name
	}
	ext := path.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", base, i, ext)
		if _, exists := r.entries[candidate]; !exists {
			return candidate
		}
	}
}

// Close writes all stored entries into report archive.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	defer r.file.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	arc := zip.NewWriter(r.file)
	if err := r.write(arc); err != nil {
		arc.Close()
		return err
	}
	return arc.Close()
}

func (r *Report) write(arc *zip.Writer) error {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)

	var manifest bytes.Buffer
	for _, name := range names {
		e := r.entries[name]
		origin := e.path
		if len(origin) == 0 {
			origin = "-"
		}
		fmt.Fprintf(&manifest, "%s\t%s\t%s\n", e.stamp.UTC().Format(time.RFC3339), name, origin)
	}
	if err := addFile(arc, "MANIFEST", time.Now(), &manifest); err != nil {
		return err
	}

	for _, name := range names {
		e := r.entries[name]
		if len(e.path) == 0 {
			if err := addFile(arc, name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}
		if err := addPath(arc, name, e.path); err != nil {
			return err
		}
	}
	return nil
}

// addPath adds file or directory tree, absent paths are ignored.
func addPath(arc *zip.Writer, name, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return nil
	}
	if info.Mode().IsRegular() {
		return addDiskFile(arc, name, src, info)
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.Walk(src, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		return addDiskFile(arc, path.Join(name, filepath.ToSlash(rel)), p, fi)
	})
}

func addDiskFile(arc *zip.Writer, name, src string, info os.FileInfo) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return addFile(arc, name, info.ModTime(), f)
}

func addFile(arc *zip.Writer, name string, t time.Time, src io.Reader) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: t})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
