// Package archive builds Walk abstraction on top of "archive/zip".
package archive

import (
	"archive/zip"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"golang.org/x/text/encoding"
)

// Entry is a file in archive visited by Walk.
type Entry struct {
	// Name is slash separated path inside archive, decoded when archive
	// does not mark it as UTF-8 and code page was supplied.
	Name string
	File *zip.File
}

// MatchFunc decides whether entry with given (decoded) name is visited.
type MatchFunc func(name string) bool

// WalkFunc is the type of the function called for each file in archive
// visited by Walk. The archive argument contains path to archive passed to
// Walk. If an error is returned, processing stops.
type WalkFunc func(archive string, entry Entry) error

// Walk calls walkFn for every file in archive satisfying match, in natural
// order of names. Archive with entries that have absolute paths or path
// traversal components ("..") is rejected as a whole before anything is
// visited. When cp is not nil it is used to decode names not marked as UTF-8.
func Walk(archive string, cp encoding.Encoding, match MatchFunc, walkFn WalkFunc) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		names   []string
		entries = make(map[string]Entry)
	)
	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if cp != nil && f.FileHeader.NonUTF8 {
			decoded, err := cp.NewDecoder().String(name)
			if err != nil {
				return fmt.Errorf("zip entry %q: unable to decode name: %w", name, err)
			}
			name = decoded
		}
		if match != nil && !match(name) {
			continue
		}
		if _, ok := entries[name]; !ok {
			names = append(names, name)
		}
		entries[name] = Entry{Name: name, File: f}
	}

	sort.Sort(natural.StringSlice(names))
	for _, name := range names {
		if err := walkFn(archive, entries[name]); err != nil {
			return err
		}
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
