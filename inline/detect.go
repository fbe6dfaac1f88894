package inline

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/h2non/filetype"
)

// isArchiveFile checks extension first and then content of the file.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// filetype needs at most 262 bytes
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// documentPattern selects html documents directly under the root or, when
// recursive, anywhere in the tree.
func documentPattern(recursive bool) string {
	if recursive {
		return "**/*.{htm,html}"
	}
	return "*.{htm,html}"
}

// isDocument matches slash separated relative path against pattern ignoring
// case.
func isDocument(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, strings.ToLower(filepath.ToSlash(name)))
	return err == nil && ok
}
