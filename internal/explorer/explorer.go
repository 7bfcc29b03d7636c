// Package explorer provides the file-browsing boundary: directory listings
// for the session's working directory and classification of files into AI
// message content.
package explorer

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry is one directory entry, directories sorted first.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDirectory"`
}

// ReadDir lists a directory, directories first, then lexicographic by name.
func ReadDir(path string) ([]Entry, error) {
	return ReadDirGlob(path, "")
}

// ReadDirGlob lists a directory like ReadDir, keeping only names matching the
// doublestar pattern when one is given.
func ReadDirGlob(path, pattern string) ([]Entry, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if pattern != "" {
			ok, err := doublestar.Match(pattern, d.Name())
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			if !ok {
				continue
			}
		}
		entries = append(entries, Entry{Name: d.Name(), IsDir: d.IsDir()})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}
