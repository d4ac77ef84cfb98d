package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/port"
)

// DefaultIncludes matches the document formats that have a parser.
var DefaultIncludes = []string{"*.pdf", "*.csv", "*.txt"}

// Walker lists the regular files directly inside a directory whose names
// match an include pattern and no exclude pattern. Symlinks to regular
// files count as files. Matching is case-insensitive.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	return &Walker{
		includes: lowerAll(includes),
		excludes: lowerAll(excludes),
	}
}

// Walk returns matching files in lexicographic name order.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var files []port.FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		lower := strings.ToLower(name)
		if !w.shouldInclude(lower) || w.shouldExclude(lower) {
			continue
		}
		// Stat follows symlinks; a dangling link is not a document.
		info, err := os.Stat(filepath.Join(root, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, port.FileInfo{
			Path:    filepath.Join(root, name),
			Name:    name,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
	}
	return files, nil
}

func (w *Walker) shouldInclude(name string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(name string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func lowerAll(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.ToLower(p)
	}
	return out
}

// Matches reports whether a file name passes the include and exclude
// patterns.
func (w *Walker) Matches(name string) bool {
	lower := strings.ToLower(name)
	return w.shouldInclude(lower) && !w.shouldExclude(lower)
}
