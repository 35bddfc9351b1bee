package watcher

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which paths become documents.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates the globs. An empty include list matches every file.
// An exclude entry without a slash is matched against every path segment,
// so "node_modules" or "*.tmp" apply at any depth.
func NewFilter(include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Excluded reports whether rel, a file or directory, is excluded.
func (f *Filter) Excluded(rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	segments := strings.Split(rel, "/")
	for _, p := range f.exclude {
		if !strings.Contains(p, "/") {
			for _, seg := range segments {
				if ok, _ := doublestar.Match(p, seg); ok {
					return true
				}
			}
			continue
		}
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/")+"/**", rel); ok {
			return true
		}
	}
	return false
}

// Match reports whether the file at rel should be indexed.
func (f *Filter) Match(rel string) bool {
	if f.Excluded(rel) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
