package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	f, err := NewFilter(
		[]string{"**/*.txt", "**/*.md"},
		[]string{".git", "node_modules", "*.tmp.md", "build/out/**"},
	)
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"a.txt", true},
		{"docs/guide.md", true},
		{"deep/nested/dir/notes.txt", true},
		{"main.go", false},
		{".git/HEAD.txt", false},
		{"web/node_modules/pkg/readme.md", false},
		{"draft.tmp.md", false},
		{"build/out/report.txt", false},
		{"build/report.txt", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(tt.path))
		})
	}
}

func TestFilter_ExcludedDirectories(t *testing.T) {
	f, err := NewFilter(nil, []string{".docidx", "vendor/**"})
	require.NoError(t, err)

	assert.True(t, f.Excluded(".docidx"))
	assert.True(t, f.Excluded("sub/.docidx"))
	assert.True(t, f.Excluded("vendor/lib"))
	assert.False(t, f.Excluded("src"))
	assert.False(t, f.Excluded("."))
}

func TestFilter_EmptyIncludeMatchesEverything(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)

	assert.True(t, f.Match("any/file.bin"))
}

func TestNewFilter_RejectsInvalidPattern(t *testing.T) {
	_, err := NewFilter([]string{"[unclosed"}, nil)

	assert.Error(t, err)
}
