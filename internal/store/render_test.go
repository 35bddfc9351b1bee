package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docidx/internal/query"
)

func TestToFTSMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"flutter", `"flutter"`},
		{"Flutter OR Rust", `("Flutter" OR "Rust")`},
		{"a AND b", `("a" AND "b")`},
		{"tant*", `"tant" *`},
		{`"search library"`, `"search library"`},
		{"a AND NOT b", `(("a") NOT "b")`},
		{"a OR b NOT c", `(("a" OR "b") NOT "c")`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := query.Parse(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.want, toFTSMatch(prune(n)))
		})
	}
}

func TestFTSQuote_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `"a""b"`, ftsQuote(`a"b`))
}

func TestPrune(t *testing.T) {
	tests := []struct {
		input string
		want  string // empty means nothing can match
	}{
		{"rust", "rust"},
		{"-", ""},
		{"- OR rust", "rust"},
		{"- AND rust", ""},
		{"rust AND NOT -", "rust"},
		{"(- OR +) AND rust", ""},
		{"NOT rust", ""},
		{"(NOT a OR NOT b) AND c", ""},
		{"c AND NOT (NOT a OR NOT b)", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := query.Parse(tt.input)
			require.NoError(t, err)

			got := prune(n)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
