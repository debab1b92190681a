package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions([]byte(`
maxRecDepth: 64
transparency: reducible
trace: [meta.isClass, meta.telescope]
approx:
  foApprox: true
  ctxApprox: true
log:
  level: debug
  json: true
`), "opts.yaml")
	require.NoError(t, err)

	assert.Equal(t, 64, opts.MaxRecDepth)
	assert.Equal(t, TransparencyReducible, opts.Transparency)
	assert.True(t, opts.TraceEnabled(TraceIsClass))
	assert.False(t, opts.TraceEnabled(TraceSynthInst))
	assert.Equal(t, ApproxOptions{FOApprox: true, CtxApprox: true}, opts.Approx)
	assert.Equal(t, LogOptions{Level: "debug", JSON: true}, opts.Log)
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions([]byte("{}"), "empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestParseOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"too shallow", "maxRecDepth: 2", "below the minimum"},
		{"transparency", "transparency: everything", "unknown transparency"},
		{"log level", "log: {level: loud}", "unknown log level"},
		{"yaml", "trace: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions([]byte(tt.doc), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxRecDepth: 100\n"), 0o644))
	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 100, opts.MaxRecDepth)

	_, err = LoadOptions(path + ".missing")
	assert.ErrorContains(t, err, "reading options")
}
