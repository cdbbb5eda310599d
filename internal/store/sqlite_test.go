package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/snippet"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "snippets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Import(testCtx(), testModel()))
	return s
}

func TestSQLiteLookup(t *testing.T) {
	s := newTestSQLite(t)

	t.Run("full form by id", func(t *testing.T) {
		snip, err := s.Lookup(testCtx(), "work:/sig:sig-1", nil)
		require.NoError(t, err)
		require.NotNil(t, snip)
		assert.Equal(t, "sig-1", snip.ID)
		assert.Equal(t, "Best,\nPat", snip.Body)
		assert.Equal(t, "work", snip.Collection)
	})

	t.Run("full form trigger fallback", func(t *testing.T) {
		snip, err := s.Lookup(testCtx(), "work:/mail:stale", nil)
		require.NoError(t, err)
		require.NotNil(t, snip)
		assert.Equal(t, "mail-1", snip.ID)
	})

	t.Run("bare trigger scans in collection order", func(t *testing.T) {
		snip, err := s.Lookup(testCtx(), "/sig", nil)
		require.NoError(t, err)
		require.NotNil(t, snip)
		assert.Equal(t, "sig-1", snip.ID)
	})

	t.Run("bare trigger with narrowed reachable set", func(t *testing.T) {
		snip, err := s.Lookup(testCtx(), "/sig", []string{"personal"})
		require.NoError(t, err)
		require.NotNil(t, snip)
		assert.Equal(t, "sig-2", snip.ID)
	})

	t.Run("restricted requires explicit access", func(t *testing.T) {
		_, err := s.Lookup(testCtx(), "legal:/disc:disc-1", nil)
		var perm *PermissionError
		require.ErrorAs(t, err, &perm)

		snip, err := s.Lookup(testCtx(), "legal:/disc:disc-1", []string{"legal"})
		require.NoError(t, err)
		require.NotNil(t, snip)

		snip, err = s.Lookup(testCtx(), "/disc", nil)
		require.NoError(t, err)
		assert.Nil(t, snip, "restricted collections are invisible to bare scans")
	})

	t.Run("not found", func(t *testing.T) {
		snip, err := s.Lookup(testCtx(), "/nope", nil)
		require.NoError(t, err)
		assert.Nil(t, snip)
	})
}

func TestSQLiteRoundTripsVariablesAndDependencies(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "snippets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	def := "World"
	model := &config.Model{Collections: []*config.Collection{
		{
			Name: "work",
			Snippets: []*snippet.Snippet{
				{
					ID:      "greet-1",
					Trigger: "/greet",
					Body:    "Hello {{name}} {{punct}}",
					Variables: []*snippet.Variable{
						{Name: "name", Prompt: "Who?", Default: def, HasDefault: true},
						{Name: "punct", Prompt: "Punctuation"},
					},
					Dependencies: []string{"/c", "/a", "/b"},
					Collection:   "work",
				},
			},
		},
	}}
	require.NoError(t, s.Import(testCtx(), model))

	snip, err := s.Lookup(testCtx(), "work:/greet:greet-1", nil)
	require.NoError(t, err)
	require.NotNil(t, snip)

	require.Len(t, snip.Variables, 2)
	assert.Equal(t, "name", snip.Variables[0].Name)
	assert.True(t, snip.Variables[0].HasDefault)
	assert.Equal(t, "World", snip.Variables[0].Default)
	assert.False(t, snip.Variables[1].HasDefault, "empty default and no default are distinct")

	assert.Equal(t, []string{"/c", "/a", "/b"}, snip.Dependencies, "declaration order survives the round trip")
}

func TestSQLiteReimportReplacesCollection(t *testing.T) {
	s := newTestSQLite(t)

	model := &config.Model{Collections: []*config.Collection{
		{
			Name: "work",
			Snippets: []*snippet.Snippet{
				{ID: "sig-1", Trigger: "/sig", Body: "v2", Collection: "work"},
			},
		},
	}}
	require.NoError(t, s.Import(testCtx(), model))

	snip, err := s.Lookup(testCtx(), "work:/sig:sig-1", nil)
	require.NoError(t, err)
	require.NotNil(t, snip)
	assert.Equal(t, "v2", snip.Body)

	snip, err = s.Lookup(testCtx(), "/mail", nil)
	require.NoError(t, err)
	assert.Nil(t, snip, "snippets absent from the re-import are dropped")

	names, err := s.Collections(testCtx())
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "personal", "legal"}, names)
}
