package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/snippet"
)

func testCtx() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func testModel() *config.Model {
	return &config.Model{
		Collections: []*config.Collection{
			{
				Name: "work",
				Snippets: []*snippet.Snippet{
					{ID: "sig-1", Trigger: "/sig", Body: "Best,\nPat", Collection: "work"},
					{ID: "mail-1", Trigger: "/mail", Body: "Hello", Collection: "work"},
				},
			},
			{
				Name: "personal",
				Snippets: []*snippet.Snippet{
					{ID: "sig-2", Trigger: "/sig", Body: "Cheers", Collection: "personal"},
				},
			},
			{
				Name:       "legal",
				Restricted: true,
				Snippets: []*snippet.Snippet{
					{ID: "disc-1", Trigger: "/disc", Body: "Confidential.", Collection: "legal"},
				},
			},
		},
	}
}

func TestRegistryLookupFullForm(t *testing.T) {
	r := NewRegistryFromModel(testModel())

	t.Run("by id", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "work:/sig:sig-1", nil)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "sig-1", s.ID)
	})

	t.Run("falls back to trigger when id unknown", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "work:/mail:stale-id", nil)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "mail-1", s.ID)
	})

	t.Run("unknown collection is not found", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "nope:/sig:sig-1", nil)
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestRegistryLookupBareTrigger(t *testing.T) {
	r := NewRegistryFromModel(testModel())

	t.Run("scans collections in load order", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "/sig", nil)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "sig-1", s.ID, "work is loaded before personal")
	})

	t.Run("reachable set narrows the scan", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "/sig", []string{"personal"})
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "sig-2", s.ID)
	})

	t.Run("missing trigger is not found", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "/nope", nil)
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestRegistryRestrictedCollections(t *testing.T) {
	r := NewRegistryFromModel(testModel())

	t.Run("full form without access is a permission error", func(t *testing.T) {
		_, err := r.Lookup(testCtx(), "legal:/disc:disc-1", nil)
		var perm *PermissionError
		require.ErrorAs(t, err, &perm)
		assert.Equal(t, "legal", perm.Collection)
	})

	t.Run("full form with access resolves", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "legal:/disc:disc-1", []string{"legal"})
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "disc-1", s.ID)
	})

	t.Run("bare scan does not leak restricted collections", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "/disc", nil)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("bare scan includes restricted when requested", func(t *testing.T) {
		s, err := r.Lookup(testCtx(), "/disc", []string{"legal"})
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "disc-1", s.ID)
	})
}

func TestRegistryInvalidRefFallsBackToRawTrigger(t *testing.T) {
	model := testModel()
	model.Collections[0].Snippets = append(model.Collections[0].Snippets,
		&snippet.Snippet{ID: "odd-1", Trigger: "a:b", Body: "odd", Collection: "work"})
	r := NewRegistryFromModel(model)

	s, err := r.Lookup(testCtx(), "a:b", nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "odd-1", s.ID)
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistryFromModel(testModel())

	r.Replace(&config.Model{Collections: []*config.Collection{
		{
			Name: "fresh",
			Snippets: []*snippet.Snippet{
				{ID: "f-1", Trigger: "/fresh", Body: "new", Collection: "fresh"},
			},
		},
	}})

	s, err := r.Lookup(testCtx(), "/sig", nil)
	require.NoError(t, err)
	assert.Nil(t, s, "old snippets are gone after replace")

	s, err = r.Lookup(testCtx(), "/fresh", nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	names, err := r.Collections(testCtx())
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, names)
}

func TestRegistryPopulateReplacesByName(t *testing.T) {
	r := NewRegistryFromModel(testModel())

	r.Populate(&config.Model{Collections: []*config.Collection{
		{
			Name: "work",
			Snippets: []*snippet.Snippet{
				{ID: "sig-9", Trigger: "/sig", Body: "v2", Collection: "work"},
			},
		},
	}})

	s, err := r.Lookup(testCtx(), "work:/sig:sig-9", nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "v2", s.Body)

	names, err := r.Collections(testCtx())
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "personal", "legal"}, names, "order is preserved on in-place replace")
}
