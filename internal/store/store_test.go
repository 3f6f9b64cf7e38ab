package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjkroege/markpane/rich"
)

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Get(ctx, "doc.md#L3")
	assert.ErrorIs(t, err, ErrNotFound)

	want := rich.Transform{PanX: 12.5, PanY: -4, Zoom: 1.5}
	require.NoError(t, s.Put(ctx, "doc.md#L3", want))
	got, err := s.Get(ctx, "doc.md#L3")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second Put replaces the first.
	want.Zoom = 2
	require.NoError(t, s.Put(ctx, "doc.md#L3", want))
	got, err = s.Get(ctx, "doc.md#L3")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, "doc.md#L3"))
	require.NoError(t, s.Delete(ctx, "doc.md#L3"))
	_, err = s.Get(ctx, "doc.md#L3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a.md#L1", rich.Transform{Zoom: 3}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "a.md#L1")
	require.NoError(t, err)
	assert.Equal(t, rich.Transform{Zoom: 3}, got)
}

func TestStoreMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "x", rich.Transform{PanX: 1, Zoom: 1}))
	got, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, rich.Transform{PanX: 1, Zoom: 1}, got)
}
