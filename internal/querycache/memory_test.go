package querycache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestMemory_GetSetExpiry(t *testing.T) {
	clk := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithNow(clk.now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "permissions|/permissions", []byte(`[]`), time.Minute))
	v, ok, err := m.Get(ctx, "permissions|/permissions")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[]`, string(v))

	clk.advance(time.Minute)
	_, ok, err = m.Get(ctx, "permissions|/permissions")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_DeletePrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "permissions|/permissions", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "permissions|/permissions?action=read", []byte("b"), time.Minute))
	require.NoError(t, m.Set(ctx, "groups|/groups", []byte("c"), time.Minute))

	require.NoError(t, m.DeletePrefix(ctx, "permissions|"))

	assert.Equal(t, 1, m.Len())
	_, ok, _ := m.Get(ctx, "groups|/groups")
	assert.True(t, ok)
}

func TestMemory_MaxSizeEvictsNearestExpiry(t *testing.T) {
	clk := &fakeNow{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithMaxSize(2), WithNow(clk.now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemory_OverwriteDoesNotEvict(t *testing.T) {
	m := NewMemory(WithMaxSize(1))
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, m.Set(ctx, "a", []byte("2"), time.Hour))

	v, ok, _ := m.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}
