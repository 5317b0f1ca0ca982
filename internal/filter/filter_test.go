package filter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_NormalizesEmpty(t *testing.T) {
	f := Filter{}
	assert.True(t, f.Set(KeyResource, "user"))
	assert.False(t, f.Set(KeyResource, "user"), "same value is not a change")
	assert.True(t, f.Set(KeyResource, ""))
	_, ok := f[KeyResource]
	assert.False(t, ok, "empty value removes the key")
	assert.False(t, f.Set(KeyResource, ""), "removing a missing key is not a change")
}

func TestEncode_OnlyNonEmptyKeys(t *testing.T) {
	steps := []struct {
		key, value string
		want       string
	}{
		{KeyResource, "user", "resource=user"},
		{KeyAction, "read", "action=read&resource=user"},
		{KeyName, "create user", "action=read&name=create+user&resource=user"},
		{KeyAction, "", "name=create+user&resource=user"},
		{KeyResource, "", "name=create+user"},
		{KeyName, "", ""},
	}
	f := Filter{}
	for _, s := range steps {
		f.Set(s.key, s.value)
		got := f.Encode()
		assert.Equal(t, s.want, got)

		back := FromQuery(got)
		assert.True(t, f.Equal(back), "encoding must reconstruct the filter: %q", got)
	}
}

func TestCompose(t *testing.T) {
	base := "https://api.example.test/api/v1/permissions"
	assert.Equal(t, base, Filter{}.Compose(base))

	f := Filter{KeyAction: "delete"}
	assert.Equal(t, base+"?action=delete", f.Compose(base))

	g := f.Clone()
	g.Set(KeyAction, "read")
	assert.NotEqual(t, f.Compose(base), g.Compose(base), "each filter change yields a new key")
}

func TestFromValues_IgnoresUnknownAndEmpty(t *testing.T) {
	v := url.Values{}
	v.Set("resource", "invoice")
	v.Set("action", "")
	v.Set("page", "2")
	f := FromValues(v)
	require.Len(t, f, 1)
	assert.Equal(t, "invoice", f.Get(KeyResource))
}

func TestFromQuery(t *testing.T) {
	f := FromQuery("?name=abc&resource=user")
	assert.Equal(t, "abc", f.Get(KeyName))
	assert.Equal(t, "user", f.Get(KeyResource))

	assert.Empty(t, FromQuery("%zz"))
	assert.Empty(t, FromQuery(""))
}

func TestClone_IsIndependent(t *testing.T) {
	f := Filter{KeyName: "a"}
	c := f.Clone()
	c.Set(KeyName, "b")
	assert.Equal(t, "a", f.Get(KeyName))
}

func TestIsKey(t *testing.T) {
	for _, k := range Keys {
		assert.True(t, IsKey(k), k)
	}
	assert.False(t, IsKey("page"))
	assert.False(t, IsKey(""))
}
