package dagaz

import (
	"fmt"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTagSet(t *testing.T) {
	var s TagSet
	require.True(t, s.IsEmpty())

	s = s.Set(1 | 4)
	require.True(t, s.IsSet(1))
	require.True(t, s.IsSet(1|4))
	require.False(t, s.IsSet(1|2))
	require.True(t, s.IsAnySet(2|4))
	require.False(t, s.IsAnySet(2|8))

	s = s.Clear(1)
	require.Equal(t, TagSet(4), s)
}

func TestFilterByTags(t *testing.T) {
	tests := []struct {
		name     string
		tags     TagSet
		include  TagSet
		exclude  TagSet
		filtered bool
	}{
		{"no filter", 0, 0, 0, false},
		{"untagged with include", 0, 1, 0, true},
		{"included", 3, 1, 0, false},
		{"excluded", 3, 0, 2, true},
		{"included and excluded", 3, 1, 2, true},
		{"untagged with exclude", 0, 0, 2, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.filtered, filterByTags(test.tags, test.include, test.exclude))
		})
	}
}

func TestTagRegistry(t *testing.T) {
	r := NewTagRegistry()

	static, err := r.Register("static")
	require.NoError(t, err)
	dynamic, err := r.Register("dynamic")
	require.NoError(t, err)
	require.NotEqual(t, static, dynamic)

	again, err := r.Register("static")
	require.NoError(t, err)
	require.Equal(t, static, again)

	tag, ok := r.Lookup("dynamic")
	require.True(t, ok)
	require.Equal(t, dynamic, tag)

	_, ok = r.Lookup("editor")
	require.False(t, ok)

	both, err := r.Parse("dynamic", "static")
	require.NoError(t, err)
	require.Equal(t, static|dynamic, both)
	require.Equal(t, []string{"static", "dynamic"}, r.Names(both))

	t.Run("too many tags", func(t *testing.T) {
		r := NewTagRegistry()
		for i := 0; i < MaxTags; i++ {
			_, err := r.Register(fmt.Sprintf("tag-%d", i))
			require.NoError(t, err)
		}

		_, err := r.Register("one-more")
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeTooManyTags))

		_, err = r.Register("tag-0")
		require.NoError(t, err)
	})
}
