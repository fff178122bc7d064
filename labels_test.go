package critwatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabels(t *testing.T) {
	l := NewLabels()
	require.Nil(t, l.GetAll())

	t.Run("should set and read back", func(t *testing.T) {
		require.NoError(t, l.Set("host", "a"))
		require.Equal(t, map[string]string{"host": "a"}, l.GetAll())
	})

	t.Run("should validate keys", func(t *testing.T) {
		require.Error(t, l.Set("", "x"))
		require.Error(t, l.Set(strings.Repeat("k", 256), "x"))
		require.NoError(t, l.Set(strings.Repeat("k", 255), "x"))
	})

	t.Run("should return a copy", func(t *testing.T) {
		all := l.GetAll()
		all["host"] = "changed"
		require.Equal(t, "a", l.GetAll()["host"])
	})
}
