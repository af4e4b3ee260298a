package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringListUnmarshal(t *testing.T) {
	t.Run("accepts a JSON array", func(t *testing.T) {
		var l StringList
		assert.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &l))
		assert.Equal(t, StringList{"a", "b"}, l)
	})

	t.Run("accepts a single string", func(t *testing.T) {
		var l StringList
		assert.NoError(t, json.Unmarshal([]byte(`"rest, fluids"`), &l))
		assert.Equal(t, StringList{"rest, fluids"}, l)
	})

	t.Run("empty string means no items", func(t *testing.T) {
		var l StringList
		assert.NoError(t, json.Unmarshal([]byte(`""`), &l))
		assert.Nil(t, l)
	})

	t.Run("rejects other shapes", func(t *testing.T) {
		var l StringList
		assert.Error(t, json.Unmarshal([]byte(`42`), &l))
	})
}
