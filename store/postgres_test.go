package store

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlug(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		slug, err := generateSlug()
		require.NoError(t, err)
		assert.Regexp(t, "^[0-9a-f]{8}$", slug)
		seen[slug] = true
	}
	assert.Greater(t, len(seen), 90, "slugs should be random")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.False(t, isUniqueViolation(nil))
}

func TestMarshalJSONNil(t *testing.T) {
	data, err := marshalJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestUnmarshalJSONEmpty(t *testing.T) {
	var v map[string]any
	require.NoError(t, unmarshalJSON(nil, &v))
	assert.Nil(t, v)

	require.NoError(t, unmarshalJSON([]byte(`{"a":1}`), &v))
	assert.Equal(t, map[string]any{"a": 1.0}, v)
}
