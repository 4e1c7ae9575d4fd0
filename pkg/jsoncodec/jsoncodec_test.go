package jsoncodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	doc, err := ParseString(`{"id": 1, "user": "alice", "tags": ["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":   float64(1),
		"user": "alice",
		"tags": []any{"a"},
	}, doc)

	doc, err = ParseString(`"just a string"`)
	require.NoError(t, err)
	assert.Equal(t, "just a string", doc)

	invalid := []string{"", "not-json", `{"id": 1`, `{"id": 1} trailing`, `{'id': 1}`}
	for _, in := range invalid {
		_, err := ParseString(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(map[string]any{"user": "alice"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, "alice", out["user"])
}
