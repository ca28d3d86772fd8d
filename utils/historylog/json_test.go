package historylog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Recorder itself needs a live Postgres connection (Open pings and
// creates a table), so it isn't exercised by a unit test here; only the
// pure JSONB-encoding helper it depends on is.

func TestMarshalJSONBNil(t *testing.T) {
	s, err := marshalJSONB(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)
}

func TestMarshalJSONBValue(t *testing.T) {
	s, err := marshalJSONB(map[string]interface{}{"model": "gpt-4"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"gpt-4"}`, s)
}
