package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeData(rec, map[string]int{"total": 3}, map[string]int{"page": 1})

	assert.Equal(t, 200, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	assert.Nil(t, env.Errors)
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, 422, "field is required", "another error")

	assert.Equal(t, 422, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, []string{"field is required", "another error"}, env.Errors)
	assert.Nil(t, env.Data)
}
