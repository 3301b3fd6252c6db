package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `{"code":0,"data":"OK"}`, NewSuccess("OK").String())
	assert.Equal(t, `{"code":200,"message":"Welcome..."}`, NewMessage(200, "Welcome...").String())
	assert.Equal(t, `{"code":400,"err":"No file passed"}`, NewError(400, "No file passed").String())
}

func TestParseVariables(t *testing.T) {
	t.Parallel()
	vars, err := ParseVariables(nil)
	require.NoError(t, err)
	assert.Nil(t, vars)

	vars, err = ParseVariables([]byte(`{"id":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", vars["id"])

	_, err = ParseVariables([]byte(`{`))
	assert.Error(t, err)
}
