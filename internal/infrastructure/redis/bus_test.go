package redis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/ocxers/internal/services/realtime"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	frame, err := realtime.Encode(realtime.LoginRequired())
	require.NoError(t, err)
	payload, err := json.Marshal(realtime.Relayed{Origin: "hub-a", Email: "ana@example.com", Frame: frame})
	require.NoError(t, err)

	msg, err := decode(string(payload))
	require.NoError(t, err)
	assert.Equal(t, "hub-a", msg.Origin)
	assert.Equal(t, "ana@example.com", msg.Email)
	assert.JSONEq(t, string(frame), string(msg.Frame))

	_, err = decode(`{"email":"ana@example.com"}`)
	assert.Error(t, err)
	_, err = decode(`not json`)
	assert.Error(t, err)
}
