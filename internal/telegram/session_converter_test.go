package telegram

import (
	"encoding/json"
	"testing"

	"github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToGotgprotoSession_WrapsVersionedData(t *testing.T) {
	input := &session.Data{
		DC:      2,
		Addr:    "149.154.167.40:443",
		AuthKey: []byte("test-auth-key-32-bytes-long-abc"),
	}

	result, err := ConvertToGotgprotoSession(input)
	require.NoError(t, err)
	require.NotNil(t, result)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Data, &parsed))

	assert.Equal(t, float64(1), parsed["Version"])
	data, ok := parsed["Data"].(map[string]interface{})
	require.True(t, ok, "Data should be a nested object")
	assert.Equal(t, float64(2), data["DC"])
	assert.Equal(t, "149.154.167.40:443", data["Addr"])
}

func TestConvertToGotgprotoSession_NilInput(t *testing.T) {
	result, err := ConvertToGotgprotoSession(nil)

	assert.Error(t, err)
	assert.Nil(t, result)
}
