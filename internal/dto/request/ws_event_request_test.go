package request

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBareValuePayloads(t *testing.T) {
	var conv ConversationIdRequest
	require.NoError(t, json.Unmarshal([]byte(`"C123"`), &conv))
	assert.Equal(t, "C123", conv.ConversationId)

	var msg MessageIdRequest
	require.NoError(t, json.Unmarshal([]byte(`"M9"`), &msg))
	assert.Equal(t, "M9", msg.MessageId)

	var status PresenceStatusRequest
	require.NoError(t, json.Unmarshal([]byte(`"away"`), &status))
	assert.Equal(t, "away", status.Status)

	var get PresenceGetRequest
	require.NoError(t, json.Unmarshal([]byte(`["u1","u2"]`), &get))
	assert.Equal(t, []string{"u1", "u2"}, get.UserIds)
}

func TestObjectPayloads(t *testing.T) {
	var conv ConversationIdRequest
	require.NoError(t, json.Unmarshal([]byte(`{"conversationId":"C1"}`), &conv))
	assert.Equal(t, "C1", conv.ConversationId)

	var get PresenceGetRequest
	require.NoError(t, json.Unmarshal([]byte(`{"userIds":["a"]}`), &get))
	assert.Equal(t, []string{"a"}, get.UserIds)

	var status PresenceStatusRequest
	assert.Error(t, json.Unmarshal([]byte(`123`), &status))
}
