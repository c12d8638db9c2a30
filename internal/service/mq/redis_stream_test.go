package mq

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamMessage(t *testing.T) {
	msg := decodeStreamMessage("market_events_aggregate_confirmed", redis.XMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"key": "abc", "payload": `{"kind":"order"}`},
	})
	require.NotNil(t, msg)
	assert.Equal(t, "1-0", msg.ID)
	assert.Equal(t, "abc", msg.Key)
	assert.Equal(t, "market_events_aggregate_confirmed", msg.Topic)
	assert.JSONEq(t, `{"kind":"order"}`, string(msg.Payload))

	assert.Nil(t, decodeStreamMessage("t", redis.XMessage{ID: "2-0", Values: map[string]interface{}{"key": "abc"}}))
}
