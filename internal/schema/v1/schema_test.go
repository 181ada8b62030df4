package v1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObservationSchema(t *testing.T) {
	o := NewObservationSchema("tick-1", "UCabc", 42)
	o.Subs, o.Views, o.Videos = 50, 1000, 7

	assert.Equal(t, 1, o.SchemaVersion)
	assert.Equal(t, TypeChannelStatistics, o.Type)
	assert.Len(t, o.TraceID, 32)
	assert.NotEmpty(t, o.Timestamp)

	o.SetTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	data, err := o.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "channel_statistics", decoded["type"])
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded["ts"])
	assert.Equal(t, "tick-1", decoded["tick_id"])
	assert.Equal(t, "UCabc", decoded["serial"])
	assert.EqualValues(t, 42, decoded["key"])
	assert.EqualValues(t, 50, decoded["subs"])
	assert.EqualValues(t, 1000, decoded["views"])
	assert.EqualValues(t, 7, decoded["videos"])
}

func TestTraceIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateTraceID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
