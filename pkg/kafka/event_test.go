package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ratedPayload struct {
	PropertyID string  `json:"property_id"`
	Value      float64 `json:"value"`
	Amount     int     `json:"amount"`
}

func TestNewEvent(t *testing.T) {
	payload := ratedPayload{PropertyID: "prop-1", Value: 100, Amount: 1}

	evt, err := NewEvent("rbnb.property.rated", "prop-1", "property", "property-service", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, "rbnb.property.rated", evt.EventType)
	assert.Equal(t, "prop-1", evt.AggregateID)
	assert.Equal(t, "property", evt.AggregateType)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestEvent_MarshalCarriesPayload(t *testing.T) {
	evt, err := NewEvent("rbnb.property.rated", "prop-1", "property", "property-service",
		ratedPayload{PropertyID: "prop-1", Value: 80, Amount: 2})
	require.NoError(t, err)

	raw, err := evt.Marshal()
	require.NoError(t, err)

	var decoded struct {
		EventID string       `json:"event_id"`
		Data    ratedPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, evt.EventID, decoded.EventID)
	assert.Equal(t, 80.0, decoded.Data.Value)
	assert.Equal(t, 2, decoded.Data.Amount)
}

func TestEvent_WithCorrelationID(t *testing.T) {
	evt, err := NewEvent("rbnb.property.created", "prop-1", "property", "property-service", ratedPayload{})
	require.NoError(t, err)

	evt.WithCorrelationID("corr-1")
	assert.Equal(t, "corr-1", evt.CorrelationID)

	evt.WithCorrelationID("")
	assert.Equal(t, "corr-1", evt.CorrelationID)
}
