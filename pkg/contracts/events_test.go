package contracts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		EventID:      uuid.NewString(),
		EventType:    EventOrderCreated,
		EventVersion: 3,
		OccurredOn:   time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		OrderID:      uuid.NewString(),
		UserID:       uuid.NewString(),
		Status:       "PAID",
		TotalAmount:  89.80,
		Currency:     "USD",
		Items: []EventItem{
			{ProductID: uuid.NewString(), ProductName: "Keyboard", Price: 49.90, Currency: "USD", Quantity: 1, Total: 49.90},
			{ProductID: uuid.NewString(), ProductName: "Mouse", Price: 19.95, Currency: "USD", Quantity: 2, Total: 39.90},
		},
		CorrelationID: uuid.NewString(),
		CausationID:   uuid.NewString(),
	}
}

func TestEventRoundTrip(t *testing.T) {
	event := sampleEvent()

	data, err := event.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, event.OccurredOn.Equal(decoded.OccurredOn))
	decoded.OccurredOn = event.OccurredOn
	assert.Equal(t, event, decoded)
}

func TestEventKeyIsOrderID(t *testing.T) {
	event := sampleEvent()
	assert.Equal(t, event.OrderID, event.Key())
}

func TestDecodeEventRejectsMissingMandatoryFields(t *testing.T) {
	broken := func(mutate func(*Event)) []byte {
		e := sampleEvent()
		mutate(&e)
		data, _ := e.Encode()
		return data
	}

	cases := map[string]func(*Event){
		"event_id": func(e *Event) { e.EventID = "" },
		"type":     func(e *Event) { e.EventType = "" },
		"order_id": func(e *Event) { e.OrderID = "" },
		"user_id":  func(e *Event) { e.UserID = "" },
		"status":   func(e *Event) { e.Status = "" },
		"currency": func(e *Event) { e.Currency = "" },
		"items":    func(e *Event) { e.Items = nil },
		"tracing":  func(e *Event) { e.CorrelationID = "" },
	}
	for name, mutate := range cases {
		_, err := DecodeEvent(broken(mutate))
		assert.Error(t, err, name)
	}

	_, err := DecodeEvent([]byte("{not json"))
	assert.Error(t, err)
}
