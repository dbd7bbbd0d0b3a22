package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

func sampleEvent() inventory.MovementEvent {
	from, to := int64(1), int64(2)
	return inventory.MovementEvent{
		EventID: "evt-1",
		Movement: entity.StockMovement{
			ID:           42,
			ProductID:    7,
			Quantity:     decimal.RequireFromString("3.5"),
			Type:         entity.MovementTypeTRANSFER,
			LocationFrom: &from,
			LocationTo:   &to,
			CreatedBy:    "u-1",
		},
		Balances: []entity.Balance{
			{ProductID: 7, LocationID: 1, Quantity: decimal.RequireFromString("6.5")},
			{ProductID: 7, LocationID: 2, Quantity: decimal.RequireFromString("3.5")},
		},
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublisher_EnviaEventoConClaveDeProducto(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	var got *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		got = msg
		return nil
	})
	p := NewPublisherWithProducer(producer, "stock.movements", zerolog.Nop())

	require.NoError(t, p.PublishMovementRecorded(context.Background(), sampleEvent()))
	require.NoError(t, p.Close())

	require.NotNil(t, got)
	assert.Equal(t, "stock.movements", got.Topic)
	key, err := got.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "product_7", string(key))

	raw, err := got.Value.Encode()
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, EventTypeMovementRecorded, body["event_type"])
	assert.Equal(t, "3.5", body["quantity"])
	assert.Equal(t, "TRANSFER", body["type"])
	assert.Len(t, body["balances"], 2)

	var eventType string
	for _, h := range got.Headers {
		if string(h.Key) == "event_type" {
			eventType = string(h.Value)
		}
	}
	assert.Equal(t, EventTypeMovementRecorded, eventType)
}

func TestPublisher_ErrorDelBroker(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(errors.New("broker caído"))
	p := NewPublisherWithProducer(producer, "stock.movements", zerolog.Nop())

	err := p.PublishMovementRecorded(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evt-1")
	require.NoError(t, p.Close())
}
