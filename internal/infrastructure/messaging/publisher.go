// Package messaging publica los eventos del libro de stock en Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/inventory"
)

// EventTypeMovementRecorded tipo del evento emitido tras cada admisión.
const EventTypeMovementRecorded = "stock.movement.recorded"

var _ inventory.EventPublisher = (*Publisher)(nil)

// Publisher productor Kafka síncrono. La clave del mensaje es el producto,
// así los eventos de un mismo producto conservan su orden dentro de la partición.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

// NewProducerConfig configuración del productor: acks de todas las réplicas y reintentos acotados.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// NewPublisher conecta con los brokers.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka: crear productor: %w", err)
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("publicador Kafka inicializado")
	return NewPublisherWithProducer(producer, topic, log), nil
}

// NewPublisherWithProducer usa un productor ya creado (pruebas con sarama/mocks).
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, log: log}
}

type balancePayload struct {
	LocationID int64  `json:"location_id"`
	Balance    string `json:"balance"`
}

type movementRecordedPayload struct {
	EventID      string           `json:"event_id"`
	EventType    string           `json:"event_type"`
	OccurredAt   time.Time        `json:"occurred_at"`
	MovementID   int64            `json:"movement_id"`
	ProductID    int64            `json:"product_id"`
	Type         string           `json:"type"`
	Quantity     string           `json:"quantity"`
	LocationFrom *int64           `json:"location_from,omitempty"`
	LocationTo   *int64           `json:"location_to,omitempty"`
	Reference    string           `json:"reference,omitempty"`
	ReversalOf   *int64           `json:"reversal_of,omitempty"`
	CreatedBy    string           `json:"created_by"`
	Balances     []balancePayload `json:"balances"`
}

func newPayload(e inventory.MovementEvent) movementRecordedPayload {
	m := e.Movement
	p := movementRecordedPayload{
		EventID:      e.EventID,
		EventType:    EventTypeMovementRecorded,
		OccurredAt:   e.OccurredAt.UTC(),
		MovementID:   m.ID,
		ProductID:    m.ProductID,
		Type:         string(m.Type),
		Quantity:     m.Quantity.String(),
		LocationFrom: m.LocationFrom,
		LocationTo:   m.LocationTo,
		Reference:    m.Reference,
		ReversalOf:   m.ReversalOf,
		CreatedBy:    m.CreatedBy,
	}
	for _, b := range e.Balances {
		p.Balances = append(p.Balances, balancePayload{LocationID: b.LocationID, Balance: b.Quantity.String()})
	}
	return p
}

// PublishMovementRecorded envía el evento con el contexto de traza en las cabeceras.
func (p *Publisher) PublishMovementRecorded(ctx context.Context, event inventory.MovementEvent) error {
	ctx, span := otel.Tracer("pcp-stock-ledger/messaging").Start(ctx, "kafka.publish.movement_recorded",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
			attribute.String("event.id", event.EventID),
			attribute.Int64("movement.id", event.Movement.ID),
			attribute.Int64("product.id", event.Movement.ProductID),
		),
	)
	defer span.End()

	body, err := json.Marshal(newPayload(event))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal")
		return fmt.Errorf("kafka: serializar evento: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(EventTypeMovementRecorded)},
		{Key: []byte("event_id"), Value: []byte(event.EventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(fmt.Sprintf("product_%d", event.Movement.ProductID)),
		Value:   sarama.ByteEncoder(body),
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		return fmt.Errorf("kafka: enviar evento %s: %w", event.EventID, err)
	}
	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	p.log.Debug().
		Str("event_id", event.EventID).
		Int64("movement_id", event.Movement.ID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("evento de movimiento publicado")
	return nil
}

// Close cierra el productor.
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
