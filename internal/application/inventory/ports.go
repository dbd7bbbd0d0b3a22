package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Un error devuelto por fn provoca Rollback; nil provoca Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.BalanceRepository,
		locationRepo repository.LocationRepository,
	) error) error
}

// Metrics observador de la admisión de movimientos.
type Metrics interface {
	MovementAdmitted(movementType entity.MovementType, elapsed time.Duration)
	MovementRejected(reason string)
	AdmissionRetried()
	IntegrityAlarm()
}

// MovementEvent evento publicado tras confirmar un movimiento.
type MovementEvent struct {
	EventID    string
	Movement   entity.StockMovement
	Balances   []entity.Balance
	OccurredAt time.Time
}

// EventPublisher publica eventos del libro hacia consumidores externos (tableros, alertas).
type EventPublisher interface {
	PublishMovementRecorded(ctx context.Context, event MovementEvent) error
}

// Config parámetros de la admisión.
type Config struct {
	QuantityScale int32
	MaxAttempts   int
	RetryBackoff  time.Duration
	TxTimeout     time.Duration
}

// DefaultConfig valores por defecto: 4 decimales, 3 intentos, 50ms de espera inicial, 5s por movimiento.
func DefaultConfig() Config {
	return Config{
		QuantityScale: 4,
		MaxAttempts:   3,
		RetryBackoff:  50 * time.Millisecond,
		TxTimeout:     5 * time.Second,
	}
}

type nopMetrics struct{}

func (nopMetrics) MovementAdmitted(entity.MovementType, time.Duration) {}
func (nopMetrics) MovementRejected(string)                             {}
func (nopMetrics) AdmissionRetried()                                   {}
func (nopMetrics) IntegrityAlarm()                                     {}

type nopPublisher struct{}

func (nopPublisher) PublishMovementRecorded(context.Context, MovementEvent) error { return nil }
