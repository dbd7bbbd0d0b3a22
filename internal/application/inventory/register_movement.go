package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var tracer = otel.Tracer("pcp-stock-ledger/inventory")

// RegisterMovementUseCase admite movimientos en el libro de stock de forma transaccional:
// bloquea los saldos afectados (SELECT FOR UPDATE), valida contra el saldo del instante de
// admisión, anexa la fila y actualiza los saldos materializados en la misma transacción.
// Es todo o nada: un rechazo no escribe filas ni cambia saldos.
type RegisterMovementUseCase struct {
	txRunner  TxRunner
	movements repository.StockMovementRepository
	balances  repository.BalanceRepository
	catalog   repository.ProductCatalog
	validator inventory.Validator
	cfg       Config
	log       zerolog.Logger
	metrics   Metrics
	publisher EventPublisher
	now       func() time.Time
}

// Option ajusta dependencias opcionales del caso de uso.
type Option func(*RegisterMovementUseCase)

// WithMetrics registra las métricas de admisión.
func WithMetrics(m Metrics) Option {
	return func(uc *RegisterMovementUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

// WithPublisher publica un evento por cada movimiento confirmado.
func WithPublisher(p EventPublisher) Option {
	return func(uc *RegisterMovementUseCase) {
		if p != nil {
			uc.publisher = p
		}
	}
}

// WithClock reemplaza el reloj (pruebas).
func WithClock(now func() time.Time) Option {
	return func(uc *RegisterMovementUseCase) { uc.now = now }
}

// NewRegisterMovementUseCase construye el caso de uso.
// movements y balances se usan fuera de la transacción de admisión (lectura del original
// en reversiones y congelamiento de pares en alarma).
func NewRegisterMovementUseCase(
	txRunner TxRunner,
	movements repository.StockMovementRepository,
	balances repository.BalanceRepository,
	catalog repository.ProductCatalog,
	cfg Config,
	log zerolog.Logger,
	opts ...Option,
) *RegisterMovementUseCase {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = DefaultConfig().TxTimeout
	}
	uc := &RegisterMovementUseCase{
		txRunner:  txRunner,
		movements: movements,
		balances:  balances,
		catalog:   catalog,
		validator: inventory.NewValidator(cfg.QuantityScale),
		cfg:       cfg,
		log:       log,
		metrics:   nopMetrics{},
		publisher: nopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// MovementInputDTO entrada para registrar un movimiento.
// IN: LocationTo. OUT: LocationFrom. TRANSFER: ambas, distintas.
type MovementInputDTO struct {
	UserID       string
	ProductID    int64
	Type         string
	Quantity     decimal.Decimal
	LocationFrom *int64
	LocationTo   *int64
	Reference    string
}

// RegisterMovement valida y confirma un movimiento. Devuelve la fila confirmada o el rechazo.
func (uc *RegisterMovementUseCase) RegisterMovement(ctx context.Context, input MovementInputDTO) (*entity.StockMovement, error) {
	movementType, ok := entity.ParseMovementType(input.Type)
	if !ok {
		err := domain.Reject(domain.ErrInvalidInput, "tipo de movimiento desconocido %q", input.Type)
		uc.metrics.MovementRejected(domain.ReasonCode(err))
		return nil, err
	}
	mov := &entity.StockMovement{
		ProductID:    input.ProductID,
		Quantity:     input.Quantity,
		Type:         movementType,
		LocationFrom: input.LocationFrom,
		LocationTo:   input.LocationTo,
		Reference:    strings.TrimSpace(input.Reference),
		CreatedBy:    input.UserID,
	}
	return uc.admit(ctx, mov)
}

// ReverseMovement anexa el movimiento compensatorio de id (IN↔OUT, TRANSFER invertido).
// Pasa por la misma admisión: revertir una entrada ya consumida falla con InsufficientStock.
func (uc *RegisterMovementUseCase) ReverseMovement(ctx context.Context, id int64, userID, reference string) (*entity.StockMovement, error) {
	original, err := uc.movements.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if original == nil {
		return nil, domain.ErrNotFound
	}
	if original.ReversalOf != nil {
		return nil, domain.Reject(domain.ErrInvalidInput, "el movimiento %d es una reversión y no puede revertirse", id)
	}
	mov := original.Inverse()
	mov.CreatedBy = userID
	mov.Reference = strings.TrimSpace(reference)
	if mov.Reference == "" {
		mov.Reference = fmt.Sprintf("reversión de #%d", id)
	}
	return uc.admit(ctx, mov)
}

func (uc *RegisterMovementUseCase) admit(ctx context.Context, mov *entity.StockMovement) (*entity.StockMovement, error) {
	ctx, span := tracer.Start(ctx, "inventory.RegisterMovement",
		trace.WithAttributes(
			attribute.Int64("movement.product_id", mov.ProductID),
			attribute.String("movement.type", string(mov.Type)),
			attribute.String("movement.quantity", mov.Quantity.String()),
		),
	)
	defer span.End()
	start := uc.now()

	proposal := inventory.Proposal{
		ProductID:    mov.ProductID,
		Type:         mov.Type,
		Quantity:     mov.Quantity,
		LocationFrom: mov.LocationFrom,
		LocationTo:   mov.LocationTo,
	}
	if strings.TrimSpace(mov.CreatedBy) == "" {
		return nil, uc.fail(span, proposal, domain.Reject(domain.ErrInvalidInput, "created_by requerido"))
	}
	if err := uc.validator.CheckShape(proposal); err != nil {
		return nil, uc.fail(span, proposal, err)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.TxTimeout)
	defer cancel()

	backoff := uc.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		balances, err := uc.commit(ctx, proposal, mov)
		if err == nil {
			uc.metrics.MovementAdmitted(mov.Type, uc.now().Sub(start))
			span.SetAttributes(attribute.Int64("movement.id", mov.ID))
			uc.log.Info().
				Int64("movement_id", mov.ID).
				Str("type", string(mov.Type)).
				Int64("product_id", mov.ProductID).
				Interface("location_from", mov.LocationFrom).
				Interface("location_to", mov.LocationTo).
				Str("quantity", mov.Quantity.String()).
				Str("created_by", mov.CreatedBy).
				Int("attempt", attempt).
				Msg("movimiento registrado")
			uc.publish(ctx, mov, balances)
			return mov, nil
		}
		if errors.Is(err, domain.ErrSerializationConflict) && attempt < uc.cfg.MaxAttempts {
			uc.metrics.AdmissionRetried()
			uc.log.Warn().Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int64("product_id", mov.ProductID).
				Msg("conflicto de serialización, reintentando admisión")
			if werr := sleepCtx(ctx, backoff); werr != nil {
				return nil, uc.fail(span, proposal, werr)
			}
			backoff *= 2
			continue
		}
		return nil, uc.fail(span, proposal, err)
	}
}

// commit ejecuta validar-luego-anexar como una única sección atómica respecto a los pares afectados.
func (uc *RegisterMovementUseCase) commit(ctx context.Context, p inventory.Proposal, mov *entity.StockMovement) ([]entity.Balance, error) {
	var result []entity.Balance
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		balanceRepo repository.BalanceRepository,
		locationRepo repository.LocationRepository,
	) error {
		result = result[:0]
		lookup := newTxLookup(uc.catalog, locationRepo, balanceRepo, p.Keys())

		if mov.ReversalOf != nil {
			// Los pares quedan bloqueados antes de mirar reversiones previas:
			// dos reversiones concurrentes del mismo movimiento se serializan aquí.
			if err := lookup.lockAll(ctx); err != nil {
				return err
			}
			prev, err := movRepo.FindReversal(ctx, *mov.ReversalOf)
			if err != nil {
				return err
			}
			if prev != nil {
				return domain.Reject(domain.ErrAlreadyReversed, "el movimiento %d ya fue revertido por %d", *mov.ReversalOf, prev.ID)
			}
		}

		if err := uc.validator.Validate(ctx, p, lookup); err != nil {
			return err
		}

		mov.ID = 0
		mov.CreatedAt = uc.now().UTC()
		if err := movRepo.Append(ctx, mov); err != nil {
			return err
		}
		for _, d := range mov.Deltas() {
			current, err := lookup.Balance(ctx, d.Key)
			if err != nil {
				return err
			}
			next := *current
			next.Quantity = current.Quantity.Add(d.Delta)
			if next.Quantity.IsNegative() {
				return &inventory.IntegrityError{Key: d.Key, Quantity: next.Quantity}
			}
			next.MovementCount++
			next.UpdatedAt = mov.CreatedAt
			if err := balanceRepo.Save(ctx, &next); err != nil {
				return err
			}
			result = append(result, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fail clasifica el error final de la admisión, registra métricas/log y devuelve el error público.
func (uc *RegisterMovementUseCase) fail(span trace.Span, p inventory.Proposal, err error) error {
	reason := domain.ReasonCode(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)

	switch {
	case domain.IsRejection(err), errors.Is(err, domain.ErrBalanceFrozen):
		uc.metrics.MovementRejected(reason)
		uc.log.Info().
			Str("reason", reason).
			Str("detail", err.Error()).
			Int64("product_id", p.ProductID).
			Str("type", string(p.Type)).
			Str("quantity", p.Quantity.String()).
			Msg("movimiento rechazado")
		return err
	case errors.Is(err, domain.ErrIntegrityViolation):
		uc.raiseAlarm(p, err)
		return err
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		uc.metrics.MovementRejected(domain.ReasonTimeout)
		uc.log.Warn().Err(err).Int64("product_id", p.ProductID).Msg("admisión cancelada por tiempo de espera")
		if errors.Is(err, domain.ErrTimeout) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	default:
		uc.metrics.MovementRejected(domain.ReasonUnavailable)
		uc.log.Error().Err(err).Int64("product_id", p.ProductID).Msg("admisión fallida por error de infraestructura")
		if errors.Is(err, domain.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
}

// raiseAlarm congela los pares afectados: las escrituras sobre ellos quedan detenidas
// hasta una conciliación auditada.
func (uc *RegisterMovementUseCase) raiseAlarm(p inventory.Proposal, err error) {
	uc.metrics.IntegrityAlarm()
	keys := p.Keys()
	var ie *inventory.IntegrityError
	if errors.As(err, &ie) {
		keys = []entity.BalanceKey{ie.Key}
	}
	ctx, cancel := context.WithTimeout(context.Background(), uc.cfg.TxTimeout)
	defer cancel()
	for _, k := range keys {
		if ferr := uc.balances.Freeze(ctx, k, err.Error(), uc.now().UTC()); ferr != nil {
			uc.log.Error().Err(ferr).Int64("product_id", k.ProductID).Int64("location_id", k.LocationID).
				Msg("no se pudo congelar el saldo tras alarma de integridad")
		}
		uc.log.Error().Err(err).Int64("product_id", k.ProductID).Int64("location_id", k.LocationID).
			Msg("alarma de integridad: saldo congelado")
	}
}

func (uc *RegisterMovementUseCase) publish(ctx context.Context, mov *entity.StockMovement, balances []entity.Balance) {
	event := MovementEvent{
		EventID:    uuid.NewString(),
		Movement:   *mov,
		Balances:   balances,
		OccurredAt: mov.CreatedAt,
	}
	if err := uc.publisher.PublishMovementRecorded(ctx, event); err != nil {
		uc.log.Warn().Err(err).Int64("movement_id", mov.ID).Msg("no se pudo publicar el evento del movimiento")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
