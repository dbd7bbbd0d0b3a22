package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// MaxQuantity límite superior de una cantidad individual (cabe en NUMERIC(28,12)).
var MaxQuantity = decimal.New(1, 15)

// Proposal movimiento propuesto, aún no admitido en el libro.
type Proposal struct {
	ProductID    int64
	Type         entity.MovementType
	Quantity     decimal.Decimal
	LocationFrom *int64
	LocationTo   *int64
}

// Keys devuelve los saldos que toca la propuesta, en orden de bloqueo.
func (p Proposal) Keys() []entity.BalanceKey {
	var keys []entity.BalanceKey
	if p.LocationFrom != nil {
		keys = append(keys, entity.BalanceKey{ProductID: p.ProductID, LocationID: *p.LocationFrom})
	}
	if p.LocationTo != nil {
		keys = append(keys, entity.BalanceKey{ProductID: p.ProductID, LocationID: *p.LocationTo})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Lookup datos que el validador consulta. En la admisión Balance devuelve el saldo
// bloqueado dentro de la transacción, no una foto previa.
type Lookup interface {
	Product(ctx context.Context, id int64) (*entity.Product, error)
	Location(ctx context.Context, id int64) (*entity.Location, error)
	Balance(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error)
}

// Validator aplica las invariantes de conservación antes de admitir un movimiento.
type Validator struct {
	scale int32
}

// NewValidator construye el validador con la precisión configurada del catálogo.
func NewValidator(scale int32) Validator {
	return Validator{scale: scale}
}

// Scale precisión (decimales) admitida para cantidades.
func (v Validator) Scale() int32 { return v.scale }

// CheckQuantity regla 1: positiva, acotada y con a lo sumo Scale decimales.
func (v Validator) CheckQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return domain.Reject(domain.ErrInvalidQuantity, "la cantidad debe ser positiva, recibido %s", q.String())
	}
	if q.GreaterThanOrEqual(MaxQuantity) {
		return domain.Reject(domain.ErrInvalidQuantity, "la cantidad %s excede el máximo permitido", q.String())
	}
	if !q.Equal(q.Truncate(v.scale)) {
		return domain.Reject(domain.ErrInvalidQuantity, "la cantidad %s excede la precisión de %d decimales", q.String(), v.scale)
	}
	return nil
}

// CheckLocationPair regla 2: IN solo destino, OUT solo origen, TRANSFER ambos y distintos.
func CheckLocationPair(p Proposal) error {
	switch p.Type {
	case entity.MovementTypeIN:
		if p.LocationTo == nil || p.LocationFrom != nil {
			return domain.Reject(domain.ErrInvalidLocationPair, "IN requiere solo location_to")
		}
	case entity.MovementTypeOUT:
		if p.LocationFrom == nil || p.LocationTo != nil {
			return domain.Reject(domain.ErrInvalidLocationPair, "OUT requiere solo location_from")
		}
	case entity.MovementTypeTRANSFER:
		if p.LocationFrom == nil || p.LocationTo == nil {
			return domain.Reject(domain.ErrInvalidLocationPair, "TRANSFER requiere location_from y location_to")
		}
		if *p.LocationFrom == *p.LocationTo {
			return domain.Reject(domain.ErrInvalidLocationPair, "TRANSFER requiere ubicaciones distintas")
		}
	default:
		return domain.Reject(domain.ErrInvalidInput, "tipo de movimiento desconocido %q", string(p.Type))
	}
	return nil
}

// CheckShape reglas que no necesitan datos: cantidad y par de ubicaciones.
func (v Validator) CheckShape(p Proposal) error {
	if err := v.CheckQuantity(p.Quantity); err != nil {
		return err
	}
	return CheckLocationPair(p)
}

// Validate ejecuta todas las reglas en este orden: cantidad, par de ubicaciones,
// existencia de producto y ubicaciones (y destino habilitado), saldo suficiente.
// Las referencias se comprueban antes de leer saldos: bloquear el saldo de una ubicación
// inexistente crearía una fila huérfana. Por eso un OUT de un producto desconocido desde
// una ubicación vacía se rechaza con UnknownProduct y no con InsufficientStock.
func (v Validator) Validate(ctx context.Context, p Proposal, lookup Lookup) error {
	if err := v.CheckShape(p); err != nil {
		return err
	}
	if err := checkReferences(ctx, p, lookup); err != nil {
		return err
	}
	return checkBalances(ctx, p, lookup)
}

func checkReferences(ctx context.Context, p Proposal, lookup Lookup) error {
	product, err := lookup.Product(ctx, p.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.Reject(domain.ErrUnknownProduct, "producto %d no existe", p.ProductID)
	}
	if p.LocationFrom != nil {
		loc, err := lookup.Location(ctx, *p.LocationFrom)
		if err != nil {
			return err
		}
		if loc == nil {
			return domain.Reject(domain.ErrUnknownLocation, "ubicación %d no existe", *p.LocationFrom)
		}
	}
	if p.LocationTo != nil {
		loc, err := lookup.Location(ctx, *p.LocationTo)
		if err != nil {
			return err
		}
		if loc == nil {
			return domain.Reject(domain.ErrUnknownLocation, "ubicación %d no existe", *p.LocationTo)
		}
		// Una ubicación deshabilitada puede vaciarse pero no recibir stock.
		if !loc.Active() {
			return domain.Reject(domain.ErrLocationDisabled, "ubicación %s deshabilitada", loc.Code)
		}
	}
	return nil
}

func checkBalances(ctx context.Context, p Proposal, lookup Lookup) error {
	for _, key := range p.Keys() {
		bal, err := lookup.Balance(ctx, key)
		if err != nil {
			return err
		}
		if bal.Frozen() {
			return &domain.RejectionError{
				Err:        domain.ErrBalanceFrozen,
				Message:    "saldo congelado: " + bal.FrozenReason,
				ProductID:  key.ProductID,
				LocationID: key.LocationID,
			}
		}
		if bal.Quantity.IsNegative() {
			return &IntegrityError{Key: key, Quantity: bal.Quantity}
		}
		if p.LocationFrom != nil && key.LocationID == *p.LocationFrom && p.Quantity.GreaterThan(bal.Quantity) {
			return domain.InsufficientStock(key.ProductID, key.LocationID, p.Quantity, bal.Quantity)
		}
	}
	return nil
}

// IntegrityError saldo negativo observado: alarma de integridad, no un rechazo de validación.
type IntegrityError struct {
	Key      entity.BalanceKey
	Quantity decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return "saldo negativo " + e.Quantity.String() + " para producto/ubicación"
}

func (e *IntegrityError) Unwrap() error { return domain.ErrIntegrityViolation }
