package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")

	// Rechazos de admisión y del registro de ubicaciones.
	ErrDuplicateCode       = errors.New("código de ubicación duplicado")
	ErrInvalidQuantity     = errors.New("cantidad inválida")
	ErrInvalidLocationPair = errors.New("combinación de ubicaciones inválida")
	ErrUnknownLocation     = errors.New("ubicación desconocida")
	ErrUnknownProduct      = errors.New("producto desconocido")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrLocationDisabled    = errors.New("ubicación deshabilitada")
	ErrLocationInUse       = errors.New("ubicación referenciada por movimientos")
	ErrAlreadyReversed     = errors.New("el movimiento ya fue revertido")

	// Infraestructura.
	ErrSerializationConflict = errors.New("conflicto de serialización")
	ErrUnavailable           = errors.New("servicio no disponible")
	ErrTimeout               = errors.New("tiempo de espera agotado")

	// Integridad: saldo negativo o divergente del libro, detectado a posteriori.
	ErrIntegrityViolation = errors.New("violación de integridad del saldo")
	ErrBalanceFrozen      = errors.New("saldo congelado pendiente de conciliación")
)

// Códigos de motivo expuestos a los consumidores (HTTP, eventos, métricas).
const (
	ReasonNotFound            = "NotFound"
	ReasonInvalidInput        = "InvalidInput"
	ReasonUnauthorized        = "Unauthorized"
	ReasonDuplicateCode       = "DuplicateCode"
	ReasonInvalidQuantity     = "InvalidQuantity"
	ReasonInvalidLocationPair = "InvalidLocationPair"
	ReasonUnknownLocation     = "UnknownLocation"
	ReasonUnknownProduct      = "UnknownProduct"
	ReasonInsufficientStock   = "InsufficientStock"
	ReasonLocationDisabled    = "LocationDisabled"
	ReasonLocationInUse       = "LocationInUse"
	ReasonAlreadyReversed     = "AlreadyReversed"
	ReasonUnavailable         = "Unavailable"
	ReasonTimeout             = "Timeout"
	ReasonIntegrityViolation  = "IntegrityViolation"
	ReasonBalanceFrozen       = "BalanceFrozen"
	ReasonInternal            = "Internal"
)

var reasonTable = []struct {
	err  error
	code string
}{
	{ErrInvalidQuantity, ReasonInvalidQuantity},
	{ErrInvalidLocationPair, ReasonInvalidLocationPair},
	{ErrUnknownLocation, ReasonUnknownLocation},
	{ErrUnknownProduct, ReasonUnknownProduct},
	{ErrInsufficientStock, ReasonInsufficientStock},
	{ErrLocationDisabled, ReasonLocationDisabled},
	{ErrDuplicateCode, ReasonDuplicateCode},
	{ErrLocationInUse, ReasonLocationInUse},
	{ErrAlreadyReversed, ReasonAlreadyReversed},
	{ErrBalanceFrozen, ReasonBalanceFrozen},
	{ErrIntegrityViolation, ReasonIntegrityViolation},
	{ErrTimeout, ReasonTimeout},
	{ErrSerializationConflict, ReasonUnavailable},
	{ErrUnavailable, ReasonUnavailable},
	{ErrNotFound, ReasonNotFound},
	{ErrUnauthorized, ReasonUnauthorized},
	{ErrInvalidInput, ReasonInvalidInput},
}

// ReasonCode traduce cualquier error al código de motivo público.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasonTable {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ReasonInternal
}

// IsRejection indica si el error es un rechazo de validación (recuperable, nunca se reintenta).
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidQuantity, ErrInvalidLocationPair, ErrUnknownLocation, ErrUnknownProduct,
		ErrInsufficientStock, ErrLocationDisabled, ErrDuplicateCode, ErrLocationInUse,
		ErrAlreadyReversed, ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RejectionError rechazo con el contexto que la UI necesita para mostrar el motivo
// sin volver a calcularlo ("stock insuficiente: solicitado 10, disponible 4").
type RejectionError struct {
	Err        error
	Message    string
	ProductID  int64
	LocationID int64
	Requested  *decimal.Decimal
	Available  *decimal.Decimal
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *RejectionError) Unwrap() error { return e.Err }

// Reason devuelve el código de motivo del rechazo.
func (e *RejectionError) Reason() string { return ReasonCode(e.Err) }

// Reject construye un rechazo con mensaje formateado.
func Reject(err error, format string, args ...any) *RejectionError {
	return &RejectionError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock construye el rechazo por saldo insuficiente.
func InsufficientStock(productID, locationID int64, requested, available decimal.Decimal) *RejectionError {
	return &RejectionError{
		Err:        ErrInsufficientStock,
		Message:    fmt.Sprintf("stock insuficiente: solicitado %s, disponible %s", requested.String(), available.String()),
		ProductID:  productID,
		LocationID: locationID,
		Requested:  &requested,
		Available:  &available,
	}
}
