package dto

import "github.com/shopspring/decimal"

// ErrorResponse cuerpo de error HTTP. Error es el código de motivo (InsufficientStock, DuplicateCode...).
type ErrorResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
}

// HealthResponse estado del servicio.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
