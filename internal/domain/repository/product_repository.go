package repository

import (
	"context"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// ProductCatalog puerto de solo lectura hacia el catálogo externo de productos.
// GetByID devuelve (nil, nil) si el producto no existe.
type ProductCatalog interface {
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
}
