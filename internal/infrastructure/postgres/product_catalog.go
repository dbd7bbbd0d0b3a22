package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.ProductCatalog = (*ProductCatalog)(nil)

// ProductCatalog lectura del catálogo de productos replicado en la tabla products.
type ProductCatalog struct {
	q Querier
}

// NewProductCatalog construye el adaptador. Pasar pool o tx (Querier).
func NewProductCatalog(q Querier) *ProductCatalog {
	return &ProductCatalog{q: q}
}

// GetByID devuelve el producto o (nil, nil) si no existe.
func (c *ProductCatalog) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	var p entity.Product
	err := c.q.QueryRow(ctx, `SELECT id, code, description FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get product", err)
	}
	return &p, nil
}
