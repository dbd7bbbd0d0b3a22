package memory

import (
	"context"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.ProductCatalog = (*Catalog)(nil)

// Catalog catálogo de productos en memoria, cargado con Seed.
type Catalog struct {
	store *Store
}

// NewCatalog construye el catálogo sobre el store.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{store: store}
}

// Seed registra o reemplaza productos.
func (c *Catalog) Seed(products ...entity.Product) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		cp := p
		s.products[p.ID] = &cp
	}
}

// GetByID devuelve el producto o (nil, nil).
func (c *Catalog) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}
