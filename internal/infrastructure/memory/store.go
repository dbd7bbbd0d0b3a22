// Package memory implementa los puertos del libro en memoria de proceso (STORAGE_DRIVER=memory).
// Reproduce la disciplina de la base de datos: bloqueo por par (producto, ubicación) con espera
// cancelable, escrituras en buffer por transacción y validación de restricciones al confirmar.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

// Store estado compartido del libro en memoria.
type Store struct {
	mu             sync.RWMutex
	locations      map[int64]*entity.Location
	nextLocationID int64
	products       map[int64]*entity.Product
	movements      []*entity.StockMovement // ordenados por ID
	reversals      map[int64]int64         // original -> reversión
	nextMovementID int64
	balances       map[entity.BalanceKey]*entity.Balance

	lockMu   sync.Mutex
	keyLocks map[entity.BalanceKey]chan struct{}
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		locations: make(map[int64]*entity.Location),
		products:  make(map[int64]*entity.Product),
		reversals: make(map[int64]int64),
		balances:  make(map[entity.BalanceKey]*entity.Balance),
		keyLocks:  make(map[entity.BalanceKey]chan struct{}),
	}
}

// Ping siempre disponible.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) keyLock(key entity.BalanceKey) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.keyLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.keyLocks[key] = ch
	}
	return ch
}

// tx transacción en memoria: bloqueos tomados y escrituras pendientes hasta Commit.
type tx struct {
	store     *Store
	held      map[entity.BalanceKey]chan struct{}
	movements []*entity.StockMovement
	balances  map[entity.BalanceKey]*entity.Balance
}

func newTx(s *Store) *tx {
	return &tx{
		store:    s,
		held:     make(map[entity.BalanceKey]chan struct{}),
		balances: make(map[entity.BalanceKey]*entity.Balance),
	}
}

// lock espera el bloqueo del par. Reentrante dentro de la misma transacción.
func (t *tx) lock(ctx context.Context, key entity.BalanceKey) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	ch := t.store.keyLock(key)
	select {
	case ch <- struct{}{}:
		t.held[key] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bloqueo producto %d ubicación %d: %w: %v", key.ProductID, key.LocationID, domain.ErrTimeout, ctx.Err())
	}
}

func (t *tx) release() {
	for k, ch := range t.held {
		<-ch
		delete(t.held, k)
	}
}

// commit aplica el buffer de forma atómica. Verifica las mismas restricciones que el esquema
// SQL: saldo no negativo y una sola reversión por movimiento.
func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range t.balances {
		if b.Quantity.IsNegative() {
			return fmt.Errorf("producto %d ubicación %d: %w", k.ProductID, k.LocationID, domain.ErrIntegrityViolation)
		}
	}
	seen := make(map[int64]bool)
	for _, m := range t.movements {
		if m.ReversalOf == nil {
			continue
		}
		if _, ok := s.reversals[*m.ReversalOf]; ok || seen[*m.ReversalOf] {
			return fmt.Errorf("movimiento %d: %w", *m.ReversalOf, domain.ErrAlreadyReversed)
		}
		seen[*m.ReversalOf] = true
	}

	for _, m := range t.movements {
		s.nextMovementID++
		m.ID = s.nextMovementID
		stored := cloneMovement(m)
		s.movements = append(s.movements, stored)
		if m.ReversalOf != nil {
			s.reversals[*m.ReversalOf] = m.ID
		}
	}
	for k, b := range t.balances {
		cp := *b
		s.balances[k] = &cp
	}
	return nil
}

// pendingBalance saldo visible dentro de la transacción: el escrito en buffer o el confirmado.
func (t *tx) pendingBalance(key entity.BalanceKey) (*entity.Balance, bool) {
	b, ok := t.balances[key]
	return b, ok
}

func cloneMovement(m *entity.StockMovement) *entity.StockMovement {
	cp := *m
	cp.LocationFrom = cloneID(m.LocationFrom)
	cp.LocationTo = cloneID(m.LocationTo)
	cp.ReversalOf = cloneID(m.ReversalOf)
	return &cp
}

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBalance(b *entity.Balance) *entity.Balance {
	cp := *b
	if b.FrozenAt != nil {
		t := *b.FrozenAt
		cp.FrozenAt = &t
	}
	return &cp
}

func sortBalances(list []entity.Balance) {
	sort.Slice(list, func(i, j int) bool { return list[i].Key().Less(list[j].Key()) })
}
