package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.LocationRepository = (*LocationRepo)(nil)

// LocationRepo registro de ubicaciones en memoria.
type LocationRepo struct {
	store *Store
}

// NewLocationRepository construye el repositorio.
func NewLocationRepository(store *Store) *LocationRepo {
	return &LocationRepo{store: store}
}

// Create asigna ID y rechaza códigos repetidos sin distinguir mayúsculas.
func (r *LocationRepo) Create(_ context.Context, l *entity.Location) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := l.CodeKey()
	for _, existing := range s.locations {
		if existing.CodeKey() == key {
			return domain.ErrDuplicateCode
		}
	}
	s.nextLocationID++
	l.ID = s.nextLocationID
	cp := *l
	s.locations[l.ID] = &cp
	return nil
}

// GetByID devuelve una copia o (nil, nil).
func (r *LocationRepo) GetByID(_ context.Context, id int64) (*entity.Location, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, nil
	}
	return cloneLocation(l), nil
}

// GetByCode busca por código normalizado.
func (r *LocationRepo) GetByCode(_ context.Context, code string) (*entity.Location, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := entity.NormalizeCode(code)
	for _, l := range s.locations {
		if l.CodeKey() == key {
			return cloneLocation(l), nil
		}
	}
	return nil, nil
}

// List ordena por nombre y luego por ID.
func (r *LocationRepo) List(_ context.Context, includeDisabled bool) ([]*entity.Location, error) {
	s := r.store
	s.mu.RLock()
	list := make([]*entity.Location, 0, len(s.locations))
	for _, l := range s.locations {
		if includeDisabled || l.Active() {
			list = append(list, cloneLocation(l))
		}
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// Update cambia nombre y descripción.
func (r *LocationRepo) Update(_ context.Context, l *entity.Location) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locations[l.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Name = l.Name
	existing.Description = l.Description
	existing.UpdatedAt = l.UpdatedAt
	return nil
}

// SetDisabled marca o desmarca la baja lógica.
func (r *LocationRepo) SetDisabled(_ context.Context, id int64, disabledAt *time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.locations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if disabledAt != nil {
		t := *disabledAt
		existing.DisabledAt = &t
		existing.UpdatedAt = t
	} else {
		existing.DisabledAt = nil
		existing.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Delete elimina si ningún movimiento la referencia.
func (r *LocationRepo) Delete(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[id]; !ok {
		return domain.ErrNotFound
	}
	if s.referenced(id) {
		return domain.ErrLocationInUse
	}
	delete(s.locations, id)
	return nil
}

// HasMovements indica si algún movimiento confirmado la usa.
func (r *LocationRepo) HasMovements(_ context.Context, id int64) (bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referenced(id), nil
}

// referenced requiere s.mu tomado.
func (s *Store) referenced(id int64) bool {
	for _, m := range s.movements {
		if m.Touches(id) {
			return true
		}
	}
	return false
}

func cloneLocation(l *entity.Location) *entity.Location {
	cp := *l
	if l.DisabledAt != nil {
		t := *l.DisabledAt
		cp.DisabledAt = &t
	}
	return &cp
}
