package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/pcp-stock-ledger/internal/application/dto"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

// LocationUseCase registro de ubicaciones (bodegas / estantes).
type LocationUseCase struct {
	repo repository.LocationRepository
	now  func() time.Time
}

// NewLocationUseCase construye el caso de uso.
func NewLocationUseCase(repo repository.LocationRepository) *LocationUseCase {
	return &LocationUseCase{repo: repo, now: time.Now}
}

// Create crea una ubicación. El código es único sin distinguir mayúsculas.
func (uc *LocationUseCase) Create(ctx context.Context, in dto.CreateLocationRequest) (*dto.LocationResponse, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, domain.Reject(domain.ErrInvalidInput, "code y name son requeridos")
	}
	existing, err := uc.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if existing != nil {
		return nil, domain.Reject(domain.ErrDuplicateCode, "ya existe una ubicación con código %q", existing.Code)
	}
	now := uc.now().UTC()
	loc := &entity.Location{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// La consulta previa da el error limpio; el índice único cubre la carrera entre dos altas.
	if err := uc.repo.Create(ctx, loc); err != nil {
		if errors.Is(err, domain.ErrDuplicateCode) {
			return nil, domain.Reject(domain.ErrDuplicateCode, "ya existe una ubicación con código %q", code)
		}
		return nil, wrapInfra(err)
	}
	return toLocationResponse(loc), nil
}

// GetByID obtiene una ubicación; ErrNotFound si no existe.
func (uc *LocationUseCase) GetByID(ctx context.Context, id int64) (*dto.LocationResponse, error) {
	loc, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toLocationResponse(loc), nil
}

// List lista ubicaciones ordenadas por nombre.
func (uc *LocationUseCase) List(ctx context.Context, includeDisabled bool) ([]dto.LocationResponse, error) {
	list, err := uc.repo.List(ctx, includeDisabled)
	if err != nil {
		return nil, wrapInfra(err)
	}
	items := make([]dto.LocationResponse, 0, len(list))
	for _, l := range list {
		items = append(items, *toLocationResponse(l))
	}
	return items, nil
}

// Update actualiza nombre y descripción. El código no cambia.
func (uc *LocationUseCase) Update(ctx context.Context, id int64, in dto.UpdateLocationRequest) (*dto.LocationResponse, error) {
	loc, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Reject(domain.ErrInvalidInput, "name no puede ser vacío")
		}
		loc.Name = name
	}
	if in.Description != nil {
		loc.Description = strings.TrimSpace(*in.Description)
	}
	loc.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, loc); err != nil {
		return nil, wrapInfra(err)
	}
	return toLocationResponse(loc), nil
}

// Disable baja lógica: la ubicación deja de recibir stock pero conserva su historial.
func (uc *LocationUseCase) Disable(ctx context.Context, id int64) (*dto.LocationResponse, error) {
	loc, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.DisabledAt != nil {
		return toLocationResponse(loc), nil
	}
	now := uc.now().UTC()
	if err := uc.repo.SetDisabled(ctx, id, &now); err != nil {
		return nil, wrapInfra(err)
	}
	loc.DisabledAt = &now
	loc.UpdatedAt = now
	return toLocationResponse(loc), nil
}

// Enable reactiva una ubicación deshabilitada.
func (uc *LocationUseCase) Enable(ctx context.Context, id int64) (*dto.LocationResponse, error) {
	loc, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.DisabledAt == nil {
		return toLocationResponse(loc), nil
	}
	if err := uc.repo.SetDisabled(ctx, id, nil); err != nil {
		return nil, wrapInfra(err)
	}
	loc.DisabledAt = nil
	loc.UpdatedAt = uc.now().UTC()
	return toLocationResponse(loc), nil
}

// Delete elimina una ubicación sin movimientos. Con historial devuelve ErrLocationInUse:
// la verificación se hace aquí y no solo con la llave foránea.
func (uc *LocationUseCase) Delete(ctx context.Context, id int64) error {
	if _, err := uc.get(ctx, id); err != nil {
		return err
	}
	used, err := uc.repo.HasMovements(ctx, id)
	if err != nil {
		return wrapInfra(err)
	}
	if used {
		return domain.Reject(domain.ErrLocationInUse, "la ubicación %d tiene movimientos; use la baja lógica", id)
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrLocationInUse) {
			return domain.Reject(domain.ErrLocationInUse, "la ubicación %d tiene movimientos; use la baja lógica", id)
		}
		return wrapInfra(err)
	}
	return nil
}

func (uc *LocationUseCase) get(ctx context.Context, id int64) (*entity.Location, error) {
	loc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if loc == nil {
		return nil, domain.ErrNotFound
	}
	return loc, nil
}

func wrapInfra(err error) error {
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

func toLocationResponse(l *entity.Location) *dto.LocationResponse {
	if l == nil {
		return nil
	}
	return &dto.LocationResponse{
		ID:          l.ID,
		Code:        l.Code,
		Name:        l.Name,
		Description: l.Description,
		Active:      l.Active(),
		DisabledAt:  l.DisabledAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
