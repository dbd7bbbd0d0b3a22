package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
	"github.com/jhoicas/pcp-stock-ledger/internal/domain/repository"
)

var _ repository.LocationRepository = (*LocationRepo)(nil)

const locationColumns = `id, code, name, description, disabled_at, created_at, updated_at`

// LocationRepo implementación del puerto LocationRepository sobre PostgreSQL (pool o tx).
type LocationRepo struct {
	q Querier
}

// NewLocationRepository construye el adaptador de persistencia para ubicaciones.
func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// Create persiste una ubicación y asigna su ID. El índice único sobre code_key
// detecta códigos repetidos sin distinguir mayúsculas.
func (r *LocationRepo) Create(ctx context.Context, l *entity.Location) error {
	query := `
		INSERT INTO locations (code, code_key, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.q.QueryRow(ctx, query, l.Code, l.CodeKey(), l.Name, l.Description, l.CreatedAt, l.UpdatedAt).Scan(&l.ID)
	if err != nil {
		return classify("insert location", err)
	}
	return nil
}

// GetByID obtiene una ubicación por ID; (nil, nil) si no existe.
func (r *LocationRepo) GetByID(ctx context.Context, id int64) (*entity.Location, error) {
	row := r.q.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	return scanLocation(row)
}

// GetByCode busca por código normalizado; (nil, nil) si no existe.
func (r *LocationRepo) GetByCode(ctx context.Context, code string) (*entity.Location, error) {
	row := r.q.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE code_key = $1`, entity.NormalizeCode(code))
	return scanLocation(row)
}

// List lista ubicaciones ordenadas por nombre (y por ID ante nombres iguales).
func (r *LocationRepo) List(ctx context.Context, includeDisabled bool) ([]*entity.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	if !includeDisabled {
		query += ` WHERE disabled_at IS NULL`
	}
	query += ` ORDER BY name, id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, classify("list locations", err)
	}
	defer rows.Close()
	list := make([]*entity.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list locations", err)
	}
	return list, nil
}

// Update actualiza nombre y descripción. El código no se toca.
func (r *LocationRepo) Update(ctx context.Context, l *entity.Location) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE locations SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		l.ID, l.Name, l.Description, l.UpdatedAt,
	)
	if err != nil {
		return classify("update location", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetDisabled marca (o desmarca con nil) la baja lógica.
func (r *LocationRepo) SetDisabled(ctx context.Context, id int64, disabledAt *time.Time) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE locations SET disabled_at = $2, updated_at = now() WHERE id = $1`,
		id, disabledAt,
	)
	if err != nil {
		return classify("disable location", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina una ubicación. Si la llave foránea la protege devuelve ErrLocationInUse.
func (r *LocationRepo) Delete(ctx context.Context, id int64) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete location: %w", domain.ErrLocationInUse)
		}
		return classify("delete location", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HasMovements indica si algún movimiento referencia la ubicación como origen o destino.
func (r *LocationRepo) HasMovements(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stock_movements WHERE location_from = $1)
		    OR EXISTS (SELECT 1 FROM stock_movements WHERE location_to = $1)`, id).Scan(&used)
	if err != nil {
		return false, classify("location has movements", err)
	}
	return used, nil
}

func scanLocation(row pgx.Row) (*entity.Location, error) {
	var l entity.Location
	err := row.Scan(&l.ID, &l.Code, &l.Name, &l.Description, &l.DisabledAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("scan location", err)
	}
	return &l, nil
}
