package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-portal/internal/domain"
)

// EntityFilter narrows list queries.
type EntityFilter struct {
	Kind     domain.Kind
	OwnerID  *string
	Statuses []domain.Status
	Limit    int
	Offset   int
}

// EntityRepository persists tickets and service requests together with their timelines.
type EntityRepository interface {
	Create(ctx context.Context, entity *domain.Entity) error
	GetByID(ctx context.Context, kind domain.Kind, id string) (*domain.Entity, error)
	List(ctx context.Context, filter EntityFilter) ([]domain.Entity, error)
	UpdateStatus(ctx context.Context, kind domain.Kind, id string, status domain.Status, visitAt *time.Time) error
	// AppendReply returns the stored status. An empty status leaves it unchanged.
	AppendReply(ctx context.Context, kind domain.Kind, id string, entry *domain.TimelineEntry, status domain.Status, visitAt time.Time) (domain.Status, error)
	Delete(ctx context.Context, kind domain.Kind, id string) error
}

type entityRepository struct {
	pool     *pgxpool.Pool
	timeline TimelineRepository
}

// NewEntityRepository instantiates repository.
func NewEntityRepository(pool *pgxpool.Pool, timeline TimelineRepository) EntityRepository {
	return &entityRepository{pool: pool, timeline: timeline}
}

const entityColumns = `e.id, e.kind, e.display_id, e.category, e.title, e.description, e.status,
               e.outlet_name, e.address, e.lat, e.lng, e.images, e.assigned_visit_at,
               e.owner_id, COALESCE(u.name, ''), e.created_at, e.updated_at`

func (r *entityRepository) Create(ctx context.Context, entity *domain.Entity) error {
	const query = `
        INSERT INTO entities (kind, display_id, category, title, description, status, outlet_name, address, lat, lng, images, owner_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	images := entity.Images
	if images == nil {
		images = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		entity.Kind,
		entity.DisplayID,
		entity.Category,
		entity.Title,
		entity.Description,
		entity.Status,
		entity.OutletName,
		entity.Address,
		entity.Location.Lat,
		entity.Location.Lng,
		images,
		entity.Owner.ID,
	).Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
}

func (r *entityRepository) GetByID(ctx context.Context, kind domain.Kind, id string) (*domain.Entity, error) {
	query := `SELECT ` + entityColumns + `
        FROM entities e LEFT JOIN users u ON u.id = e.owner_id
        WHERE e.kind=$1 AND e.id=$2`
	entity, err := scanEntity(r.pool.QueryRow(ctx, query, kind, id))
	if err != nil {
		return nil, err
	}
	entries, err := r.timeline.ListByEntity(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	entity.Timeline = entries
	return entity, nil
}

func (r *entityRepository) List(ctx context.Context, filter EntityFilter) ([]domain.Entity, error) {
	clauses := []string{"e.kind=$1"}
	args := []any{filter.Kind}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("e.owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("e.status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM entities e LEFT JOIN users u ON u.id = e.owner_id
        WHERE %s ORDER BY e.created_at DESC, e.id LIMIT %d OFFSET %d`,
		entityColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	entities, err := scanEntities(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return entities, nil
	}

	ids := make([]string, len(entities))
	for i := range entities {
		ids[i] = entities[i].ID
	}
	byEntity, err := r.timeline.ListByEntities(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entities {
		entities[i].Timeline = byEntity[entities[i].ID]
	}
	return entities, nil
}

func (r *entityRepository) UpdateStatus(ctx context.Context, kind domain.Kind, id string, status domain.Status, visitAt *time.Time) error {
	const query = `
        UPDATE entities SET status=$1, assigned_visit_at=COALESCE($2, assigned_visit_at), updated_at=NOW()
        WHERE kind=$3 AND id=$4`
	cmd, err := r.pool.Exec(ctx, query, status, visitAt, kind, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AppendReply inserts the entry and updates status and visit time in one transaction.
func (r *entityRepository) AppendReply(ctx context.Context, kind domain.Kind, id string, entry *domain.TimelineEntry, status domain.Status, visitAt time.Time) (domain.Status, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const update = `
        UPDATE entities SET status=COALESCE(NULLIF($1::text, ''), status), assigned_visit_at=$2, updated_at=NOW()
        WHERE kind=$3 AND id=$4
        RETURNING status`
	var current domain.Status
	if err := tx.QueryRow(ctx, update, string(status), visitAt, kind, id).Scan(&current); err != nil {
		return "", err
	}

	entry.EntityID = id
	if err := insertTimelineEntry(ctx, tx, entry); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return current, nil
}

func (r *entityRepository) Delete(ctx context.Context, kind domain.Kind, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM entities WHERE kind=$1 AND id=$2`, kind, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var entity domain.Entity
	if err := row.Scan(
		&entity.ID,
		&entity.Kind,
		&entity.DisplayID,
		&entity.Category,
		&entity.Title,
		&entity.Description,
		&entity.Status,
		&entity.OutletName,
		&entity.Address,
		&entity.Location.Lat,
		&entity.Location.Lng,
		&entity.Images,
		&entity.AssignedVisitAt,
		&entity.Owner.ID,
		&entity.Owner.Name,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entity, nil
}

func scanEntities(rows pgx.Rows) ([]domain.Entity, error) {
	var result []domain.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entity)
	}
	return result, rows.Err()
}
