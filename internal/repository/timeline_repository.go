package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/service-portal/internal/domain"
)

// TimelineRepository stores timeline entries. Entries are never updated.
type TimelineRepository interface {
	Create(ctx context.Context, entry *domain.TimelineEntry) error
	ListByEntity(ctx context.Context, entityID string) ([]domain.TimelineEntry, error)
	ListByEntities(ctx context.Context, entityIDs []string) (map[string][]domain.TimelineEntry, error)
}

type timelineRepository struct {
	pool *pgxpool.Pool
}

// NewTimelineRepository builds repository.
func NewTimelineRepository(pool *pgxpool.Pool) TimelineRepository {
	return &timelineRepository{pool: pool}
}

type priceRow struct {
	SNo         int     `json:"sNo"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *timelineRepository) Create(ctx context.Context, entry *domain.TimelineEntry) error {
	return insertTimelineEntry(ctx, r.pool, entry)
}

func insertTimelineEntry(ctx context.Context, q execQuerier, entry *domain.TimelineEntry) error {
	const query = `
        INSERT INTO timeline_entries (entity_id, note, added_by, images, price_list, total_price)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, added_at`
	priceList, err := encodePriceList(entry.PriceList)
	if err != nil {
		return err
	}
	images := entry.Images
	if images == nil {
		images = []string{}
	}
	return q.QueryRow(ctx, query,
		entry.EntityID,
		entry.Note,
		entry.AddedBy,
		images,
		priceList,
		entry.TotalPrice,
	).Scan(&entry.ID, &entry.AddedAt)
}

func (r *timelineRepository) ListByEntity(ctx context.Context, entityID string) ([]domain.TimelineEntry, error) {
	byEntity, err := r.ListByEntities(ctx, []string{entityID})
	if err != nil {
		return nil, err
	}
	return byEntity[entityID], nil
}

func (r *timelineRepository) ListByEntities(ctx context.Context, entityIDs []string) (map[string][]domain.TimelineEntry, error) {
	const query = `
        SELECT id, entity_id, note, added_by, added_at, images, price_list, total_price
        FROM timeline_entries WHERE entity_id = ANY($1) ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.TimelineEntry, len(entityIDs))
	for rows.Next() {
		var (
			entry     domain.TimelineEntry
			priceList []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.EntityID,
			&entry.Note,
			&entry.AddedBy,
			&entry.AddedAt,
			&entry.Images,
			&priceList,
			&entry.TotalPrice,
		); err != nil {
			return nil, err
		}
		if entry.PriceList, err = decodePriceList(priceList); err != nil {
			return nil, err
		}
		result[entry.EntityID] = append(result[entry.EntityID], entry)
	}
	return result, rows.Err()
}

func encodePriceList(items []domain.PriceItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	rows := make([]priceRow, len(items))
	for i, item := range items {
		rows[i] = priceRow{SNo: item.SNo, Description: item.Description, Price: item.Price}
	}
	return json.Marshal(rows)
}

func decodePriceList(raw []byte) ([]domain.PriceItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []priceRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]domain.PriceItem, len(rows))
	for i, row := range rows {
		items[i] = domain.PriceItem{SNo: row.SNo, Description: row.Description, Price: row.Price}
	}
	return items, nil
}
