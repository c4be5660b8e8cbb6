package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
)

// ErrVisitNotFound возвращается при попытке дописать чанк к несуществующей
// записи
var ErrVisitNotFound = errors.New("visit not found")

// VisitRepository хранит записи о визитах на стороне сервера и выполняет
// сборку чанков: базовый чанк создает/обновляет запись, фото- и
// документ-чанки дописывают элементы к родительской записи в порядке
// поступления.
type VisitRepository struct {
	storage *Storage
	log     *slog.Logger
}

func NewVisitRepository(storage *Storage, log *slog.Logger) *VisitRepository {
	return &VisitRepository{storage: storage, log: log}
}

// Upsert создает или полностью заменяет запись (целая запись либо базовый
// чанк с пустыми списками)
func (r *VisitRepository) Upsert(ctx context.Context, rec *model.VisitRecord) error {
	photos, err := json.Marshal(rec.Photos)
	if err != nil {
		return fmt.Errorf("marshal photos: %w", err)
	}
	documents, err := json.Marshal(rec.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}

	_, err = r.storage.pool.Exec(ctx, `
		INSERT INTO visits (id, client_name, address, scheduled_at, notes, status, type, priority,
			photos, documents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			address = EXCLUDED.address,
			scheduled_at = EXCLUDED.scheduled_at,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			type = EXCLUDED.type,
			priority = EXCLUDED.priority,
			photos = EXCLUDED.photos,
			documents = EXCLUDED.documents,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.ClientName, rec.Address, rec.ScheduledAt, rec.Notes,
		string(rec.Status), string(rec.Type), string(rec.Priority),
		photos, documents, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert visit %s: %w", rec.ID, err)
	}

	r.log.Debug("visit upserted", "visit_id", rec.ID)
	return nil
}

// AppendPhotos дописывает фотографии к родительской записи
func (r *VisitRepository) AppendPhotos(ctx context.Context, parentID string, items []model.Photo) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal photos: %w", err)
	}
	return r.appendItems(ctx, parentID, "photos", data)
}

// AppendDocuments дописывает документы к родительской записи
func (r *VisitRepository) AppendDocuments(ctx context.Context, parentID string, items []model.Document) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	return r.appendItems(ctx, parentID, "documents", data)
}

func (r *VisitRepository) appendItems(ctx context.Context, parentID, column string, items []byte) error {
	// column приходит только из AppendPhotos/AppendDocuments
	tag, err := r.storage.pool.Exec(ctx,
		`UPDATE visits SET `+column+` = `+column+` || $2::jsonb WHERE id = $1`,
		parentID, items,
	)
	if err != nil {
		return fmt.Errorf("append %s to visit %s: %w", column, parentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("append %s: visit %s: %w", column, parentID, ErrVisitNotFound)
	}
	return nil
}

// ChangedSince возвращает записи, измененные после указанного времени
func (r *VisitRepository) ChangedSince(ctx context.Context, since time.Time) ([]*model.VisitRecord, error) {
	rows, err := r.storage.pool.Query(ctx, `
		SELECT id, client_name, address, scheduled_at, notes, status, type, priority,
			photos, documents, created_at, updated_at
		FROM visits
		WHERE updated_at > $1
		ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("query changed visits: %w", err)
	}
	defer rows.Close()

	var recs []*model.VisitRecord
	for rows.Next() {
		var rec model.VisitRecord
		var status, vtype, priority string
		var photos, documents []byte

		if err := rows.Scan(
			&rec.ID, &rec.ClientName, &rec.Address, &rec.ScheduledAt, &rec.Notes,
			&status, &vtype, &priority, &photos, &documents,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}

		rec.Status = model.VisitStatus(status)
		rec.Type = model.VisitType(vtype)
		rec.Priority = model.VisitPriority(priority)

		if err := json.Unmarshal(photos, &rec.Photos); err != nil {
			return nil, fmt.Errorf("parse photos: %w", err)
		}
		if err := json.Unmarshal(documents, &rec.Documents); err != nil {
			return nil, fmt.Errorf("parse documents: %w", err)
		}

		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
