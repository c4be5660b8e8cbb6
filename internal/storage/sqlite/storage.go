package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
	"fieldvisit/internal/sync"
)

// Storage - локальное SQLite-хранилище записей о визитах плюс key-value
// таблица для персистентного состояния движка синхронизации.
type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

func New(path string, log *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Storage{db: db, log: log}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return s, nil
}

func (s *Storage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id TEXT PRIMARY KEY,
			client_name TEXT NOT NULL,
			address TEXT NOT NULL,
			scheduled_at DATETIME NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			type TEXT NOT NULL,
			priority TEXT NOT NULL,
			photos TEXT NOT NULL DEFAULT '[]',
			documents TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			synced BOOLEAN NOT NULL DEFAULT 0,
			conflict_detected BOOLEAN NOT NULL DEFAULT 0,
			server_version TEXT,
			sync_attempts INTEGER NOT NULL DEFAULT 0,
			last_sync_error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_visits_synced ON visits(synced);
		CREATE INDEX IF NOT EXISTS idx_visits_conflict ON visits(conflict_detected);
		CREATE INDEX IF NOT EXISTS idx_visits_updated ON visits(updated_at);

		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)

	return err
}

// Close закрывает базу данных
func (s *Storage) Close() error {
	return s.db.Close()
}

// KV возвращает key-value хранилище поверх той же базы
func (s *Storage) KV() *KV {
	return &KV{db: s.db}
}

const visitColumns = `id, client_name, address, scheduled_at, notes, status, type, priority,
		photos, documents, created_at, updated_at,
		synced, conflict_detected, server_version, sync_attempts, last_sync_error`

func (s *Storage) Get(ctx context.Context, id string) (*model.VisitRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, id)

	rec, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("visit %s: %w", id, sync.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get visit %s: %w", id, err)
	}
	return rec, nil
}

func (s *Storage) Add(ctx context.Context, rec *model.VisitRecord) error {
	photos, documents, serverVersion, err := marshalBlobs(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ClientName, rec.Address, rec.ScheduledAt.Format(time.RFC3339Nano),
		rec.Notes, string(rec.Status), string(rec.Type), string(rec.Priority),
		photos, documents,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.Synced, rec.ConflictDetected, serverVersion, rec.SyncAttempts, rec.LastSyncError,
	)
	if err != nil {
		return fmt.Errorf("add visit %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, rec *model.VisitRecord) error {
	photos, documents, serverVersion, err := marshalBlobs(rec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE visits SET
			client_name = ?, address = ?, scheduled_at = ?, notes = ?,
			status = ?, type = ?, priority = ?, photos = ?, documents = ?,
			created_at = ?, updated_at = ?,
			synced = ?, conflict_detected = ?, server_version = ?,
			sync_attempts = ?, last_sync_error = ?
		WHERE id = ?`,
		rec.ClientName, rec.Address, rec.ScheduledAt.Format(time.RFC3339Nano), rec.Notes,
		string(rec.Status), string(rec.Type), string(rec.Priority), photos, documents,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.Synced, rec.ConflictDetected, serverVersion, rec.SyncAttempts, rec.LastSyncError,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update visit %s: %w", rec.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("visit %s: %w", rec.ID, sync.ErrNotFound)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete visit %s: %w", id, err)
	}
	return nil
}

// Unsynced возвращает все записи с неотправленными изменениями
func (s *Storage) Unsynced(ctx context.Context) ([]*model.VisitRecord, error) {
	return s.queryVisits(ctx, `SELECT `+visitColumns+` FROM visits WHERE synced = 0 ORDER BY updated_at ASC`)
}

// Conflicted возвращает все записи с открытым конфликтом
func (s *Storage) Conflicted(ctx context.Context) ([]*model.VisitRecord, error) {
	return s.queryVisits(ctx, `SELECT `+visitColumns+` FROM visits WHERE conflict_detected = 1 ORDER BY updated_at ASC`)
}

// WithSyncErrors возвращает записи, у которых зафиксирована ошибка
// последней синхронизации
func (s *Storage) WithSyncErrors(ctx context.Context) ([]*model.VisitRecord, error) {
	return s.queryVisits(ctx, `SELECT `+visitColumns+` FROM visits WHERE last_sync_error != '' ORDER BY updated_at ASC`)
}

// List возвращает все записи
func (s *Storage) List(ctx context.Context) ([]*model.VisitRecord, error) {
	return s.queryVisits(ctx, `SELECT `+visitColumns+` FROM visits ORDER BY scheduled_at ASC`)
}

func (s *Storage) queryVisits(ctx context.Context, query string, args ...any) ([]*model.VisitRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var recs []*model.VisitRecord
	for rows.Next() {
		rec, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*model.VisitRecord, error) {
	var rec model.VisitRecord
	var scheduledAt, createdAt, updatedAt string
	var photos, documents string
	var serverVersion sql.NullString
	var status, vtype, priority string

	if err := row.Scan(
		&rec.ID, &rec.ClientName, &rec.Address, &scheduledAt, &rec.Notes,
		&status, &vtype, &priority, &photos, &documents,
		&createdAt, &updatedAt,
		&rec.Synced, &rec.ConflictDetected, &serverVersion, &rec.SyncAttempts, &rec.LastSyncError,
	); err != nil {
		return nil, err
	}

	rec.Status = model.VisitStatus(status)
	rec.Type = model.VisitType(vtype)
	rec.Priority = model.VisitPriority(priority)

	rec.ScheduledAt, _ = time.Parse(time.RFC3339Nano, scheduledAt)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	if err := json.Unmarshal([]byte(photos), &rec.Photos); err != nil {
		return nil, fmt.Errorf("parse photos: %w", err)
	}
	if err := json.Unmarshal([]byte(documents), &rec.Documents); err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}
	if serverVersion.Valid && serverVersion.String != "" {
		rec.ServerVersion = &model.VisitRecord{}
		if err := json.Unmarshal([]byte(serverVersion.String), rec.ServerVersion); err != nil {
			return nil, fmt.Errorf("parse server version: %w", err)
		}
	}

	return &rec, nil
}

func marshalBlobs(rec *model.VisitRecord) (photos, documents string, serverVersion sql.NullString, err error) {
	p, err := json.Marshal(rec.Photos)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("marshal photos: %w", err)
	}
	d, err := json.Marshal(rec.Documents)
	if err != nil {
		return "", "", sql.NullString{}, fmt.Errorf("marshal documents: %w", err)
	}
	if rec.Photos == nil {
		p = []byte("[]")
	}
	if rec.Documents == nil {
		d = []byte("[]")
	}

	if rec.ServerVersion != nil {
		sv, err := json.Marshal(rec.ServerVersion)
		if err != nil {
			return "", "", sql.NullString{}, fmt.Errorf("marshal server version: %w", err)
		}
		serverVersion = sql.NullString{String: string(sv), Valid: true}
	}

	return string(p), string(d), serverVersion, nil
}
