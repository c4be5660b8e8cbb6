package sync

import (
	"context"
	"fmt"
	"time"

	"fieldvisit/internal/model"
)

// Resolution - выбор пользователя при разрешении конфликта.
// Закрытое объединение: LocalWins либо RemoteWins.
type Resolution interface {
	isResolution()
}

// LocalWins оставляет локальную версию и ставит запись на повторную отправку
type LocalWins struct{}

// RemoteWins принимает спрятанный серверный снимок
type RemoteWins struct{}

func (LocalWins) isResolution()  {}
func (RemoteWins) isResolution() {}

// Resolve применяет выбор пользователя к конфликтной записи.
//
// Возвращает ErrNotFound, если записи нет, и ErrMissingServerVersion, если
// для RemoteWins отсутствует серверный снимок. Отсутствие открытого
// конфликта - не ошибка вызова: логируется и игнорируется.
func (e *Engine) Resolve(ctx context.Context, id string, res Resolution) error {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve conflict %s: %w", id, err)
	}

	if !rec.ConflictDetected {
		e.log.Warn("resolve called without open conflict", "record_id", id)
		return nil
	}

	switch res.(type) {
	case LocalWins:
		clearConflict(rec)
		rec.Synced = false
		// Свежая метка времени, чтобы локальная версия выигрывала будущие
		// сравнения и была отправлена повторно
		rec.UpdatedAt = time.Now()
		if err := e.store.Update(ctx, rec); err != nil {
			return fmt.Errorf("resolve conflict %s: %w", id, err)
		}

		e.log.Info("conflict resolved, local version kept", "record_id", id)

		// Оппортунистическая отправка: разрешение уже состоялось, ошибка
		// отправки проглатывается
		if e.net.Online() {
			if _, errs := e.pushBatch(ctx, []*model.VisitRecord{rec}); len(errs) > 0 {
				e.log.Warn("opportunistic push after resolve failed",
					"record_id", id,
					"error", errs[0].Error,
				)
			}
		}
		return nil

	case RemoteWins:
		if rec.ServerVersion == nil {
			return fmt.Errorf("resolve conflict %s: %w", id, ErrMissingServerVersion)
		}

		accepted := rec.ServerVersion.Clone()
		accepted.ID = rec.ID
		clearConflict(accepted)
		accepted.Synced = true
		if err := e.store.Update(ctx, accepted); err != nil {
			return fmt.Errorf("resolve conflict %s: %w", id, err)
		}

		e.log.Info("conflict resolved, server version accepted", "record_id", id)
		return nil

	default:
		return fmt.Errorf("resolve conflict %s: unknown resolution %T", id, res)
	}
}

func clearConflict(rec *model.VisitRecord) {
	rec.ConflictDetected = false
	rec.ServerVersion = nil
	rec.SyncAttempts = 0
	rec.LastSyncError = ""
}
