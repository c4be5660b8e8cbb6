package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldvisit/internal/model"
)

// ConflictMessage - фиксированный текст, записываемый в LastSyncError при
// обнаружении конфликта
const ConflictMessage = "sync conflict: local and remote versions have diverged"

// pull забирает с сервера записи, измененные после последнего чекпоинта, и
// вливает их в локальное хранилище, помечая конфликты.
//
// Правило "строго более новая удаленная версия перезаписывает локальную даже
// при несинхронизированных локальных правках" унаследовано от исходной логики
// и, вероятно, теряет данные. Оно включено по умолчанию
// (Config.RemoteWinsWhenNewer); при выключении такая пара помечается как
// конфликт наравне с остальными.
func (e *Engine) pull(ctx context.Context) (applied, conflicts int, err error) {
	since := e.checkpoint(ctx)

	remotes, err := e.transport.PullChanges(ctx, since)
	if err != nil {
		if merr := e.ledger.Mutate(ctx, func(s *Stats) {
			s.FailedSyncs++
			s.LastError = err.Error()
		}); merr != nil {
			e.log.Warn("failed to persist sync stats", "error", merr)
		}
		return 0, 0, fmt.Errorf("pull changes: %w", err)
	}

	for _, remote := range remotes {
		ok, conflict := e.applyRemote(ctx, remote)
		if ok {
			applied++
		}
		if conflict {
			conflicts++
		}
	}

	if err := e.kv.Set(ctx, keyCheckpoint, time.Now().Format(time.RFC3339Nano)); err != nil {
		e.log.Warn("failed to persist sync checkpoint", "error", err)
	}
	if err := e.ledger.Mutate(ctx, func(s *Stats) {
		s.SuccessfulSyncs++
	}); err != nil {
		e.log.Warn("failed to persist sync stats", "error", err)
	}

	e.log.Debug("pull complete", "received", len(remotes), "applied", applied, "conflicts", conflicts)
	return applied, conflicts, nil
}

// applyRemote вливает одну удаленную запись. Ошибки хранилища логируются и
// не прерывают обработку остальных записей.
func (e *Engine) applyRemote(ctx context.Context, remote *model.VisitRecord) (applied, conflict bool) {
	local, err := e.store.Get(ctx, remote.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.log.Warn("failed to load local record", "record_id", remote.ID, "error", err)
			return false, false
		}

		// Записи нет локально - вставляем серверную версию
		inserted := remote.Clone()
		inserted.Synced = true
		if err := e.store.Add(ctx, inserted); err != nil {
			e.log.Warn("failed to insert remote record", "record_id", remote.ID, "error", err)
			return false, false
		}
		return true, false
	}

	switch {
	case remote.UpdatedAt.After(local.UpdatedAt):
		if !e.cfg.RemoteWinsWhenNewer && !local.Synced {
			// Строгий режим: несинхронизированные локальные правки не
			// перезаписываются, даже если сервер новее
			return false, e.flagConflict(ctx, local, remote)
		}

		overwritten := remote.Clone()
		overwritten.Synced = true
		overwritten.ConflictDetected = false
		overwritten.ServerVersion = nil
		if err := e.store.Update(ctx, overwritten); err != nil {
			e.log.Warn("failed to overwrite local record", "record_id", remote.ID, "error", err)
			return false, false
		}
		return true, false

	case !local.Synced:
		// Сервер не новее, а локальная копия несет неотправленные правки -
		// обе стороны разошлись с момента последней синхронизации
		return false, e.flagConflict(ctx, local, remote)

	default:
		// Локальная копия авторитетна и уже синхронизирована
		return false, false
	}
}

// flagConflict помечает локальную запись конфликтной и прячет серверный
// снимок для последующего разрешения. Локальные поля не трогаются.
func (e *Engine) flagConflict(ctx context.Context, local, remote *model.VisitRecord) bool {
	local.ConflictDetected = true
	local.ServerVersion = remote.Clone()
	local.SyncAttempts++
	local.LastSyncError = ConflictMessage

	if err := e.store.Update(ctx, local); err != nil {
		e.log.Warn("failed to flag conflict", "record_id", local.ID, "error", err)
		return false
	}

	e.log.Info("sync conflict detected",
		"record_id", local.ID,
		"local_updated_at", local.UpdatedAt,
		"remote_updated_at", remote.UpdatedAt,
	)
	return true
}

// checkpoint возвращает время последнего успешного pull (нулевое, если
// синхронизации еще не было)
func (e *Engine) checkpoint(ctx context.Context) time.Time {
	raw, ok, err := e.kv.Get(ctx, keyCheckpoint)
	if err != nil {
		e.log.Warn("failed to load sync checkpoint", "error", err)
		return time.Time{}
	}
	if !ok || raw == "" {
		return time.Time{}
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		e.log.Warn("malformed sync checkpoint", "value", raw, "error", err)
		return time.Time{}
	}
	return ts
}
