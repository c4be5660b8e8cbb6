package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldvisit/internal/model"
)

func conflictedVisit(id string) *model.VisitRecord {
	rec := testVisit(id, false)
	rec.ClientName = "локальная версия"

	server := testVisit(id, true)
	server.ClientName = "серверная версия"
	server.UpdatedAt = rec.UpdatedAt.Add(time.Minute)

	rec.ConflictDetected = true
	rec.ServerVersion = server
	rec.SyncAttempts = 2
	rec.LastSyncError = ConflictMessage
	return rec
}

func TestResolve_LocalWins(t *testing.T) {
	ctx := context.Background()

	rec := conflictedVisit("visit-a")
	store := newFakeStore(rec)
	tr := newFakeTransport()

	e := newTestEngine(t, store, newFakeKV(), tr, &fakeNet{online: true}, nil)

	if err := e.Resolve(ctx, "visit-a", LocalWins{}); err != nil {
		t.Fatalf("разрешение конфликта: %v", err)
	}

	got := store.mustGet(t, "visit-a")
	if got.ConflictDetected || got.ServerVersion != nil || got.SyncAttempts != 0 || got.LastSyncError != "" {
		t.Error("все маркеры конфликта должны быть очищены")
	}
	if got.ClientName != "локальная версия" {
		t.Error("локальные поля должны сохраниться")
	}
	if !got.UpdatedAt.After(rec.UpdatedAt) {
		t.Error("метка времени должна быть обновлена для повторной отправки")
	}

	// Оппортунистическая отправка при наличии сети: ровно один запрос
	if len(tr.pushedRecords) != 1 {
		t.Errorf("ожидалась одна отправка после разрешения, получено %d", len(tr.pushedRecords))
	}
	if !store.mustGet(t, "visit-a").Synced {
		t.Error("после оппортунистической отправки запись должна быть synced")
	}
}

func TestResolve_LocalWinsOffline(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore(conflictedVisit("visit-a"))
	tr := newFakeTransport()

	e := newTestEngine(t, store, newFakeKV(), tr, &fakeNet{online: false}, nil)

	if err := e.Resolve(ctx, "visit-a", LocalWins{}); err != nil {
		t.Fatalf("разрешение конфликта: %v", err)
	}

	// Без сети разрешение состоялось, отправка отложена
	if len(tr.pushedRecords) != 0 {
		t.Error("офлайн-разрешение не должно трогать транспорт")
	}
	got := store.mustGet(t, "visit-a")
	if got.Synced {
		t.Error("запись должна ждать следующей синхронизации")
	}
	if got.ConflictDetected {
		t.Error("конфликт должен быть закрыт и без сети")
	}
}

func TestResolve_RemoteWins(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore(conflictedVisit("visit-a"))
	e := newTestEngine(t, store, newFakeKV(), newFakeTransport(), &fakeNet{online: true}, nil)

	if err := e.Resolve(ctx, "visit-a", RemoteWins{}); err != nil {
		t.Fatalf("разрешение конфликта: %v", err)
	}

	got := store.mustGet(t, "visit-a")
	if got.ClientName != "серверная версия" {
		t.Errorf("должен быть принят серверный снимок, получено %q", got.ClientName)
	}
	if got.ID != "visit-a" {
		t.Errorf("идентификатор записи должен сохраниться, получен %s", got.ID)
	}
	if !got.Synced {
		t.Error("принятая серверная версия уже синхронизирована")
	}
	if got.ConflictDetected || got.ServerVersion != nil || got.LastSyncError != "" {
		t.Error("маркеры конфликта должны быть очищены")
	}
}

func TestResolve_RemoteWinsWithoutSnapshot(t *testing.T) {
	ctx := context.Background()

	rec := conflictedVisit("visit-a")
	rec.ServerVersion = nil
	store := newFakeStore(rec)

	e := newTestEngine(t, store, newFakeKV(), newFakeTransport(), &fakeNet{online: true}, nil)

	err := e.Resolve(ctx, "visit-a", RemoteWins{})
	if !errors.Is(err, ErrMissingServerVersion) {
		t.Errorf("ожидалась ErrMissingServerVersion, получено %v", err)
	}
}

func TestResolve_UnknownRecord(t *testing.T) {
	e := newTestEngine(t, newFakeStore(), newFakeKV(), newFakeTransport(), &fakeNet{online: true}, nil)

	err := e.Resolve(context.Background(), "visit-missing", LocalWins{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestResolve_NoOpenConflictIsNoOp(t *testing.T) {
	ctx := context.Background()

	rec := testVisit("visit-a", true)
	store := newFakeStore(rec)
	tr := newFakeTransport()

	e := newTestEngine(t, store, newFakeKV(), tr, &fakeNet{online: true}, nil)

	// Вызов без открытого конфликта логируется и не считается ошибкой
	if err := e.Resolve(ctx, "visit-a", LocalWins{}); err != nil {
		t.Errorf("ожидался no-op без ошибки, получено %v", err)
	}

	got := store.mustGet(t, "visit-a")
	if !got.Synced || got.UpdatedAt != rec.UpdatedAt {
		t.Error("запись без конфликта не должна изменяться")
	}
	if len(tr.pushedRecords) != 0 {
		t.Error("no-op не должен трогать транспорт")
	}
}
