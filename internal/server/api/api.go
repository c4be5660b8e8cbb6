// Сервер синхронизации полевых визитов:
//
// POST /api/sync/records  # Принять запись или чанк
// GET  /api/sync/changes  # Отдать изменения после ?since=
// GET  /health            # Проверка доступности

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	healthAPI "fieldvisit/internal/server/api/health"
	syncAPI "fieldvisit/internal/server/api/sync"
	"fieldvisit/internal/server/storage/postgres"
)

// New создает *chi.Mux со всеми операциями через huma.Register
func New(storage *postgres.Storage, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(middleware.Recoverer)

	config := huma.DefaultConfig("FieldVisit Sync API", "1.0.0")
	API := humachi.New(mux, config)

	visitRepo := postgres.NewVisitRepository(storage, log)

	healthAPI.NewHandler(log).SetupRoutes(API)
	syncAPI.NewHandler(visitRepo, log).SetupRoutes(API)

	return mux
}
