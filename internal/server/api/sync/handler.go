package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
	"fieldvisit/internal/server/storage/postgres"
)

// Repository - серверное хранилище записей о визитах
type Repository interface {
	Upsert(ctx context.Context, rec *model.VisitRecord) error
	AppendPhotos(ctx context.Context, parentID string, items []model.Photo) error
	AppendDocuments(ctx context.Context, parentID string, items []model.Document) error
	ChangedSince(ctx context.Context, since time.Time) ([]*model.VisitRecord, error)
}

type Handler struct {
	repo Repository
	log  *slog.Logger
}

func NewHandler(repo Repository, log *slog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.pushOp(), h.push)
	huma.Register(api, h.changesOp(), h.changes)
}

// push принимает запись целиком либо один чанк. Чанки одной записи приходят
// последовательно: базовый чанк (обычная запись с пустыми списками), затем
// фото- и документ-чанки, дописываемые в порядке поступления.
func (h *Handler) push(ctx context.Context, in *PushInput) (*PushOutput, error) {
	var probe chunkProbe
	if err := json.Unmarshal(in.RawBody, &probe); err != nil {
		return nil, huma.Error422UnprocessableEntity("malformed push body", err)
	}

	switch probe.ChunkType {
	case "":
		// Запись целиком или базовый чанк
		var rec model.VisitRecord
		if err := json.Unmarshal(in.RawBody, &rec); err != nil {
			return nil, huma.Error422UnprocessableEntity("malformed visit record", err)
		}
		if rec.ID == "" {
			return nil, huma.Error422UnprocessableEntity("visit record id is required")
		}

		// Клиентское состояние синхронизации не хранится на сервере
		rec.Synced = false
		rec.ConflictDetected = false
		rec.ServerVersion = nil
		rec.SyncAttempts = 0
		rec.LastSyncError = ""

		if err := h.repo.Upsert(ctx, &rec); err != nil {
			h.log.Error("failed to upsert visit", "visit_id", rec.ID, "error", err)
			return nil, huma.Error500InternalServerError("failed to store visit")
		}

	case "photos":
		var env chunkEnvelope
		if err := json.Unmarshal(in.RawBody, &env); err != nil {
			return nil, huma.Error422UnprocessableEntity("malformed photo chunk", err)
		}
		var items []model.Photo
		if err := json.Unmarshal(env.Items, &items); err != nil {
			return nil, huma.Error422UnprocessableEntity("malformed photo chunk items", err)
		}

		h.log.Debug("photo chunk received",
			"parent_id", env.ParentID,
			"chunk", fmt.Sprintf("%d/%d", env.ChunkIndex+1, env.TotalChunks),
		)

		if err := h.repo.AppendPhotos(ctx, env.ParentID, items); err != nil {
			if errors.Is(err, postgres.ErrVisitNotFound) {
				return nil, huma.Error404NotFound("parent visit not found")
			}
			h.log.Error("failed to append photos", "parent_id", env.ParentID, "error", err)
			return nil, huma.Error500InternalServerError("failed to store chunk")
		}

	case "documents":
		var env chunkEnvelope
		if err := json.Unmarshal(in.RawBody, &env); err != nil {
			return nil, huma.Error422UnprocessableEntity("malformed document chunk", err)
		}
		var items []model.Document
		if err := json.Unmarshal(env.Items, &items); err != nil {
			return nil, huma.Error422UnprocessableEntity("malformed document chunk items", err)
		}

		if err := h.repo.AppendDocuments(ctx, env.ParentID, items); err != nil {
			if errors.Is(err, postgres.ErrVisitNotFound) {
				return nil, huma.Error404NotFound("parent visit not found")
			}
			h.log.Error("failed to append documents", "parent_id", env.ParentID, "error", err)
			return nil, huma.Error500InternalServerError("failed to store chunk")
		}

	default:
		return nil, huma.Error422UnprocessableEntity("unknown chunk type: " + probe.ChunkType)
	}

	return &PushOutput{Body: PushResponse{Status: "Ok"}}, nil
}

// changes возвращает записи, измененные после since
func (h *Handler) changes(ctx context.Context, in *ChangesInput) (*ChangesOutput, error) {
	var since time.Time
	if in.Since != "" {
		parsed, err := time.Parse(time.RFC3339Nano, in.Since)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("malformed since timestamp", err)
		}
		since = parsed
	}

	records, err := h.repo.ChangedSince(ctx, since)
	if err != nil {
		h.log.Error("failed to query changes", "error", err)
		return nil, huma.Error500InternalServerError("failed to query changes")
	}
	if records == nil {
		records = []*model.VisitRecord{}
	}

	return &ChangesOutput{
		Body: ChangesResponse{
			Status:     "Ok",
			Records:    records,
			ServerTime: time.Now(),
		},
	}, nil
}
