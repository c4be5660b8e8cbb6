package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) pushOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-push",
		Method:      http.MethodPost,
		Path:        "/api/sync/records",
		Summary:     "Принять запись или чанк",
		Description: "Принимает запись о визите целиком либо один чанк разбитой записи",
		Tags:        []string{"sync"},
	}
}

func (h *Handler) changesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-changes",
		Method:      http.MethodGet,
		Path:        "/api/sync/changes",
		Summary:     "Отдать изменения для синхронизации",
		Description: "Возвращает записи, измененные после указанного времени",
		Tags:        []string{"sync"},
	}
}
