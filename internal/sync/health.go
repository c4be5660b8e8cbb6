package sync

import (
	"context"
	"fmt"
)

// HealthStatus производный статус движка синхронизации
type HealthStatus string

const (
	StatusHealthy HealthStatus = "healthy"
	StatusWarning HealthStatus = "warning"
	StatusError   HealthStatus = "error"
)

// Health сводка состояния синхронизации
type Health struct {
	Status            HealthStatus `json:"status"`
	PendingRecords    int          `json:"pending_records"`
	OpenConflicts     int          `json:"open_conflicts"`
	RecordsWithErrors int          `json:"records_with_errors"`
	Stats             Stats        `json:"stats"`
}

// Health - чистое чтение: длина очереди, открытые конфликты, записи с
// ошибками и коэффициенты из статистики. Статус выводится в порядке
// приоритета error > warning > healthy.
func (e *Engine) Health(ctx context.Context) (*Health, error) {
	conflicted, err := e.store.Conflicted(ctx)
	if err != nil {
		return nil, fmt.Errorf("query conflicted records: %w", err)
	}
	withErrors, err := e.store.WithSyncErrors(ctx)
	if err != nil {
		return nil, fmt.Errorf("query records with errors: %w", err)
	}

	h := &Health{
		PendingRecords:    e.queue.Len(),
		OpenConflicts:     len(conflicted),
		RecordsWithErrors: len(withErrors),
		Stats:             e.ledger.Snapshot(),
	}
	h.Status = deriveStatus(h)
	return h, nil
}

// deriveStatus применяет пороги к сводке. Порог отказов в 50% включительный:
// ровно половина неудач от числа успехов уже считается ошибкой.
func deriveStatus(h *Health) HealthStatus {
	failed, succeeded := h.Stats.FailedSyncs, h.Stats.SuccessfulSyncs

	if h.OpenConflicts > 0 || (failed > 0 && 2*failed >= succeeded) {
		return StatusError
	}
	if h.PendingRecords > 10 || (failed > 0 && 5*failed > succeeded) || h.RecordsWithErrors > 0 {
		return StatusWarning
	}
	return StatusHealthy
}
