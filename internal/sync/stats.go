package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

// Stats статистика синхронизации
type Stats struct {
	LastSuccessfulSync time.Time `json:"last_successful_sync"`
	SyncAttempts       int       `json:"sync_attempts"`
	SuccessfulSyncs    int       `json:"successful_syncs"`
	FailedSyncs        int       `json:"failed_syncs"`
	LastError          string    `json:"last_error,omitempty"`
}

// Ledger - журнал статистики синхронизации. Загружается один раз при старте
// (дефолты, если состояния нет) и сохраняется после каждой мутации.
type Ledger struct {
	kv    KeyValue
	log   *slog.Logger
	stats Stats
}

// LoadLedger загружает сохраненную статистику из key-value хранилища
func LoadLedger(ctx context.Context, kv KeyValue, log *slog.Logger) (*Ledger, error) {
	l := &Ledger{kv: kv, log: log}

	raw, ok, err := kv.Get(ctx, keyStats)
	if err != nil {
		return nil, fmt.Errorf("load sync stats: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &l.stats); err != nil {
			return nil, fmt.Errorf("parse sync stats: %w", err)
		}
	}

	return l, nil
}

// Snapshot возвращает копию текущей статистики
func (l *Ledger) Snapshot() Stats {
	return l.stats
}

// Mutate применяет изменение и сразу сохраняет статистику
func (l *Ledger) Mutate(ctx context.Context, fn func(*Stats)) error {
	fn(&l.stats)
	return l.persist(ctx)
}

// Reset сбрасывает статистику в начальное состояние
func (l *Ledger) Reset(ctx context.Context) error {
	l.stats = Stats{}
	return l.persist(ctx)
}

func (l *Ledger) persist(ctx context.Context) error {
	data, err := json.Marshal(l.stats)
	if err != nil {
		return fmt.Errorf("marshal sync stats: %w", err)
	}
	if err := l.kv.Set(ctx, keyStats, string(data)); err != nil {
		return fmt.Errorf("persist sync stats: %w", err)
	}
	return nil
}
