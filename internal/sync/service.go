package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
)

// Config конфигурация движка синхронизации
type Config struct {
	// Interval период фонового таймера синхронизации
	Interval time.Duration

	// LockTTL - срок аренды персистентного флага isSyncing. Флаг переживает
	// перезапуск процесса; без срока аренды аварийное завершение между
	// захватом и освобождением навсегда блокировало бы синхронизацию.
	// Протухшая аренда перехватывается следующим запуском.
	LockTTL time.Duration

	// RemoteWinsWhenNewer сохраняет унаследованное правило "строго более
	// новая серверная версия перезаписывает локальную, включая
	// несинхронизированные правки". false переключает на строгое
	// детектирование конфликтов.
	RemoteWinsWhenNewer bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Interval:            15 * time.Minute,
		LockTTL:             30 * time.Minute,
		RemoteWinsWhenNewer: true,
	}
}

// RecordError ошибка синхронизации одной записи
type RecordError struct {
	RecordID  string    `json:"record_id"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Result итог одного запуска синхронизации
type Result struct {
	Skipped   string        `json:"skipped,omitempty"` // offline | already_running
	Pushed    int           `json:"pushed"`
	Pulled    int           `json:"pulled"`
	Conflicts int           `json:"conflicts"`
	Errors    []RecordError `json:"errors,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Engine - движок офлайн-синхронизации: единая точка входа, которая
// осушает очередь отправки, досылает несинхронизированные записи и
// забирает серверные изменения.
type Engine struct {
	store     RecordStore
	kv        KeyValue
	transport Transport
	net       Connectivity
	sched     Scheduler
	cfg       *Config
	log       *slog.Logger

	queue  *Queue
	ledger *Ledger
	prep   *Preparer
}

// New собирает движок и загружает персистентное состояние (очередь и
// статистику). sched может быть nil - тогда работает только foreground-таймер.
func New(ctx context.Context, store RecordStore, kv KeyValue, tr Transport, net Connectivity, sched Scheduler, cfg *Config, log *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	queue, err := LoadQueue(ctx, kv, log)
	if err != nil {
		return nil, err
	}
	ledger, err := LoadLedger(ctx, kv, log)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:     store,
		kv:        kv,
		transport: tr,
		net:       net,
		sched:     sched,
		cfg:       cfg,
		log:       log,
		queue:     queue,
		ledger:    ledger,
		prep:      NewPreparer(log),
	}, nil
}

// Queue возвращает очередь ожидающих отправки записей
func (e *Engine) Queue() *Queue {
	return e.queue
}

// Stats возвращает копию текущей статистики синхронизации
func (e *Engine) Stats() Stats {
	return e.ledger.Snapshot()
}

// ResetStats сбрасывает статистику синхронизации
func (e *Engine) ResetStats(ctx context.Context) error {
	return e.ledger.Reset(ctx)
}

// Run выполняет полный цикл синхронизации: осушение очереди, отправка
// несинхронизированных записей, затем pull. Оффлайн и уже идущая
// синхронизация превращают вызов в no-op. Ошибки хранилищ внутри шагов
// логируются и проглатываются - следующий триггер просто попробует снова;
// освобождение флага isSyncing гарантировано на всех путях выхода.
func (e *Engine) Run(ctx context.Context) *Result {
	res := &Result{StartTime: time.Now()}
	defer func() {
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(res.StartTime)
	}()

	if !e.net.Online() {
		e.log.Debug("sync skipped: offline")
		res.Skipped = "offline"
		return res
	}

	acquired, err := e.acquireLock(ctx)
	if err != nil {
		e.log.Error("failed to acquire sync lock", "error", err)
		res.Skipped = "lock_unavailable"
		return res
	}
	if !acquired {
		e.log.Debug("sync skipped: already running")
		res.Skipped = "already_running"
		return res
	}
	defer e.releaseLock(ctx)

	if err := e.ledger.Mutate(ctx, func(s *Stats) {
		s.SyncAttempts++
	}); err != nil {
		e.log.Warn("failed to persist sync stats", "error", err)
	}

	e.log.Info("sync started")

	// Шаг 1: осушаем очередь отправки. Идентификаторы без записи просто
	// пропускаются.
	queued := e.resolveQueued(ctx)
	pushed, errs := e.pushBatch(ctx, queued)
	res.Pushed += pushed
	res.Errors = append(res.Errors, errs...)

	// Шаг 2: досылаем все, что осталось несинхронизированным
	unsynced, err := e.store.Unsynced(ctx)
	if err != nil {
		e.log.Error("failed to query unsynced records", "error", err)
	} else if len(unsynced) > 0 {
		pushed, errs = e.pushBatch(ctx, unsynced)
		res.Pushed += pushed
		res.Errors = append(res.Errors, errs...)
	}

	// Шаг 3: забираем серверные изменения
	pulled, conflicts, err := e.pull(ctx)
	if err != nil {
		e.log.Error("pull failed", "error", err)
		res.Errors = append(res.Errors, RecordError{
			Operation: "pull",
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
	}
	res.Pulled = pulled
	res.Conflicts = conflicts

	e.log.Info("sync finished",
		"pushed", res.Pushed,
		"pulled", res.Pulled,
		"conflicts", res.Conflicts,
		"errors", len(res.Errors),
	)

	return res
}

// resolveQueued превращает очередь идентификаторов в записи
func (e *Engine) resolveQueued(ctx context.Context) []*model.VisitRecord {
	ids := e.queue.List()
	recs := make([]*model.VisitRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := e.store.Get(ctx, id)
		if err != nil {
			e.log.Debug("queued record unavailable, skipping", "record_id", id, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// acquireLock захватывает персистентный флаг isSyncing как аренду: значением
// хранится время захвата, аренда старше LockTTL считается протухшей после
// аварийного завершения и перехватывается.
func (e *Engine) acquireLock(ctx context.Context) (bool, error) {
	raw, ok, err := e.kv.Get(ctx, keyLock)
	if err != nil {
		return false, fmt.Errorf("read sync lock: %w", err)
	}

	if ok && raw != "" && raw != "false" {
		acquiredAt, perr := time.Parse(time.RFC3339Nano, raw)
		if perr == nil && time.Since(acquiredAt) < e.cfg.LockTTL {
			return false, nil
		}
		// Неразбираемое значение (например, унаследованное "true") тоже
		// трактуется как протухшая аренда
		e.log.Warn("reclaiming stale sync lock", "value", raw)
	}

	if err := e.kv.Set(ctx, keyLock, time.Now().Format(time.RFC3339Nano)); err != nil {
		return false, fmt.Errorf("write sync lock: %w", err)
	}
	return true, nil
}

func (e *Engine) releaseLock(ctx context.Context) {
	if err := e.kv.Set(ctx, keyLock, "false"); err != nil {
		e.log.Error("failed to release sync lock", "error", err)
	}
}

// StartAutoSync запускает триггеры синхронизации и блокируется до отмены
// контекста: переход сети в online, периодический таймер и, если платформа
// его дает, фоновый планировщик. Пересекающиеся триггеры вырождаются в
// no-op за счет флага isSyncing.
func (e *Engine) StartAutoSync(ctx context.Context) {
	unsubscribe := e.net.Subscribe(func(online bool) {
		if online {
			e.log.Info("connectivity restored, triggering sync")
			e.Run(ctx)
		}
	})
	defer unsubscribe()

	if e.sched != nil {
		if err := e.sched.Register("fieldvisit-sync", func(taskCtx context.Context) {
			e.Run(taskCtx)
		}); err != nil {
			// Фоновый планировщик best-effort: без него остается таймер
			e.log.Warn("background scheduler unavailable", "error", err)
		}
	}

	e.log.Info("auto sync started", "interval", e.cfg.Interval)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("auto sync stopped")
			return
		case <-ticker.C:
			e.Run(ctx)
		}
	}
}
