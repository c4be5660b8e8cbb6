package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/exp/slog"
)

// Queue - персистентное множество идентификаторов записей, ожидающих
// отправки. Хранится отдельно от флага synced самих записей, поэтому
// переживает перезапуск процесса.
type Queue struct {
	kv  KeyValue
	log *slog.Logger
	ids map[string]struct{}
}

// LoadQueue загружает очередь из key-value хранилища
func LoadQueue(ctx context.Context, kv KeyValue, log *slog.Logger) (*Queue, error) {
	q := &Queue{
		kv:  kv,
		log: log,
		ids: make(map[string]struct{}),
	}

	raw, ok, err := kv.Get(ctx, keyQueue)
	if err != nil {
		return nil, fmt.Errorf("load sync queue: %w", err)
	}
	if !ok || raw == "" {
		return q, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("parse sync queue: %w", err)
	}
	for _, id := range ids {
		q.ids[id] = struct{}{}
	}

	return q, nil
}

// Enqueue добавляет идентификатор, если его еще нет (идемпотентно)
func (q *Queue) Enqueue(ctx context.Context, id string) error {
	if _, exists := q.ids[id]; exists {
		return nil
	}

	q.ids[id] = struct{}{}
	if err := q.persist(ctx); err != nil {
		return err
	}

	q.log.Debug("record queued for sync", "record_id", id, "queue_len", len(q.ids))
	return nil
}

// Dequeue удаляет идентификатор, если он есть
func (q *Queue) Dequeue(ctx context.Context, id string) error {
	if _, exists := q.ids[id]; !exists {
		return nil
	}

	delete(q.ids, id)
	return q.persist(ctx)
}

// List возвращает копию текущих идентификаторов. Порядок вставки не значим,
// поэтому для детерминизма срез отсортирован.
func (q *Queue) List() []string {
	ids := make([]string, 0, len(q.ids))
	for id := range q.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len возвращает размер очереди
func (q *Queue) Len() int {
	return len(q.ids)
}

func (q *Queue) persist(ctx context.Context) error {
	data, err := json.Marshal(q.List())
	if err != nil {
		return fmt.Errorf("marshal sync queue: %w", err)
	}
	if err := q.kv.Set(ctx, keyQueue, string(data)); err != nil {
		return fmt.Errorf("persist sync queue: %w", err)
	}
	return nil
}
