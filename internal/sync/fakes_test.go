package sync

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
)

// fakeStore - хранилище записей в памяти для тестов движка
type fakeStore struct {
	recs map[string]*model.VisitRecord
}

func newFakeStore(recs ...*model.VisitRecord) *fakeStore {
	s := &fakeStore{
		recs: make(map[string]*model.VisitRecord),
	}
	for _, r := range recs {
		s.recs[r.ID] = r.Clone()
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (*model.VisitRecord, error) {
	rec, ok := s.recs[id]
	if !ok {
		return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *fakeStore) Add(_ context.Context, rec *model.VisitRecord) error {
	if _, exists := s.recs[rec.ID]; exists {
		return fmt.Errorf("visit %s already exists", rec.ID)
	}
	s.recs[rec.ID] = rec.Clone()
	return nil
}

func (s *fakeStore) Update(_ context.Context, rec *model.VisitRecord) error {
	if _, exists := s.recs[rec.ID]; !exists {
		return fmt.Errorf("visit %s: %w", rec.ID, ErrNotFound)
	}
	s.recs[rec.ID] = rec.Clone()
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	delete(s.recs, id)
	return nil
}

func (s *fakeStore) Unsynced(_ context.Context) ([]*model.VisitRecord, error) {
	return s.filter(func(r *model.VisitRecord) bool { return !r.Synced }), nil
}

func (s *fakeStore) Conflicted(_ context.Context) ([]*model.VisitRecord, error) {
	return s.filter(func(r *model.VisitRecord) bool { return r.ConflictDetected }), nil
}

func (s *fakeStore) WithSyncErrors(_ context.Context) ([]*model.VisitRecord, error) {
	return s.filter(func(r *model.VisitRecord) bool { return r.LastSyncError != "" }), nil
}

func (s *fakeStore) filter(keep func(*model.VisitRecord) bool) []*model.VisitRecord {
	ids := make([]string, 0, len(s.recs))
	for id := range s.recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*model.VisitRecord
	for _, id := range ids {
		if keep(s.recs[id]) {
			out = append(out, s.recs[id].Clone())
		}
	}
	return out
}

// mustGet достает запись напрямую, минуя интерфейс
func (s *fakeStore) mustGet(t *testing.T, id string) *model.VisitRecord {
	t.Helper()
	rec, ok := s.recs[id]
	if !ok {
		t.Fatalf("запись %s отсутствует в хранилище", id)
	}
	return rec
}

// fakeKV - key-value хранилище в памяти
type fakeKV struct {
	data   map[string]string
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (kv *fakeKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *fakeKV) Set(_ context.Context, key, value string) error {
	if kv.setErr != nil {
		return kv.setErr
	}
	kv.data[key] = value
	return nil
}

func (kv *fakeKV) Delete(_ context.Context, key string) error {
	delete(kv.data, key)
	return nil
}

// fakeTransport записывает все вызовы и умеет падать на выбранных записях
type fakeTransport struct {
	pushedRecords []*model.VisitRecord
	pushedChunks  []Chunk

	failPush map[string]error
	pullRecs []*model.VisitRecord
	pullErr  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failPush: make(map[string]error)}
}

func (tr *fakeTransport) PushRecord(_ context.Context, rec *model.VisitRecord) error {
	if err := tr.failPush[rec.ID]; err != nil {
		return err
	}
	tr.pushedRecords = append(tr.pushedRecords, rec.Clone())
	return nil
}

func (tr *fakeTransport) PushChunk(_ context.Context, chunk Chunk) error {
	tr.pushedChunks = append(tr.pushedChunks, chunk)
	return nil
}

func (tr *fakeTransport) PullChanges(_ context.Context, _ time.Time) ([]*model.VisitRecord, error) {
	if tr.pullErr != nil {
		return nil, tr.pullErr
	}
	out := make([]*model.VisitRecord, 0, len(tr.pullRecs))
	for _, r := range tr.pullRecs {
		out = append(out, r.Clone())
	}
	return out, nil
}

// fakeNet - управляемый сигнал сети
type fakeNet struct {
	online bool
	subs   []func(bool)
}

func (n *fakeNet) Online() bool { return n.online }

func (n *fakeNet) Subscribe(fn func(bool)) func() {
	n.subs = append(n.subs, fn)
	return func() {}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine собирает движок на фейках
func newTestEngine(t *testing.T, store *fakeStore, kv *fakeKV, tr *fakeTransport, net *fakeNet, cfg *Config) *Engine {
	t.Helper()
	e, err := New(context.Background(), store, kv, tr, net, nil, cfg, testLogger())
	if err != nil {
		t.Fatalf("сборка движка: %v", err)
	}
	return e
}

func testVisit(id string, synced bool) *model.VisitRecord {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &model.VisitRecord{
		ID:          id,
		ClientName:  "ООО Ромашка",
		Address:     "ул. Ленина, 1",
		ScheduledAt: now,
		Status:      model.StatusScheduled,
		Type:        model.TypeMaintenance,
		Priority:    model.PriorityNormal,
		Photos:      []model.Photo{},
		Documents:   []model.Document{},
		CreatedAt:   now,
		UpdatedAt:   now,
		Synced:      synced,
	}
}
