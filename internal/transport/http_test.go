package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
	"fieldvisit/internal/sync"
)

func testClient(srv *httptest.Server) *Client {
	return New(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPushRecord(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &model.VisitRecord{ID: "visit-1", ClientName: "ООО Ромашка"}
	if err := testClient(srv).PushRecord(context.Background(), rec); err != nil {
		t.Fatalf("отправка записи: %v", err)
	}

	if gotPath != "/api/sync/records" {
		t.Errorf("неверный путь: %s", gotPath)
	}
	if gotBody["id"] != "visit-1" {
		t.Errorf("тело запроса не несет запись: %v", gotBody)
	}
	// Целая запись уходит без маркера чанка
	if _, ok := gotBody["chunk_type"]; ok {
		t.Error("запись целиком не должна нести chunk_type")
	}
}

func TestPushChunk_PhotoEnvelope(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	chunk := sync.PhotoChunk{
		ParentID: "visit-1",
		Index:    1,
		Total:    4,
		Items:    []model.Photo{{ID: "p1"}, {ID: "p2"}},
	}
	if err := testClient(srv).PushChunk(context.Background(), chunk); err != nil {
		t.Fatalf("отправка чанка: %v", err)
	}

	if gotBody["parent_id"] != "visit-1" {
		t.Errorf("неверный parent_id: %v", gotBody["parent_id"])
	}
	if gotBody["chunk_type"] != "photos" {
		t.Errorf("неверный chunk_type: %v", gotBody["chunk_type"])
	}
	if gotBody["chunk_index"] != float64(1) || gotBody["total_chunks"] != float64(4) {
		t.Errorf("неверная нумерация чанка: %v", gotBody)
	}
	items, ok := gotBody["items"].([]any)
	if !ok || len(items) != 2 {
		t.Errorf("чанк должен нести 2 элемента: %v", gotBody["items"])
	}
}

func TestPushChunk_BaseGoesAsRecord(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	chunk := sync.BaseChunk{Record: &model.VisitRecord{ID: "visit-1"}}
	if err := testClient(srv).PushChunk(context.Background(), chunk); err != nil {
		t.Fatalf("отправка базового чанка: %v", err)
	}

	// Базовый чанк на проводе неотличим от целой записи
	if gotBody["id"] != "visit-1" {
		t.Errorf("базовый чанк должен уходить как запись: %v", gotBody)
	}
	if _, ok := gotBody["chunk_type"]; ok {
		t.Error("базовый чанк не должен нести chunk_type")
	}
}

func TestPullChanges(t *testing.T) {
	var gotSince string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sync/changes" {
			t.Errorf("неверный путь: %s", r.URL.Path)
		}
		gotSince = r.URL.Query().Get("since")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []*model.VisitRecord{
				{ID: "visit-1"},
				{ID: "visit-2"},
			},
		})
	}))
	defer srv.Close()

	since := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recs, err := testClient(srv).PullChanges(context.Background(), since)
	if err != nil {
		t.Fatalf("получение изменений: %v", err)
	}

	if gotSince != since.Format(time.RFC3339Nano) {
		t.Errorf("неверный параметр since: %q", gotSince)
	}
	if len(recs) != 2 || recs[0].ID != "visit-1" {
		t.Errorf("неверный разбор ответа: %v", recs)
	}
}

func TestPullChanges_ZeroSinceOmitted(t *testing.T) {
	var hadSince bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadSince = r.URL.Query()["since"]
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []*model.VisitRecord{}})
	}))
	defer srv.Close()

	if _, err := testClient(srv).PullChanges(context.Background(), time.Time{}); err != nil {
		t.Fatalf("получение изменений: %v", err)
	}
	if hadSince {
		t.Error("нулевое время не должно передаваться как since")
	}
}

func TestServerErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(srv).PushRecord(context.Background(), &model.VisitRecord{ID: "visit-1"})
	if err == nil {
		t.Fatal("ожидалась ошибка на статус 500")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("неверный путь: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testClient(srv).Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
