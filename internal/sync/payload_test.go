package sync

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"fieldvisit/internal/model"
)

// bulkDataURL возвращает dataURL заданного размера с не-графическим mime,
// чтобы проход сжатия его не трогал
func bulkDataURL(size int) string {
	return "data:application/octet-stream;base64," + strings.Repeat("A", size)
}

func bigVisit(photos, documents int) *model.VisitRecord {
	rec := testVisit("visit-big", false)
	for i := 0; i < photos; i++ {
		rec.Photos = append(rec.Photos, model.Photo{
			ID:        fmt.Sprintf("photo-%d", i),
			DataURL:   bulkDataURL(2 * 1024 * 1024),
			Timestamp: time.Date(2026, 3, 10, 12, i, 0, 0, time.UTC),
		})
	}
	for i := 0; i < documents; i++ {
		rec.Documents = append(rec.Documents, model.Document{
			ID:       fmt.Sprintf("doc-%d", i),
			Name:     fmt.Sprintf("акт-%d.pdf", i),
			MimeType: "application/pdf",
			DataURL:  bulkDataURL(2 * 1024 * 1024),
		})
	}
	return rec
}

func TestPreparer_SmallRecordNotChunked(t *testing.T) {
	prep := NewPreparer(testLogger())

	rec := testVisit("visit-small", false)
	rec.Photos = []model.Photo{{ID: "p1", DataURL: bulkDataURL(1024)}}

	payload, err := prep.Prepare(rec)
	if err != nil {
		t.Fatalf("подготовка записи: %v", err)
	}

	if payload.Chunked() {
		t.Fatal("маленькая запись не должна разбиваться на чанки")
	}
	if payload.Record == nil || payload.Record.ID != rec.ID {
		t.Error("ожидалась запись целиком")
	}
}

func TestPreparer_ChunkOrderAndReassembly(t *testing.T) {
	prep := NewPreparer(testLogger())

	// 7 фото и 3 документа: ceil(7/2)=4 фото-чанка, ceil(3/2)=2 документ-чанка
	rec := bigVisit(7, 3)

	payload, err := prep.Prepare(rec)
	if err != nil {
		t.Fatalf("подготовка записи: %v", err)
	}
	if !payload.Chunked() {
		t.Fatal("запись больше лимита должна разбиваться на чанки")
	}

	if len(payload.Chunks) != 1+4+2 {
		t.Fatalf("ожидалось 7 чанков, получено %d", len(payload.Chunks))
	}

	// Первым идет базовый чанк с пустыми списками
	base, ok := payload.Chunks[0].(BaseChunk)
	if !ok {
		t.Fatalf("первый чанк должен быть базовым, получен %T", payload.Chunks[0])
	}
	if len(base.Record.Photos) != 0 || len(base.Record.Documents) != 0 {
		t.Error("базовый чанк должен идти без фото и документов")
	}
	if base.Record.ClientName != rec.ClientName {
		t.Error("базовый чанк должен нести скалярные поля записи")
	}

	// Затем фото-чанки в исходном порядке
	var photos []model.Photo
	for i := 1; i <= 4; i++ {
		pc, ok := payload.Chunks[i].(PhotoChunk)
		if !ok {
			t.Fatalf("чанк %d должен быть фото-чанком, получен %T", i, payload.Chunks[i])
		}
		if pc.ParentID != rec.ID {
			t.Errorf("фото-чанк %d: неверный parent %s", i, pc.ParentID)
		}
		if pc.Index != i-1 || pc.Total != 4 {
			t.Errorf("фото-чанк %d: index=%d total=%d", i, pc.Index, pc.Total)
		}
		if len(pc.Items) > 2 {
			t.Errorf("фото-чанк %d несет %d элементов, максимум 2", i, len(pc.Items))
		}
		photos = append(photos, pc.Items...)
	}
	if len(photos) != 7 {
		t.Fatalf("после сборки ожидалось 7 фото, получено %d", len(photos))
	}
	for i, p := range photos {
		if p.ID != rec.Photos[i].ID {
			t.Errorf("фото %d: ожидался %s, получен %s", i, rec.Photos[i].ID, p.ID)
		}
	}

	// И документ-чанки следом
	var docs []model.Document
	for i := 5; i <= 6; i++ {
		dc, ok := payload.Chunks[i].(DocumentChunk)
		if !ok {
			t.Fatalf("чанк %d должен быть документ-чанком, получен %T", i, payload.Chunks[i])
		}
		if dc.Index != i-5 || dc.Total != 2 {
			t.Errorf("документ-чанк %d: index=%d total=%d", i, dc.Index, dc.Total)
		}
		docs = append(docs, dc.Items...)
	}
	if len(docs) != 3 {
		t.Fatalf("после сборки ожидалось 3 документа, получено %d", len(docs))
	}
	for i, d := range docs {
		if d.ID != rec.Documents[i].ID {
			t.Errorf("документ %d: ожидался %s, получен %s", i, rec.Documents[i].ID, d.ID)
		}
	}
}

func TestPreparer_DoesNotMutateOriginal(t *testing.T) {
	prep := NewPreparer(testLogger())

	rec := bigVisit(3, 0)
	originalPhotos := len(rec.Photos)

	if _, err := prep.Prepare(rec); err != nil {
		t.Fatalf("подготовка записи: %v", err)
	}

	if len(rec.Photos) != originalPhotos {
		t.Error("подготовка не должна изменять исходную запись")
	}
}

func TestChunkCount(t *testing.T) {
	cases := []struct{ n, want int }{
		{0, 0}, {1, 1}, {2, 1}, {3, 2}, {7, 4}, {8, 4},
	}
	for _, c := range cases {
		if got := chunkCount(c.n); got != c.want {
			t.Errorf("chunkCount(%d) = %d, ожидалось %d", c.n, got, c.want)
		}
	}
}
