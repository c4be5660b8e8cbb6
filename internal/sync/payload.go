package sync

import (
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
)

const (
	// maxPhotoBytes - порог размера закодированного фото, выше которого
	// запускается повторное сжатие
	maxPhotoBytes = 500 * 1024

	// maxRecordMB - жесткий лимит размера записи для отправки одним запросом
	maxRecordMB = 10.0

	// chunkItemCap - максимум элементов (фото/документов) в одном чанке
	chunkItemCap = 2
)

// Chunk - транзитный конверт для передачи части записи, когда запись целиком
// превышает лимит. Чанки никогда не сохраняются локально. Варианты
// закрытые: BaseChunk, PhotoChunk, DocumentChunk.
type Chunk interface {
	chunkVariant()
}

// BaseChunk несет все скалярные поля записи с пустыми списками фото и
// документов. Всегда отправляется первым.
type BaseChunk struct {
	Record *model.VisitRecord
}

// PhotoChunk несет подпоследовательность фотографий записи
type PhotoChunk struct {
	ParentID string
	Index    int
	Total    int
	Items    []model.Photo
}

// DocumentChunk несет подпоследовательность документов записи
type DocumentChunk struct {
	ParentID string
	Index    int
	Total    int
	Items    []model.Document
}

func (BaseChunk) chunkVariant()     {}
func (PhotoChunk) chunkVariant()    {}
func (DocumentChunk) chunkVariant() {}

// Payload - результат подготовки записи к отправке: либо оптимизированная
// запись целиком, либо упорядоченная последовательность чанков.
type Payload struct {
	Record *model.VisitRecord
	Chunks []Chunk
}

// Chunked сообщает, была ли запись разбита на чанки
func (p *Payload) Chunked() bool {
	return len(p.Chunks) > 0
}

// Preparer - конвейер подготовки записи: сжатие фотографий и, при
// необходимости, разбиение на чанки.
type Preparer struct {
	log *slog.Logger
}

// NewPreparer создает конвейер подготовки
func NewPreparer(log *slog.Logger) *Preparer {
	return &Preparer{log: log}
}

// Prepare готовит одну запись к передаче. Исходная запись не изменяется.
func (p *Preparer) Prepare(rec *model.VisitRecord) (*Payload, error) {
	optimized := rec.Clone()

	// Проход сжатия: best-effort, ошибка по одному фото не прерывает конвейер
	for i, photo := range optimized.Photos {
		optimized.Photos[i] = p.compressPhoto(photo)
	}

	data, err := json.Marshal(optimized)
	if err != nil {
		return nil, fmt.Errorf("serialize visit %s: %w", rec.ID, err)
	}

	sizeMB := float64(len(data)) / (1024 * 1024)
	if sizeMB <= maxRecordMB {
		return &Payload{Record: optimized}, nil
	}

	p.log.Info("visit exceeds size cap, chunking",
		"record_id", rec.ID,
		"size_mb", fmt.Sprintf("%.1f", sizeMB),
	)

	return &Payload{Chunks: p.chunk(optimized)}, nil
}

// chunk разбивает запись на чанки. Порядок эмиссии фиксирован и совпадает с
// порядком передачи: базовый чанк, затем все фото-чанки в исходном порядке,
// затем все документ-чанки в исходном порядке.
func (p *Preparer) chunk(rec *model.VisitRecord) []Chunk {
	photoTotal := chunkCount(len(rec.Photos))
	docTotal := chunkCount(len(rec.Documents))

	chunks := make([]Chunk, 0, 1+photoTotal+docTotal)

	base := rec.Clone()
	base.Photos = []model.Photo{}
	base.Documents = []model.Document{}
	chunks = append(chunks, BaseChunk{Record: base})

	for i := 0; i < photoTotal; i++ {
		lo, hi := i*chunkItemCap, (i+1)*chunkItemCap
		if hi > len(rec.Photos) {
			hi = len(rec.Photos)
		}
		chunks = append(chunks, PhotoChunk{
			ParentID: rec.ID,
			Index:    i,
			Total:    photoTotal,
			Items:    rec.Photos[lo:hi],
		})
	}

	for i := 0; i < docTotal; i++ {
		lo, hi := i*chunkItemCap, (i+1)*chunkItemCap
		if hi > len(rec.Documents) {
			hi = len(rec.Documents)
		}
		chunks = append(chunks, DocumentChunk{
			ParentID: rec.ID,
			Index:    i,
			Total:    docTotal,
			Items:    rec.Documents[lo:hi],
		})
	}

	return chunks
}

// chunkCount = ceil(n / chunkItemCap)
func chunkCount(n int) int {
	return (n + chunkItemCap - 1) / chunkItemCap
}
