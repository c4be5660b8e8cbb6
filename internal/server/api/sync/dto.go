package sync

import (
	"encoding/json"
	"time"

	"fieldvisit/internal/model"
)

// PushInput - тело push-запроса. Клиент шлет либо запись целиком (или ее
// базовый чанк с пустыми списками), либо конверт чанка с полем chunk_type -
// формат различается по наличию этого поля, поэтому тело принимается сырым.
type PushInput struct {
	RawBody []byte `contentType:"application/json"`
}

// chunkProbe определяет вариант тела push-запроса
type chunkProbe struct {
	ChunkType string `json:"chunk_type"`
}

// chunkEnvelope - конверт фото- или документ-чанка
type chunkEnvelope struct {
	ParentID    string          `json:"parent_id"`
	ChunkType   string          `json:"chunk_type"`
	ChunkIndex  int             `json:"chunk_index"`
	TotalChunks int             `json:"total_chunks"`
	Items       json.RawMessage `json:"items"`
}

type PushResponse struct {
	Status string `json:"status" example:"Ok"`
}

type PushOutput struct {
	Body PushResponse
}

// ChangesInput параметры запроса изменений
type ChangesInput struct {
	Since string `query:"since" doc:"Вернуть записи, измененные после этого момента (RFC 3339)"`
}

type ChangesResponse struct {
	Status     string               `json:"status" example:"Ok"`
	Records    []*model.VisitRecord `json:"records"`
	ServerTime time.Time            `json:"server_time"`
}

type ChangesOutput struct {
	Body ChangesResponse
}
