package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/model"
	"fieldvisit/internal/sync"
)

const (
	recordsPath = "/api/sync/records"
	changesPath = "/api/sync/changes"
	healthPath  = "/health"
)

// Client - HTTP-транспорт до сервера синхронизации
type Client struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string
}

func New(baseURL string, log *slog.Logger) *Client {
	client := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &Client{
		client:    client,
		log:       log,
		baseURL:   baseURL,
		userAgent: "FieldVisit-Client/1.0",
	}
}

// chunkEnvelope - проводной формат фото- и документ-чанков. Базовый чанк и
// целая запись уходят как обычный JSON записи; сервер различает их по
// наличию поля chunk_type.
type chunkEnvelope struct {
	ParentID    string          `json:"parent_id"`
	ChunkType   string          `json:"chunk_type"`
	ChunkIndex  int             `json:"chunk_index"`
	TotalChunks int             `json:"total_chunks"`
	Items       json.RawMessage `json:"items"`
}

// PushRecord отправляет запись целиком одним запросом
func (c *Client) PushRecord(ctx context.Context, rec *model.VisitRecord) error {
	resp, err := c.doRequest(ctx, http.MethodPost, recordsPath, rec)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, nil)
}

// PushChunk отправляет один чанк. Разбор вариантов исчерпывающий: новый
// вариант чанка не скомпилируется без проводного формата.
func (c *Client) PushChunk(ctx context.Context, chunk sync.Chunk) error {
	var body any

	switch ch := chunk.(type) {
	case sync.BaseChunk:
		body = ch.Record
	case sync.PhotoChunk:
		items, err := json.Marshal(ch.Items)
		if err != nil {
			return fmt.Errorf("marshal photo chunk: %w", err)
		}
		body = chunkEnvelope{
			ParentID:    ch.ParentID,
			ChunkType:   "photos",
			ChunkIndex:  ch.Index,
			TotalChunks: ch.Total,
			Items:       items,
		}
	case sync.DocumentChunk:
		items, err := json.Marshal(ch.Items)
		if err != nil {
			return fmt.Errorf("marshal document chunk: %w", err)
		}
		body = chunkEnvelope{
			ParentID:    ch.ParentID,
			ChunkType:   "documents",
			ChunkIndex:  ch.Index,
			TotalChunks: ch.Total,
			Items:       items,
		}
	default:
		return fmt.Errorf("unknown chunk variant %T", chunk)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, recordsPath, body)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, nil)
}

// PullChanges возвращает записи, измененные на сервере после since
func (c *Client) PullChanges(ctx context.Context, since time.Time) ([]*model.VisitRecord, error) {
	path := changesPath
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339Nano))
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var changes struct {
		Records []*model.VisitRecord `json:"records"`
	}
	if err := c.parseResponse(resp, &changes); err != nil {
		return nil, err
	}

	return changes.Records, nil
}

// Ping проверяет доступность сервера
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) parseResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
