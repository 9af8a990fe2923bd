package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainbridge-ai/chainbridge/config"
)

// PineconeStore implements Store against the Pinecone index data-plane API
type PineconeStore struct {
	config     config.PineconeConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPineconeStore creates a new Pinecone-backed vector store
func NewPineconeStore(cfg config.PineconeConfig, logger *zap.Logger) *PineconeStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &PineconeStore{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type upsertRequest struct {
	Vectors   []Entry `json:"vectors"`
	Namespace string  `json:"namespace"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

type deleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace"`
}

// Upsert inserts or replaces entries in the namespace
func (s *PineconeStore) Upsert(ctx context.Context, namespace string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var resp upsertResponse
	err := s.post(ctx, "upsert", "/vectors/upsert", upsertRequest{
		Vectors:   entries,
		Namespace: namespace,
	}, &resp)
	if err != nil {
		return err
	}

	s.logger.Debug("vectors upserted",
		zap.String("namespace", namespace),
		zap.Int("count", resp.UpsertedCount))
	return nil
}

// Query returns the topK nearest neighbors, ordered by similarity descending
func (s *PineconeStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var resp queryResponse
	err := s.post(ctx, "query", "/query", queryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Matches, nil
}

// DeleteAll removes every entry in the namespace
func (s *PineconeStore) DeleteAll(ctx context.Context, namespace string) error {
	return s.post(ctx, "delete", "/vectors/delete", deleteRequest{
		DeleteAll: true,
		Namespace: namespace,
	}, nil)
}

// post executes one data-plane call with retries on transport errors and 5xx
func (s *PineconeStore) post(ctx context.Context, op, path string, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return &StoreError{Op: op, Message: "failed to marshal request", Cause: err}
	}

	var httpResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.config.IndexHost+path, bytes.NewReader(reqBody))
		if err != nil {
			return &StoreError{Op: op, Message: "failed to create request", Cause: err}
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Api-Key", s.config.APIKey)

		httpResp, lastErr = s.httpClient.Do(httpReq)
		if lastErr == nil && httpResp.StatusCode < 500 {
			break
		}
		// Only drop the body of attempts that will be retried; the final
		// attempt's body feeds the error message below.
		if httpResp != nil && attempt < s.config.MaxRetries {
			httpResp.Body.Close()
			httpResp = nil
		}
	}

	if lastErr != nil {
		return &StoreError{Op: op, Message: "request failed", Cause: lastErr}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &StoreError{Op: op, StatusCode: httpResp.StatusCode, Message: "failed to read response", Cause: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		return &StoreError{
			Op:         op,
			StatusCode: httpResp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", httpResp.StatusCode, string(respBody)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &StoreError{Op: op, StatusCode: httpResp.StatusCode, Message: "failed to unmarshal response", Cause: err}
		}
	}

	return nil
}
