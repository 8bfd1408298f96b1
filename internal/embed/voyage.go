package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// VoyageConfig configures a VoyageEmbedder.
type VoyageConfig struct {
	APIKey  string
	Model   string
	BaseURL string // default "https://api.voyageai.com/v1/embeddings"

	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	PoolSize   int

	SkipHealthCheck bool
}

const (
	defaultVoyageBaseURL = "https://api.voyageai.com/v1/embeddings"
	defaultPoolSize      = 8
)

// voyageEmbedRequest is the wire request body (spec §6 "Wire to external
// services"): {input, model, input_type, truncation, output_dimension}.
type voyageEmbedRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type"`
	Truncation      bool     `json:"truncation"`
	OutputDimension int      `json:"output_dimension"`
}

type voyageEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// VoyageEmbedder implements Embedder against Voyage AI's embeddings
// endpoint. The HTTP client idiom (pooled transport, per-request context
// deadline rather than a static client timeout) is grounded in the
// teacher's OllamaEmbedder.
type VoyageEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    VoyageConfig
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*VoyageEmbedder)(nil)

// NewVoyageEmbedder creates a Voyage-backed embedder. It does not make any
// network calls unless cfg.SkipHealthCheck is false, in which case it
// issues a single-text probe embed to confirm reachability.
func NewVoyageEmbedder(ctx context.Context, cfg VoyageConfig) (*VoyageEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voyage: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultVoyageBaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}

	dims, ok := DimensionForModel(cfg.Model)
	if !ok {
		return nil, fmt.Errorf("voyage: unknown model %q", cfg.Model)
	}

	// Connections are pooled and kept short-lived; indexing runs are
	// bursty rather than long-lived daemons.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No client.Timeout: per-request context deadlines are used instead
	// so retry/backoff can apply progressively without being overridden.
	client := &http.Client{Transport: transport}

	e := &VoyageEmbedder{
		client:    client,
		transport: transport,
		config:    cfg,
		dims:      dims,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if _, err := e.Embed(checkCtx, []string{"connectivity probe"}, KindQuery); err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("voyage: health check failed: %w", err)
		}
	}

	return e, nil
}

// Embed batches texts in groups of config.BatchSize (spec: default ≤100)
// and issues one HTTP request per batch, retried with exponential backoff.
func (e *VoyageEmbedder) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("voyage: embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatchWithRetry(ctx, texts[start:end], kind)
		if err != nil {
			return nil, fmt.Errorf("voyage: embed batch [%d:%d]: %w", start, end, err)
		}
		copy(results[start:end], batch)
	}
	return results, nil
}

func (e *VoyageEmbedder) embedBatchWithRetry(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = e.config.MaxRetries

	var result [][]float32
	err := WithRetry(ctx, cfg, func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		embeddings, err := e.doEmbed(timeoutCtx, texts, kind)
		if err != nil {
			return err
		}
		result = embeddings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *VoyageEmbedder) doEmbed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	reqBody := voyageEmbedRequest{
		Input:           texts,
		Model:           e.config.Model,
		InputType:       string(kind),
		Truncation:      true,
		OutputDimension: e.dims,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result voyageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	out := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		if len(d.Embedding) != e.dims {
			return nil, fmt.Errorf("dimension_mismatch: expected %d, got %d", e.dims, len(d.Embedding))
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = normalizeVector(vec)
	}
	return out, nil
}

// Dimensions returns D.
func (e *VoyageEmbedder) Dimensions() int { return e.dims }

// ModelName returns the configured model.
func (e *VoyageEmbedder) ModelName() string { return e.config.Model }

// Available issues a cheap probe embed to check reachability.
func (e *VoyageEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()
	_, err := e.doEmbed(checkCtx, []string{"ping"}, KindQuery)
	return err == nil
}

// Close releases pooled connections.
func (e *VoyageEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.transport != nil {
		e.transport.CloseIdleConnections()
	}
	return nil
}
