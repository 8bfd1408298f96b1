package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, dims int, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func fixedDimHandler(t *testing.T, dims int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req voyageEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, dims, req.OutputDimension)
		assert.True(t, req.Truncation)

		resp := voyageEmbedResponse{}
		for range req.Input {
			vec := make([]float64, dims)
			for i := range vec {
				vec[i] = 0.1
			}
			resp.Data = append(resp.Data, struct {
				Embedding []float64 `json:"embedding"`
			}{Embedding: vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestVoyageEmbedder_EmbedBatches(t *testing.T) {
	dims := ModelDimensions[DefaultModel]
	srv := newTestServer(t, dims, fixedDimHandler(t, dims))

	e, err := NewVoyageEmbedder(context.Background(), VoyageConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		BatchSize:       2,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	texts := []string{"a", "b", "c", "d", "e"}
	vecs, err := e.Embed(context.Background(), texts, KindDocument)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for _, v := range vecs {
		assert.Len(t, v, dims)
	}
	assert.Equal(t, dims, e.Dimensions())
}

func TestVoyageEmbedder_DimensionMismatch(t *testing.T) {
	srv := newTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		resp := voyageEmbedResponse{Data: []struct {
			Embedding []float64 `json:"embedding"`
		}{{Embedding: []float64{0.1, 0.2}}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	e, err := NewVoyageEmbedder(context.Background(), VoyageConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		SkipHealthCheck: true,
		MaxRetries:      1,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), []string{"x"}, KindQuery)
	assert.Error(t, err)
}

func TestVoyageEmbedder_MissingAPIKey(t *testing.T) {
	_, err := NewVoyageEmbedder(context.Background(), VoyageConfig{SkipHealthCheck: true})
	assert.Error(t, err)
}

func TestVoyageEmbedder_UnknownModel(t *testing.T) {
	_, err := NewVoyageEmbedder(context.Background(), VoyageConfig{
		APIKey:          "key",
		Model:           "not-a-real-model",
		SkipHealthCheck: true,
	})
	assert.Error(t, err)
}

func TestVoyageEmbedder_ServerError_Retries(t *testing.T) {
	attempts := 0
	dims := ModelDimensions[DefaultModel]
	srv := newTestServer(t, dims, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fixedDimHandler(t, dims)(w, r)
	})

	e, err := NewVoyageEmbedder(context.Background(), VoyageConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		SkipHealthCheck: true,
		MaxRetries:      3,
	})
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.Embed(context.Background(), []string{"retry me"}, KindQuery)
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.GreaterOrEqual(t, attempts, 2)
}
