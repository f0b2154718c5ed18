package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-matcher/internal/config"
	"resume-matcher/internal/ratelimit"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// newEmbeddingServer 返回一个 OpenAI 兼容的 /embeddings 桩，
// 向量为 [len(text), index]，数据按逆序返回以检验 index 处理
func newEmbeddingServer(t *testing.T, last *embeddingRequest, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*last = req

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), float32(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
}

func TestOpenAIEmbedderEmbedStrings(t *testing.T) {
	var last embeddingRequest
	var calls int32
	srv := newEmbeddingServer(t, &last, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1/",
		Model:      "all-MiniLM-L6-v2",
		Dimensions: 2,
	}, WithRateLimiter(ratelimit.NewTokenBucket(600, 10)))
	require.NoError(t, err)
	assert.Equal(t, 2, e.GetDimensions())
	assert.Equal(t, "all-MiniLM-L6-v2", e.ModelName())

	vectors, err := e.EmbedStrings(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float64{1, 0}, vectors[0])
	assert.Equal(t, []float64{3, 1}, vectors[1])
	assert.Equal(t, []float64{2, 2}, vectors[2])

	assert.Equal(t, "all-MiniLM-L6-v2", last.Model)
	assert.Zero(t, last.Dimensions, "默认不发送 dimensions")

	// 调用级别覆盖模型
	_, err = e.EmbedStrings(context.Background(), []string{"x"}, embedding.WithModel("other-model"))
	require.NoError(t, err)
	assert.Equal(t, "other-model", last.Model)
}

func TestOpenAIEmbedderSendsDimensionsWhenAsked(t *testing.T) {
	var last embeddingRequest
	var calls int32
	srv := newEmbeddingServer(t, &last, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "text-embedding-3-small", Dimensions: 256,
	}, WithRequestDimensions())
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, 256, last.Dimensions)
}

func TestOpenAIEmbedderEmptyInputSkipsRequest(t *testing.T) {
	var last embeddingRequest
	var calls int32
	srv := newEmbeddingServer(t, &last, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "m"})
	require.NoError(t, err)

	vectors, err := e.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"})
	require.NoError(t, err)

	_, err = e.EmbedStrings(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding 请求失败")
}

func TestNewOpenAIEmbedderValidatesConfig(t *testing.T) {
	_, err := NewOpenAIEmbedder(config.EmbeddingConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAIEmbedder(config.EmbeddingConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestTruncateEmbedding(t *testing.T) {
	assert.Equal(t, "[1 2 3]", truncateEmbedding([]float64{1, 2, 3}))
	assert.Equal(t, "[1.0000, 2.0000, 3.0000, ..., 6.0000, 7.0000, 8.0000]",
		truncateEmbedding([]float64{1, 2, 3, 4, 5, 6, 7, 8}))
}
