package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"resume-matcher/internal/config"
	"resume-matcher/internal/logger"
	"resume-matcher/internal/ratelimit"
)

// OpenAIEmbedder 通过 OpenAI 兼容接口获取向量，实现 embedding.Embedder 接口
type OpenAIEmbedder struct {
	client         *openai.Client
	model          string
	dimensions     int
	sendDimensions bool
	limiter        *ratelimit.TokenBucket
	logger         zerolog.Logger
}

// OpenAIEmbedderOption 配置选项
type OpenAIEmbedderOption func(*OpenAIEmbedder)

// WithRateLimiter 每次请求前等待令牌
func WithRateLimiter(tb *ratelimit.TokenBucket) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.limiter = tb
	}
}

// WithRequestDimensions 在请求中携带 dimensions 参数（仅部分模型支持）
func WithRequestDimensions() OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.sendDimensions = true
	}
}

// NewOpenAIEmbedder 创建 embedder，baseURL 指向任意 OpenAI 兼容服务
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, opts ...OpenAIEmbedderOption) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url 不能为空")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model 不能为空")
	}

	e := &OpenAIEmbedder{
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		logger:     logger.Logger.With().Str("component", "embedder").Str("model", cfg.Model).Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: config.Seconds(cfg.TimeoutSeconds, 30*time.Second)}
	e.client = openai.NewClientWithConfig(clientCfg)

	return e, nil
}

// GetDimensions 配置的向量维度
func (e *OpenAIEmbedder) GetDimensions() int {
	return e.dimensions
}

// ModelName 当前模型名，作为缓存的版本标识
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// EmbedStrings 批量获取向量，返回顺序与输入一致
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	options := embedding.GetCommonOptions(&embedding.Options{}, opts...)
	effectiveModel := e.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("等待限流令牌失败: %w", err)
		}
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(effectiveModel),
	}
	if e.sendDimensions && e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.logger.Error().Err(err).Int("texts", len(texts)).Msg("embedding 请求失败")
		return nil, fmt.Errorf("embedding 请求失败: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding 返回数量不匹配: 期望 %d, 实际 %d", len(texts), len(resp.Data))
	}

	out := make([][]float64, len(texts))
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		vec := make([]float64, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float64(v)
		}
		out[idx] = vec
	}

	e.logger.Debug().
		Int("texts", len(texts)).
		Int("dim", firstEmbeddingDim(out)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("duration", time.Since(start)).
		Str("preview", truncateEmbedding(out[0])).
		Msg("embedding 完成")
	return out, nil
}

func firstEmbeddingDim(embeddings [][]float64) int {
	if len(embeddings) > 0 {
		return len(embeddings[0])
	}
	return 0
}

// truncateEmbedding 截断向量的字符串表示，仅用于日志
func truncateEmbedding(vector []float64) string {
	const maxLen = 6
	const showEachSide = 3

	if len(vector) <= maxLen {
		return fmt.Sprintf("%v", vector)
	}

	truncated := make([]string, 0, showEachSide*2+1)
	for i := 0; i < showEachSide; i++ {
		truncated = append(truncated, fmt.Sprintf("%.4f", vector[i]))
	}
	truncated = append(truncated, "...")
	for i := len(vector) - showEachSide; i < len(vector); i++ {
		truncated = append(truncated, fmt.Sprintf("%.4f", vector[i]))
	}
	return fmt.Sprintf("[%s]", strings.Join(truncated, ", "))
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)
