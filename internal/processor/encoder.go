package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-matcher/internal/logger"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
	"resume-matcher/pkg/utils"
)

var tracer = otel.Tracer("resume-matcher/processor")

// Encoder 将文本编码为定长向量。
// 空白文本默认和其他文本一样交给模型；开启 zeroBlank 后返回模型维度的零向量。
type Encoder struct {
	embedder     TextEmbedder
	modelVersion string
	cache        VectorCache
	zeroBlank    bool
	logger       zerolog.Logger
}

// EncoderOption Encoder 的可选配置
type EncoderOption func(*Encoder)

// WithVectorCache 启用向量缓存，缓存读写失败只记日志
func WithVectorCache(cache VectorCache) EncoderOption {
	return func(e *Encoder) {
		e.cache = cache
	}
}

// WithZeroVectorForBlank 空白文本不调用模型，直接返回零向量。
// OpenAI 官方接口拒绝空字符串输入，对接这类服务时开启。
func WithZeroVectorForBlank() EncoderOption {
	return func(e *Encoder) {
		e.zeroBlank = true
	}
}

// WithEncoderLogger 设置日志
func WithEncoderLogger(l zerolog.Logger) EncoderOption {
	return func(e *Encoder) {
		e.logger = l
	}
}

// NewEncoder 创建编码器，modelVersion 用于校验缓存条目
func NewEncoder(embedder TextEmbedder, modelVersion string, opts ...EncoderOption) (*Encoder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("TextEmbedder 不能为空")
	}
	if modelVersion == "" {
		return nil, fmt.Errorf("modelVersion 不能为空")
	}
	e := &Encoder{
		embedder:     embedder,
		modelVersion: modelVersion,
		logger:       logger.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "encoder").Logger()
	return e, nil
}

// Dimensions 模型向量维度
func (e *Encoder) Dimensions() int {
	return e.embedder.GetDimensions()
}

// Encode 编码单条文本
func (e *Encoder) Encode(ctx context.Context, text string) (types.Embedding, error) {
	vectors, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeBatch 按输入顺序编码多条文本，未命中缓存的文本合并为一次模型调用
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([]types.Embedding, error) {
	ctx, span := tracer.Start(ctx, "Encoder.EncodeBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("texts.count", len(texts)), attribute.String("embedding.model", e.modelVersion))

	out := make([]types.Embedding, len(texts))
	hashes := make([]string, len(texts))
	var pending []int
	var blank []int

	for i, text := range texts {
		if e.zeroBlank && strings.TrimSpace(text) == "" {
			blank = append(blank, i)
			continue
		}
		hashes[i] = utils.CalculateMD5([]byte(text))
		if vec, ok := e.lookup(ctx, hashes[i]); ok {
			out[i] = vec
			continue
		}
		pending = append(pending, i)
	}
	span.SetAttributes(attribute.Int("cache.misses", len(pending)))

	if len(pending) > 0 {
		batch := make([]string, len(pending))
		for j, idx := range pending {
			batch[j] = texts[idx]
		}
		vectors, err := e.embedder.EmbedStrings(ctx, batch)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeExternal)
			return nil, fmt.Errorf("文本向量化失败: %w", err)
		}
		if len(vectors) != len(batch) {
			err := fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(batch), len(vectors))
			tracing.RecordError(span, err, tracing.ErrorTypeExternal)
			return nil, err
		}
		for j, idx := range pending {
			out[idx] = types.Embedding(vectors[j])
			e.store(ctx, hashes[idx], vectors[j])
		}
	}

	if len(blank) > 0 {
		dim := e.embedder.GetDimensions()
		for _, v := range out {
			if len(v) > 0 {
				dim = len(v)
				break
			}
		}
		for _, idx := range blank {
			out[idx] = make(types.Embedding, dim)
		}
	}
	return out, nil
}

func (e *Encoder) lookup(ctx context.Context, hash string) (types.Embedding, bool) {
	if e.cache == nil {
		return nil, false
	}
	vec, version, err := e.cache.GetTextVector(ctx, hash)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn().Err(err).Str("hash", hash).Msg("读取向量缓存失败，改为调用模型")
		}
		return nil, false
	}
	if version != e.modelVersion || len(vec) == 0 {
		e.logger.Debug().Str("cached_model", version).Str("model", e.modelVersion).Msg("缓存模型版本不匹配，重新生成")
		return nil, false
	}
	return types.Embedding(vec), true
}

func (e *Encoder) store(ctx context.Context, hash string, vec []float64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetTextVector(ctx, hash, vec, e.modelVersion); err != nil {
		e.logger.Warn().Err(err).Str("hash", hash).Msg("写入向量缓存失败")
	}
}
