// Package bootstrap 按配置组装服务端和命令行共用的组件
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"resume-matcher/internal/config"
	"resume-matcher/internal/parser"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/ratelimit"
	"resume-matcher/internal/storage"
)

// App 已组装的组件。Encoder 和 FieldParser 在进程内只创建一次。
type App struct {
	Config    *config.Config
	Storage   *storage.Storage
	Extractor *parser.DocumentExtractor
	Parser    *parser.FieldParser
	Encoder   *processor.Encoder
	Service   *processor.ScreeningService
}

// New 创建全部组件，失败时释放已创建的部分
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	st, err := storage.NewStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}

	app, err := build(ctx, cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, cfg *config.Config, st *storage.Storage, logger zerolog.Logger) (*App, error) {
	extractor, err := NewExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	model, err := parser.NewProseModel()
	if err != nil {
		return nil, err
	}
	fieldParser := parser.NewFieldParser(model)

	encoder, err := NewEncoder(cfg, st, logger)
	if err != nil {
		return nil, err
	}

	svcOpts := []processor.ServiceOption{
		processor.WithHistory(st.History),
		processor.WithServiceLogger(logger),
	}
	if st.Events != nil {
		svcOpts = append(svcOpts, processor.WithEventPublisher(st.Events))
	}
	service, err := processor.NewScreeningService(extractor, fieldParser, encoder, svcOpts...)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Storage:   st,
		Extractor: extractor,
		Parser:    fieldParser,
		Encoder:   encoder,
		Service:   service,
	}, nil
}

// NewExtractor 按配置创建文档提取器
func NewExtractor(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*parser.DocumentExtractor, error) {
	extractor, err := parser.NewDefaultDocumentExtractor(ctx,
		parser.WithEinoLogger(logger.With().Str("component", "eino_pdf").Logger()),
		parser.WithEinoTimeout(config.Seconds(cfg.Extraction.PDFTimeoutSeconds, 30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化文档提取器失败: %w", err)
	}
	return extractor, nil
}

// NewEncoder 按配置创建 embedder 与编码器。配置了 QPM 时启用限流，Redis 可用时启用向量缓存。
func NewEncoder(cfg *config.Config, st *storage.Storage, logger zerolog.Logger) (*processor.Encoder, error) {
	var embOpts []parser.OpenAIEmbedderOption
	if qpm := cfg.QPMFor(cfg.Embedding.Model); qpm > 0 {
		embOpts = append(embOpts, parser.WithRateLimiter(ratelimit.NewTokenBucket(qpm, 0)))
		logger.Info().Str("model", cfg.Embedding.Model).Int("qpm", qpm).Msg("启用向量模型限流")
	}
	if cfg.Embedding.SendDimensions {
		embOpts = append(embOpts, parser.WithRequestDimensions())
	}
	embedder, err := parser.NewOpenAIEmbedder(cfg.Embedding, embOpts...)
	if err != nil {
		return nil, fmt.Errorf("初始化Embedder失败: %w", err)
	}

	encOpts := []processor.EncoderOption{processor.WithEncoderLogger(logger)}
	if st != nil && st.Redis != nil {
		encOpts = append(encOpts, processor.WithVectorCache(st.Redis))
	}
	if cfg.Embedding.ZeroVectorForBlank {
		encOpts = append(encOpts, processor.WithZeroVectorForBlank())
	}
	return processor.NewEncoder(embedder, embedder.ModelName(), encOpts...)
}

// Close 释放存储连接并停止历史写入协程
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
	}
}
