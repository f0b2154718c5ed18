package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-matcher/internal/logger"
)

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本，作为 PDF 的主解析器
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	logger  zerolog.Logger
	timeout time.Duration
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(l zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = l
	}
}

// WithEinoTimeout 单个文档的解析超时
func WithEinoTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEinoPDFTextExtractor 初始化 Eino PDF 文本提取器。
// 不按页面分割，获取整个文档的连续文本。
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Eino PDF 解析器失败: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser:  p,
		logger:  logger.Logger.With().Str("component", "eino_pdf").Logger(),
		timeout: 30 * time.Second,
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// Name 提取器名称，用于日志
func (e *EinoPDFTextExtractor) Name() string { return "eino" }

// ExtractFromFile 从 PDF 文件提取完整文本
func (e *EinoPDFTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("打开PDF文件失败 %s: %w", filePath, err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil {
		e.logger.Debug().Str("path", filePath).Float64("size_mb", float64(info.Size())/1024/1024).Msg("开始处理PDF文件")
	}
	return e.ExtractTextFromReader(ctx, file, filePath)
}

// ExtractTextFromReader 从 io.Reader 中提取文本。
// 底层解析不检查 ctx，解析放在独立协程中，超时后直接返回，协程自行结束。
func (e *EinoPDFTextExtractor) ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string) (string, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan parseResult, 1)
	go func() {
		docs, err := e.parse(ctx, reader, uri, startTime)
		done <- parseResult{docs: docs, err: err}
	}()

	var res parseResult
	select {
	case res = <-done:
	case <-ctx.Done():
		e.logger.Warn().Str("uri", uri).Dur("timeout", e.timeout).Msg("Eino PDF解析超时")
		return "", fmt.Errorf("eino PDF parser timed out for URI %s: %w", uri, ctx.Err())
	}

	duration := time.Since(startTime)
	if res.err != nil {
		e.logger.Debug().Err(res.err).Str("uri", uri).Dur("duration", duration).Msg("Eino PDF解析失败")
		return "", fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, res.err)
	}
	if len(res.docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	// 正常情况下只有一个文档，多个时按顺序拼接
	parts := make([]string, 0, len(res.docs))
	for _, doc := range res.docs {
		parts = append(parts, doc.Content)
	}
	fullContent := strings.Join(parts, "\n")

	e.logger.Debug().Str("uri", uri).Int("chars", len(fullContent)).Dur("duration", duration).Msg("PDF提取完成")
	return fullContent, nil
}

type parseResult struct {
	docs []*schema.Document
	err  error
}

// parse 调用 eino 解析器，底层库遇到损坏的对象定义会 panic
func (e *EinoPDFTextExtractor) parse(ctx context.Context, reader io.Reader, uri string, startTime time.Time) (docs []*schema.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	return e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{
			"source_file_path": uri,
			"extraction_time":  startTime.Format(time.RFC3339),
		}),
	)
}
