package parser

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"resume-matcher/internal/logger"
	"resume-matcher/internal/types"
)

// FileTextExtractor 从磁盘文件中提取文本
type FileTextExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (string, error)
}

// DocumentExtractor 按文档类型分发到具体的提取器。
// PDF 先走主解析器，失败后回退到宽松解析器。
type DocumentExtractor struct {
	pdfPrimary  FileTextExtractor
	pdfFallback FileTextExtractor
	docx        FileTextExtractor
	logger      zerolog.Logger
}

// NewDocumentExtractor 组装文档提取器
func NewDocumentExtractor(pdfPrimary, pdfFallback, docx FileTextExtractor) *DocumentExtractor {
	return &DocumentExtractor{
		pdfPrimary:  pdfPrimary,
		pdfFallback: pdfFallback,
		docx:        docx,
		logger:      logger.Logger.With().Str("component", "document_extractor").Logger(),
	}
}

// NewDefaultDocumentExtractor eino 主解析 + ledongthuc 回退 + docconv
func NewDefaultDocumentExtractor(ctx context.Context, pdfOptions ...EinoPDFOption) (*DocumentExtractor, error) {
	primary, err := NewEinoPDFTextExtractor(ctx, pdfOptions...)
	if err != nil {
		return nil, err
	}
	return NewDocumentExtractor(primary, NewPlainPDFTextExtractor(), NewDocxTextExtractor()), nil
}

// KindFromPath 根据扩展名判断文档类型（不区分大小写）
func KindFromPath(path string) (types.DocumentKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return types.DocumentPDF, true
	case ".docx":
		return types.DocumentDOCX, true
	default:
		return "", false
	}
}

// Extract 根据扩展名分发
func (d *DocumentExtractor) Extract(ctx context.Context, path string) (string, error) {
	kind, ok := KindFromPath(path)
	if !ok {
		return "", types.NewUnsupportedTypeError(path)
	}
	return d.ExtractText(ctx, path, kind)
}

// ExtractText 按声明的类型提取全文
func (d *DocumentExtractor) ExtractText(ctx context.Context, path string, kind types.DocumentKind) (string, error) {
	switch kind {
	case types.DocumentPDF:
		return d.extractPDF(ctx, path)
	case types.DocumentDOCX:
		text, err := d.docx.ExtractFromFile(ctx, path)
		if err != nil {
			d.logger.Warn().Err(err).Str("path", path).Msg("DOCX提取失败")
			return "", types.NewDOCXExtractionError(path, err)
		}
		return text, nil
	default:
		return "", types.NewUnsupportedTypeError(path)
	}
}

func (d *DocumentExtractor) extractPDF(ctx context.Context, path string) (string, error) {
	text, err := d.pdfPrimary.ExtractFromFile(ctx, path)
	if err == nil {
		return text, nil
	}
	d.logger.Info().Err(err).Str("path", path).Msg("主PDF解析器失败，尝试回退解析器")

	if d.pdfFallback == nil {
		return "", types.NewPDFExtractionError(path, err)
	}
	text, fallbackErr := d.pdfFallback.ExtractFromFile(ctx, path)
	if fallbackErr != nil {
		d.logger.Warn().Err(fallbackErr).Str("path", path).Msg("回退PDF解析器同样失败")
		return "", types.NewPDFExtractionError(path, fallbackErr)
	}
	return text, nil
}
