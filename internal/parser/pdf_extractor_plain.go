package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

// PlainPDFTextExtractor 基于 ledongthuc/pdf 的宽松解析器，
// 主解析器失败时作为回退使用
type PlainPDFTextExtractor struct{}

// NewPlainPDFTextExtractor 创建回退 PDF 提取器
func NewPlainPDFTextExtractor() *PlainPDFTextExtractor {
	return &PlainPDFTextExtractor{}
}

// Name 提取器名称，用于日志
func (p *PlainPDFTextExtractor) Name() string { return "plain" }

// ExtractFromFile 读取整个文件后提取纯文本
func (p *PlainPDFTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("读取PDF文件失败 %s: %w", filePath, err)
	}
	return p.ExtractTextFromBytes(ctx, data)
}

// ExtractTextFromBytes 从内存中的 PDF 数据提取纯文本
func (p *PlainPDFTextExtractor) ExtractTextFromBytes(_ context.Context, data []byte) (text string, err error) {
	// ledongthuc/pdf 遇到损坏的对象时会 panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	rs, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return "", err
	}
	return buf.String(), nil
}
