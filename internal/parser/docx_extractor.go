package parser

import (
	"context"
	"fmt"
	"os"

	"code.sajari.com/docconv"
)

// DocxTextExtractor 使用 docconv 将 DOCX 转为纯文本
type DocxTextExtractor struct{}

func NewDocxTextExtractor() *DocxTextExtractor {
	return &DocxTextExtractor{}
}

// ExtractFromFile 提取 DOCX 正文文本。
// 缺少 [Content_Types].xml 的压缩包会让 docconv panic，这里转成普通错误。
func (d *DocxTextExtractor) ExtractFromFile(_ context.Context, filePath string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("docconv panic %s: %v", filePath, r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("打开DOCX文件失败 %s: %w", filePath, err)
	}
	defer f.Close()

	text, _, err = docconv.ConvertDocx(f)
	if err != nil {
		return "", fmt.Errorf("docconv 转换失败 %s: %w", filePath, err)
	}
	return text, nil
}
