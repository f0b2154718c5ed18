package processor

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"

	"resume-matcher/internal/types"
)

//
// 文档解析相关接口
//

// DocumentExtractor 从磁盘文档提取全文
type DocumentExtractor interface {
	// Extract 根据扩展名分发，不支持的类型返回 UnsupportedTypeError
	Extract(ctx context.Context, path string) (string, error)

	// ExtractText 按声明的类型提取
	ExtractText(ctx context.Context, path string, kind types.DocumentKind) (string, error)
}

// FieldParser 将文本切分为简历/岗位字段
type FieldParser interface {
	ParseResume(text string) types.ResumeFields
	ParseJD(text string) types.JDFields
}

//
// 向量嵌入相关接口
//

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	// EmbedStrings 将文本转换为向量表示
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)

	// GetDimensions 返回嵌入向量的维度
	GetDimensions() int
}

// VectorCache 文本向量缓存，key 为文本的 MD5
type VectorCache interface {
	GetTextVector(ctx context.Context, textHash string) ([]float64, string, error)
	SetTextVector(ctx context.Context, textHash string, vector []float64, modelVersion string) error
}
