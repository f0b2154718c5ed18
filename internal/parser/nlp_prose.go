package parser

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

const personLabel = "PERSON"

// ProseModel 基于 prose 的句子切分与实体识别。
// 模型在构造时加载一次，之后所有文档复用同一份。
type ProseModel struct {
	model *prose.Model
}

// NewProseModel 加载 prose 内置的英文模型
func NewProseModel() (*ProseModel, error) {
	doc, err := prose.NewDocument("John Smith works here.")
	if err != nil {
		return nil, fmt.Errorf("加载 prose 模型失败: %w", err)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("prose 未返回模型实例")
	}
	return &ProseModel{model: doc.Model}, nil
}

// Sentences 只做分句，不做词性标注和实体识别
func (m *ProseModel) Sentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.UsingModel(m.model),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	sentences := doc.Sentences()
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// PersonNames 返回 PERSON 类实体
func (m *ProseModel) PersonNames(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	doc, err := prose.NewDocument(text,
		prose.UsingModel(m.model),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil
	}

	var names []string
	for _, ent := range doc.Entities() {
		if ent.Label == personLabel {
			names = append(names, ent.Text)
		}
	}
	return names
}
