package parser

import (
	"regexp"
	"strings"
	"unicode"

	"resume-matcher/internal/types"
)

// LanguageModel 句子切分与人名识别，进程内只加载一次
type LanguageModel interface {
	// Sentences 按原文顺序返回句子
	Sentences(text string) []string
	// PersonNames 按出现顺序返回识别出的人名实体
	PersonNames(text string) []string
}

var (
	jdSkillLinePattern = regexp.MustCompile(`(?i)requirement|qualification|skill`)
	digitPattern       = regexp.MustCompile(`\d`)
)

// 岗位描述中的列表前缀。"•" 被错误解码后显示为 "â€¢"，'â' 和 '€' 都可能出现在行首
var bulletPrefixes = []string{"-", "*", "•", "â", "€"}

// 简历字段关键词
var (
	skillKeywords      = []string{"skill"}
	educationKeywords  = []string{"education", "bachelor", "degree"}
	experienceKeywords = []string{"experience", "worked at", "years"}
)

const nameHeaderLines = 5

// FieldParser 将原始文本切分为简历字段或岗位描述字段
type FieldParser struct {
	model LanguageModel
}

// NewFieldParser model 需在进程启动时创建并共享
func NewFieldParser(model LanguageModel) *FieldParser {
	return &FieldParser{model: model}
}

// ParseResume 按句子关键词切分简历。一个句子可同时归入多个字段。
func (p *FieldParser) ParseResume(text string) types.ResumeFields {
	var skills, education, experience []string
	for _, sentence := range p.model.Sentences(text) {
		lower := strings.ToLower(sentence)
		if containsAny(lower, skillKeywords) {
			skills = append(skills, sentence)
		}
		if containsAny(lower, educationKeywords) {
			education = append(education, sentence)
		}
		if containsAny(lower, experienceKeywords) {
			experience = append(experience, sentence)
		}
	}

	return types.ResumeFields{
		Name:       p.ExtractName(text),
		Skills:     strings.Join(skills, " "),
		Education:  strings.Join(education, " "),
		Experience: strings.Join(experience, " "),
	}
}

// ExtractName 取前 5 个非空行做人名识别；识别不到时，
// 若首行不超过 4 个词且不含数字则用首行，否则返回 Unknown
func (p *FieldParser) ExtractName(text string) string {
	lines := nonEmptyLines(text)
	header := lines
	if len(header) > nameHeaderLines {
		header = header[:nameHeaderLines]
	}
	if names := p.model.PersonNames(strings.Join(header, "\n")); len(names) > 0 {
		return names[0]
	}

	if len(lines) > 0 {
		first := lines[0]
		if len(strings.Fields(first)) <= 4 && !digitPattern.MatchString(first) {
			return first
		}
	}
	return types.DefaultCandidateName
}

// ParseJD 岗位描述按行解析：首行为标题，关键词行或列表行为技能要求
func (p *FieldParser) ParseJD(text string) types.JDFields {
	return ParseJD(text)
}

// ParseJD 不依赖语言模型，可直接调用
func ParseJD(text string) types.JDFields {
	lines := nonEmptyLines(text)
	title := types.DefaultCandidateName
	if len(lines) > 0 {
		title = lines[0]
	}

	var required []string
	for _, line := range lines {
		if jdSkillLinePattern.MatchString(line) || hasBulletPrefix(line) {
			required = append(required, line)
		}
	}

	return types.JDFields{
		JobTitle:       title,
		RequiredSkills: strings.Join(required, " "),
	}
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimFunc(line, unicode.IsSpace); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func hasBulletPrefix(line string) bool {
	for _, prefix := range bulletPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
