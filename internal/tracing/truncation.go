package tracing

import (
	"path/filepath"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"resume-matcher/internal/types"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500

	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100

	// MaxPathLength 文件路径最大长度
	MaxPathLength = 120

	// MaxHeaderLength HTTP头最大长度
	MaxHeaderLength = 100

	// MaxExcerptLength 简历摘录最大长度
	MaxExcerptLength = 150
)

// 属性名包含这些关键字时，值按个人信息掩码
var sensitiveKeys = []string{
	"candidate", "name", "姓名",
	"email", "邮箱",
	"phone", "mobile", "手机", "电话",
	"address", "地址",
	"api_key", "password", "secret", "token",
}

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+(\.[\w-]+)+`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// SafeAttributeValue 敏感属性返回掩码值，其余按 maxLength 截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, key := range sensitiveKeys {
		if strings.Contains(lowerName, key) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾字符，中间替换为 *
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	// "张三" -> "张*"，"王小明" -> "王*明"
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// "13812345678" -> "13*******78"
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，保留前后两段，中间用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 截断SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey 截断Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafePath 路径过长时优先保留文件名，截掉中间的目录
func SafePath(path string) string {
	runes := []rune(path)
	if len(runes) <= MaxPathLength {
		return path
	}
	base := []rune(filepath.Base(path))
	const sep = ".../"
	keep := MaxPathLength - len(base) - len(sep)
	if keep < 1 {
		return TruncateString(string(base), MaxPathLength)
	}
	return string(runes[:keep]) + sep + string(base)
}

// ResumeExcerpt 简历开头的一段文本，邮箱和电话已掩码，空白折叠为单个空格
func ResumeExcerpt(text string) string {
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	text = emailPattern.ReplaceAllStringFunc(text, MaskPII)
	text = phonePattern.ReplaceAllStringFunc(text, MaskPII)
	return TruncateString(text, MaxExcerptLength)
}

// CandidateAttributes 简历解析结果的追踪属性：姓名掩码，字段只记录长度
func CandidateAttributes(fields types.ResumeFields) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("candidate.name", SafeAttributeValue("candidate.name", fields.Name, DefaultMaxLength)),
		attribute.Bool("candidate.name_found", fields.Name != types.DefaultCandidateName),
		attribute.Int("resume.skills.length", len([]rune(fields.Skills))),
		attribute.Int("resume.education.length", len([]rune(fields.Education))),
		attribute.Int("resume.experience.length", len([]rune(fields.Experience))),
	}
}
