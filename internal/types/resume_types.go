package types

import (
	"encoding/json"

	"github.com/gofrs/uuid/v5"
)

// DefaultCandidateName 无法识别姓名时使用的占位值
const DefaultCandidateName = "Unknown"

// DocumentKind 支持的文档类型
type DocumentKind string

const (
	// DocumentPDF PDF 文档
	DocumentPDF DocumentKind = "pdf"
	// DocumentDOCX Word 文档
	DocumentDOCX DocumentKind = "docx"
)

// ResumeFields 从一份简历文本中切分出的字段
type ResumeFields struct {
	Name       string `json:"name"`
	Skills     string `json:"skills"`
	Education  string `json:"education"`
	Experience string `json:"experience"`
}

// JDFields 岗位描述解析结果
type JDFields struct {
	JobTitle       string `json:"job_title"`
	RequiredSkills string `json:"required_skills"`
}

// Embedding 文本向量，创建后不再修改
type Embedding []float64

// MatchPriority 匹配优先级
type MatchPriority string

const (
	PriorityHigh   MatchPriority = "High"
	PriorityMedium MatchPriority = "Medium"
	PriorityLow    MatchPriority = "Low"
)

// ScoreResult 单份简历的评分结果，分数保留两位小数
type ScoreResult struct {
	CandidateName   string        `json:"candidate_name"`
	SuggestedRole   string        `json:"suggested_role"`
	TotalScore      float64       `json:"total_score"`
	ATSScore        float64       `json:"ats_score"`
	SkillMatchScore float64       `json:"skill_match_score"`
	EducationScore  float64       `json:"education_score"`
	MatchPriority   MatchPriority `json:"match_priority"`
	Skills          string        `json:"skills"`
	Education       string        `json:"education"`
	Experience      string        `json:"experience"`
	Path            string        `json:"path"`
}

// UnmarshalJSON 同时接受 API 写入的下划线字段和看板写入的 "Candidate Name" 等字段
func (r *ScoreResult) UnmarshalJSON(data []byte) error {
	type plain ScoreResult
	var aux struct {
		plain
		DashCandidateName   *string        `json:"Candidate Name"`
		DashSuggestedRole   *string        `json:"Suggested Role"`
		DashTotalScore      *float64       `json:"Total Score"`
		DashATSScore        *float64       `json:"ATS Score"`
		DashSkillMatchScore *float64       `json:"Skill Match Score"`
		DashEducationScore  *float64       `json:"Education Score"`
		DashMatchPriority   *MatchPriority `json:"Match Priority"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = ScoreResult(aux.plain)
	if aux.DashCandidateName != nil {
		r.CandidateName = *aux.DashCandidateName
	}
	if aux.DashSuggestedRole != nil {
		r.SuggestedRole = *aux.DashSuggestedRole
	}
	if aux.DashTotalScore != nil {
		r.TotalScore = *aux.DashTotalScore
	}
	if aux.DashATSScore != nil {
		r.ATSScore = *aux.DashATSScore
	}
	if aux.DashSkillMatchScore != nil {
		r.SkillMatchScore = *aux.DashSkillMatchScore
	}
	if aux.DashEducationScore != nil {
		r.EducationScore = *aux.DashEducationScore
	}
	if aux.DashMatchPriority != nil {
		r.MatchPriority = *aux.DashMatchPriority
	}
	return nil
}

// HistoryTimeLayout 历史记录时间戳格式（ISO 8601，精确到秒）
const HistoryTimeLayout = "2006-01-02T15:04:05"

// HistoryRecord 一次筛选运行的记录。
// API 路径写入 JDTitle，命令行路径写入 JDText。没有 run_id 的旧记录原样写回。
type HistoryRecord struct {
	RunID     uuid.UUID     `json:"run_id,omitzero"`
	Timestamp string        `json:"timestamp"`
	JDTitle   string        `json:"jd_title,omitempty"`
	JDText    string        `json:"jd_text,omitempty"`
	Results   []ScoreResult `json:"results"`
}

// JDInfo 岗位描述处理结果，包含技能文本的向量
type JDInfo struct {
	JobTitle       string    `json:"job_title"`
	RequiredSkills string    `json:"required_skills"`
	Embedding      Embedding `json:"embedding"`
	Text           string    `json:"-"`
}

// ScreeningCompletedEvent 筛选完成后发布的通知消息
type ScreeningCompletedEvent struct {
	RunID          string  `json:"run_id"`
	Timestamp      string  `json:"timestamp"`
	JobTitle       string  `json:"job_title"`
	CandidateCount int     `json:"candidate_count"`
	TopCandidate   string  `json:"top_candidate,omitempty"`
	TopScore       float64 `json:"top_score,omitempty"`
}
