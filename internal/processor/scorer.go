package processor

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"resume-matcher/internal/types"
)

// 评分权重
const (
	atsSkillWeight   = 0.5
	atsEduWeight     = 0.5
	finalATSWeight   = 0.5
	finalSkillWeight = 0.3
	finalEduWeight   = 0.2

	highPriorityThreshold   = 0.75
	mediumPriorityThreshold = 0.5
)

// ScoreBreakdown 一份简历的各项相似度，未取整
type ScoreBreakdown struct {
	Total     float64
	ATS       float64
	Skill     float64
	Education float64
}

// Scorer 计算简历字段与岗位向量的相似度
type Scorer struct {
	encoder *Encoder
	logger  zerolog.Logger
}

// NewScorer 创建评分器
func NewScorer(encoder *Encoder) *Scorer {
	return &Scorer{
		encoder: encoder,
		logger:  encoder.logger.With().Str("component", "scorer").Logger(),
	}
}

// Score 一次批量编码 [全文, 技能, 教育]，分别与岗位向量求余弦相似度
func (s *Scorer) Score(ctx context.Context, fields types.ResumeFields, jdEmbedding types.Embedding) (ScoreBreakdown, error) {
	resumeText := fields.Skills + " " + fields.Education + " " + fields.Experience
	vectors, err := s.encoder.EncodeBatch(ctx, []string{resumeText, fields.Skills, fields.Education})
	if err != nil {
		return ScoreBreakdown{}, err
	}

	totalSim, err := Cosine(vectors[0], jdEmbedding)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	skill, err := Cosine(vectors[1], jdEmbedding)
	if err != nil {
		return ScoreBreakdown{}, err
	}
	edu, err := Cosine(vectors[2], jdEmbedding)
	if err != nil {
		return ScoreBreakdown{}, err
	}

	ats := atsSkillWeight*skill + atsEduWeight*edu
	final := finalATSWeight*ats + finalSkillWeight*skill + finalEduWeight*edu

	// 全文相似度不参与最终得分
	s.logger.Debug().
		Str("candidate", fields.Name).
		Float64("total_sim", totalSim).
		Float64("final", final).
		Msg("简历评分完成")

	return ScoreBreakdown{Total: final, ATS: ats, Skill: skill, Education: edu}, nil
}

// Cosine 余弦相似度。任一向量为零向量时返回 0，维度不同返回错误。
func Cosine(a, b types.Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("向量维度不匹配: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// PriorityFor 按未取整的总分分档
func PriorityFor(score float64) types.MatchPriority {
	switch {
	case score >= highPriorityThreshold:
		return types.PriorityHigh
	case score >= mediumPriorityThreshold:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}
