package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ScreeningRun 一次筛选运行，镜像 job_history.json 中的一条记录
type ScreeningRun struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	RunID       string         `gorm:"type:char(36);uniqueIndex:idx_screening_runs_run_id"`
	RunAt       string         `gorm:"type:varchar(32);index:idx_screening_runs_run_at"` // ISO 8601 秒级
	JDTitle     string         `gorm:"type:varchar(255)"`
	JDText      string         `gorm:"type:text"`
	ResultCount int            `gorm:"not null;default:0"`
	TopScore    float64        `gorm:"type:decimal(5,2)"`
	ResultsJSON datatypes.JSON `gorm:"type:json"`
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ScreeningRun) TableName() string {
	return "screening_runs"
}

// ScreeningResult 单个候选人的评分，便于按分数检索
type ScreeningResult struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	RunID           string    `gorm:"type:char(36);index:idx_screening_results_run_id"`
	CandidateName   string    `gorm:"type:varchar(255)"`
	SuggestedRole   string    `gorm:"type:varchar(255)"`
	TotalScore      float64   `gorm:"type:decimal(5,2);index:idx_screening_results_total_score"`
	ATSScore        float64   `gorm:"type:decimal(5,2)"`
	SkillMatchScore float64   `gorm:"type:decimal(5,2)"`
	EducationScore  float64   `gorm:"type:decimal(5,2)"`
	MatchPriority   string    `gorm:"type:varchar(10)"`
	SourcePath      string    `gorm:"type:varchar(1024)"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ScreeningResult) TableName() string {
	return "screening_results"
}

// DecodeJSON 将 datatypes.JSON 解码到 dest
func DecodeJSON(data datatypes.JSON, dest any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("解析JSON字段失败: %w", err)
	}
	return nil
}
