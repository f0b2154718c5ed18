package processor

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-matcher/internal/parser"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
	"resume-matcher/pkg/utils"
)

// 定义公共错误类型，用于整个服务
var (
	ErrExtractorNotInit = errors.New("extractor is not initialized")
	ErrParserNotInit    = errors.New("field parser is not initialized")
	ErrEncoderNotInit   = errors.New("encoder is not initialized")
	ErrEmptyEmbedding   = errors.New("jd embedding is empty")
)

// CSVHeader 排名导出的列
var CSVHeader = []string{
	"Candidate Name",
	"Suggested Role",
	"Total Score",
	"ATS Score",
	"Skill Match Score",
	"Education Score",
	"Match Priority",
}

// ScreeningRequest 一次筛选运行的输入
type ScreeningRequest struct {
	JDEmbedding types.Embedding
	JobTitle    string
	ResumePaths []string

	// JDText 非空时历史记录保存岗位全文，否则保存 JobTitle
	JDText string

	// SkipUnsupported 跳过非 PDF/DOCX 文件而不是报错
	SkipUnsupported bool
}

// ScreeningService 岗位描述处理、简历评分与历史记录
type ScreeningService struct {
	extractor DocumentExtractor
	parser    FieldParser
	encoder   *Encoder
	scorer    *Scorer
	history   storage.HistoryStore
	events    storage.EventPublisher
	now       func() time.Time
	logger    zerolog.Logger
}

// ServiceOption ScreeningService 的可选配置
type ServiceOption func(*ScreeningService)

// WithHistory 每次筛选后追加历史记录
func WithHistory(history storage.HistoryStore) ServiceOption {
	return func(s *ScreeningService) {
		s.history = history
	}
}

// WithEventPublisher 每次筛选后发布完成事件，失败只记日志
func WithEventPublisher(events storage.EventPublisher) ServiceOption {
	return func(s *ScreeningService) {
		s.events = events
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ScreeningService) {
		s.now = now
	}
}

// WithServiceLogger 设置日志
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *ScreeningService) {
		s.logger = l
	}
}

// NewScreeningService 创建筛选服务
func NewScreeningService(extractor DocumentExtractor, fieldParser FieldParser, encoder *Encoder, opts ...ServiceOption) (*ScreeningService, error) {
	if extractor == nil {
		return nil, ErrExtractorNotInit
	}
	if fieldParser == nil {
		return nil, ErrParserNotInit
	}
	if encoder == nil {
		return nil, ErrEncoderNotInit
	}
	s := &ScreeningService{
		extractor: extractor,
		parser:    fieldParser,
		encoder:   encoder,
		scorer:    NewScorer(encoder),
		now:       time.Now,
		logger:    encoder.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "screening_service").Logger()
	return s, nil
}

// ProcessJD 提取 PDF 岗位描述，解析标题和技能要求，并对技能文本编码
func (s *ScreeningService) ProcessJD(ctx context.Context, path string) (types.JDInfo, error) {
	ctx, span := tracer.Start(ctx, "ScreeningService.ProcessJD")
	defer span.End()
	span.SetAttributes(attribute.String("jd.path", tracing.SafePath(path)))

	text, err := s.extractor.ExtractText(ctx, path, types.DocumentPDF)
	if err != nil {
		tracing.RecordError(span, err, tracing.ClassifyError(err))
		return types.JDInfo{}, err
	}
	return s.ProcessJDText(ctx, text)
}

// ProcessJDText 处理已提取的岗位描述文本
func (s *ScreeningService) ProcessJDText(ctx context.Context, text string) (types.JDInfo, error) {
	fields := s.parser.ParseJD(text)
	vec, err := s.encoder.Encode(ctx, fields.RequiredSkills)
	if err != nil {
		return types.JDInfo{}, err
	}
	s.logger.Info().
		Str("job_title", fields.JobTitle).
		Int("skills_len", len(fields.RequiredSkills)).
		Int("dim", len(vec)).
		Msg("岗位描述处理完成")
	return types.JDInfo{
		JobTitle:       fields.JobTitle,
		RequiredSkills: fields.RequiredSkills,
		Embedding:      vec,
		Text:           text,
	}, nil
}

// ScoreResumes 逐份评分。评分前先检查所有路径，任一失败则整批失败且不返回结果。
func (s *ScreeningService) ScoreResumes(ctx context.Context, jdEmbedding types.Embedding, jobTitle string, paths []string) ([]types.ScoreResult, error) {
	ctx, span := tracer.Start(ctx, "ScreeningService.ScoreResumes")
	defer span.End()
	span.SetAttributes(attribute.Int("resumes.count", len(paths)))

	if len(jdEmbedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	kinds := make([]types.DocumentKind, len(paths))
	for i, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, types.NewMissingFileError(p)
		}
		kind, ok := parser.KindFromPath(p)
		if !ok {
			return nil, types.NewUnsupportedTypeError(p)
		}
		kinds[i] = kind
	}

	results := make([]types.ScoreResult, 0, len(paths))
	for i, p := range paths {
		result, err := s.scoreOne(ctx, jdEmbedding, jobTitle, p, kinds[i])
		if err != nil {
			tracing.RecordErrorWithInfo(span, err, tracing.ClassifyError(err),
				attribute.String("resume.path", tracing.SafePath(p)))
			s.logger.Warn().Err(err).Str("path", p).Msg("简历评分失败，终止本批次")
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ScreeningService) scoreOne(ctx context.Context, jdEmbedding types.Embedding, jobTitle, path string, kind types.DocumentKind) (types.ScoreResult, error) {
	text, err := s.extractor.ExtractText(ctx, path, kind)
	if err != nil {
		return types.ScoreResult{}, err
	}
	fields := s.parser.ParseResume(text)
	attrs := append(tracing.CandidateAttributes(fields), attribute.String("resume.excerpt", tracing.ResumeExcerpt(text)))
	trace.SpanFromContext(ctx).AddEvent("resume.parsed", trace.WithAttributes(attrs...))
	scores, err := s.scorer.Score(ctx, fields, jdEmbedding)
	if err != nil {
		return types.ScoreResult{}, fmt.Errorf("评分 %s 失败: %w", path, err)
	}
	return types.ScoreResult{
		CandidateName:   fields.Name,
		SuggestedRole:   jobTitle,
		TotalScore:      utils.Round2(scores.Total),
		ATSScore:        utils.Round2(scores.ATS),
		SkillMatchScore: utils.Round2(scores.Skill),
		EducationScore:  utils.Round2(scores.Education),
		MatchPriority:   PriorityFor(scores.Total),
		Skills:          fields.Skills,
		Education:       fields.Education,
		Experience:      fields.Experience,
		Path:            path,
	}, nil
}

// RunScreening 评分、追加历史并发布完成事件，返回写入的历史记录
func (s *ScreeningService) RunScreening(ctx context.Context, req ScreeningRequest) (types.HistoryRecord, error) {
	paths := req.ResumePaths
	if req.SkipUnsupported {
		paths = make([]string, 0, len(req.ResumePaths))
		for _, p := range req.ResumePaths {
			if _, ok := parser.KindFromPath(p); ok {
				paths = append(paths, p)
				continue
			}
			s.logger.Debug().Str("path", p).Msg("跳过不支持的文件")
		}
	}

	results, err := s.ScoreResumes(ctx, req.JDEmbedding, req.JobTitle, paths)
	if err != nil {
		return types.HistoryRecord{}, err
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return types.HistoryRecord{}, fmt.Errorf("生成运行ID失败: %w", err)
	}
	record := types.HistoryRecord{
		RunID:     runID,
		Timestamp: s.now().Format(types.HistoryTimeLayout),
		Results:   results,
	}
	if req.JDText != "" {
		record.JDText = req.JDText
	} else {
		record.JDTitle = req.JobTitle
	}

	if s.history != nil {
		if err := s.history.Append(ctx, record); err != nil {
			return types.HistoryRecord{}, fmt.Errorf("保存历史记录失败: %w", err)
		}
	}
	s.publish(ctx, record, req.JobTitle)

	s.logger.Info().
		Str("run_id", runID.String()).
		Str("job_title", req.JobTitle).
		Int("candidates", len(results)).
		Msg("筛选完成")
	return record, nil
}

func (s *ScreeningService) publish(ctx context.Context, record types.HistoryRecord, jobTitle string) {
	if s.events == nil {
		return
	}
	event := types.ScreeningCompletedEvent{
		RunID:          record.RunID.String(),
		Timestamp:      record.Timestamp,
		JobTitle:       jobTitle,
		CandidateCount: len(record.Results),
	}
	if ranked := Rank(record.Results); len(ranked) > 0 {
		event.TopCandidate = ranked[0].CandidateName
		event.TopScore = ranked[0].TotalScore
	}
	if err := s.events.PublishScreeningCompleted(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("run_id", event.RunID).Msg("发布筛选完成事件失败")
	}
}

// LoadHistory 返回全部历史记录，未配置历史存储时返回空列表
func (s *ScreeningService) LoadHistory(ctx context.Context) ([]types.HistoryRecord, error) {
	if s.history == nil {
		return []types.HistoryRecord{}, nil
	}
	return s.history.Load(ctx)
}

// Rank 按总分降序稳定排序，返回新切片
func Rank(results []types.ScoreResult) []types.ScoreResult {
	ranked := make([]types.ScoreResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	return ranked
}

// WriteCSV 按给定顺序写出排名表
func WriteCSV(w io.Writer, results []types.ScoreResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.CandidateName,
			r.SuggestedRole,
			formatScore(r.TotalScore),
			formatScore(r.ATSScore),
			formatScore(r.SkillMatchScore),
			formatScore(r.EducationScore),
			string(r.MatchPriority),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
