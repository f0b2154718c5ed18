package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-matcher/internal/processor"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
)

// 返回给调用方的固定提示
const (
	MsgRunning          = "Resume Screening API is running"
	MsgJDNotPDF         = "Only PDF files are supported. Please upload a file ending in .pdf"
	MsgResumesNotZIP    = "Please upload a ZIP archive containing resume files (.pdf or .docx)."
	MsgFileRequired     = "Field required: file"
	MsgInvalidBody      = "Invalid request body"
	MsgInternalError    = "Internal Server Error"
	validationMsgPrefix = "validation error"
)

// Screener 处理器依赖的筛选服务
type Screener interface {
	ProcessJD(ctx context.Context, path string) (types.JDInfo, error)
	RunScreening(ctx context.Context, req processor.ScreeningRequest) (types.HistoryRecord, error)
	LoadHistory(ctx context.Context) ([]types.HistoryRecord, error)
}

// ScoreRequest POST /score 请求体
type ScoreRequest struct {
	JDEmbedding []float64 `json:"jd_embedding" validate:"required,min=1"`
	JobTitle    string    `json:"job_title"`
	ResumePaths []string  `json:"resume_paths" validate:"required"`
}

// ScoreResponse POST /score 响应体
type ScoreResponse struct {
	Results []types.ScoreResult `json:"results"`
}

// ResumeUploadResponse POST /resumes/upload 响应体
type ResumeUploadResponse struct {
	ResumePaths []string `json:"resume_paths"`
}

// ScreeningHandler 岗位描述上传、简历上传、评分和历史查询
type ScreeningHandler struct {
	service   Screener
	workspace *storage.Workspace
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewScreeningHandler 创建处理器
func NewScreeningHandler(service Screener, workspace *storage.Workspace, logger zerolog.Logger) *ScreeningHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ScreeningHandler{
		service:   service,
		workspace: workspace,
		validator: v,
		logger:    logger.With().Str("component", "screening_handler").Logger(),
	}
}

// Root 健康检查
func (h *ScreeningHandler) Root(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"message": MsgRunning})
}

// UploadJD 保存岗位描述 PDF 并返回标题、技能和技能向量
func (h *ScreeningHandler) UploadJD(ctx context.Context, c *app.RequestContext) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.badRequest(ctx, c, MsgFileRequired)
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		h.badRequest(ctx, c, MsgJDNotPDF)
		return
	}

	src, err := storage.FromMultipart(fh)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	defer src.Close()

	path, err := h.workspace.SaveJD(ctx, src)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}

	info, err := h.service.ProcessJD(ctx, path)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, info)
}

// UploadResumes 保存简历压缩包，解压后返回全部文件路径
func (h *ScreeningHandler) UploadResumes(ctx context.Context, c *app.RequestContext) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.badRequest(ctx, c, MsgFileRequired)
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".zip") {
		h.badRequest(ctx, c, MsgResumesNotZIP)
		return
	}

	src, err := storage.FromMultipart(fh)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	defer src.Close()

	zipPath, err := h.workspace.SaveResumeArchive(ctx, src)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	paths, err := h.workspace.ExtractArchive(zipPath)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}

	h.logger.Info().Int("files", len(paths)).Msg("简历压缩包解压完成")
	c.JSON(consts.StatusOK, ResumeUploadResponse{ResumePaths: paths})
}

// Score 对给定路径的简历评分并追加历史
func (h *ScreeningHandler) Score(ctx context.Context, c *app.RequestContext) {
	var req ScoreRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		h.badRequest(ctx, c, MsgInvalidBody)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(ctx, c, err)
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("job.title", tracing.TruncateString(req.JobTitle, tracing.DefaultMaxLength)),
		attribute.Int("resumes.count", len(req.ResumePaths)),
	)

	record, err := h.service.RunScreening(ctx, processor.ScreeningRequest{
		JDEmbedding: req.JDEmbedding,
		JobTitle:    req.JobTitle,
		ResumePaths: req.ResumePaths,
	})
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, ScoreResponse{Results: record.Results})
}

// History 返回全部历史记录，最新的在最后
func (h *ScreeningHandler) History(ctx context.Context, c *app.RequestContext) {
	records, err := h.service.LoadHistory(ctx)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, records)
}

func (h *ScreeningHandler) badRequest(ctx context.Context, c *app.RequestContext, msg string) {
	h.writeError(ctx, c, &requestError{msg: msg})
}

// writeError 客户端错误返回 400 和错误信息，其余返回 500
func (h *ScreeningHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, detail := StatusFor(err)
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)

	event := h.logger.Warn()
	if status >= consts.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("path", string(c.Path())).
		Str("user_agent", tracing.TruncateString(string(c.UserAgent()), tracing.MaxHeaderLength)).
		Msg("请求处理失败")

	c.JSON(status, utils.H{"detail": detail})
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// StatusFor 把错误映射为 HTTP 状态码和返回信息
func StatusFor(err error) (int, string) {
	var reqErr *requestError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &reqErr):
		return consts.StatusBadRequest, reqErr.msg
	case errors.As(err, &validationErrs):
		return consts.StatusBadRequest, validationMessage(validationErrs)
	case types.IsClientError(err):
		return consts.StatusBadRequest, clientMessage(err)
	default:
		return consts.StatusInternalServerError, MsgInternalError
	}
}

// clientMessage 取最外层 ScreeningError 的提示，避免带出包装前缀
func clientMessage(err error) string {
	var se *types.ScreeningError
	if errors.As(err, &se) {
		return se.Error()
	}
	return err.Error()
}

func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return validationMsgPrefix + ": invalid request"
	}
	fe := errs[0]
	return fmt.Sprintf("%s: %s - %s", validationMsgPrefix, fe.Field(), fe.Tag())
}
