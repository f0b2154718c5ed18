package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"resume-matcher/internal/api/handler"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, screeningHandler *handler.ScreeningHandler) {
	h.GET("/", screeningHandler.Root)
	h.POST("/jd/upload", screeningHandler.UploadJD)
	h.POST("/resumes/upload", screeningHandler.UploadResumes)
	h.POST("/score", screeningHandler.Score)
	h.GET("/history", screeningHandler.History)
}

// NewServer 创建带链路追踪和 panic 恢复的 hertz 服务，opts 追加在追踪选项之后
func NewServer(opts ...config.Option) *server.Hertz {
	tracer, cfg := hertztracing.NewServerTracer()
	h := server.New(append([]config.Option{tracer}, opts...)...)
	h.Use(recovery.Recovery(recovery.WithRecoveryHandler(recoveryHandler)))
	h.Use(hertztracing.ServerMiddleware(cfg))
	return h
}

// recoveryHandler 记录 panic 并按统一格式返回 500
func recoveryHandler(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte) {
	hlog.CtxErrorf(ctx, "[Recovery] 请求处理 panic: %v\n%s", err, stack)
	c.AbortWithStatusJSON(consts.StatusInternalServerError, utils.H{"detail": handler.MsgInternalError})
}
