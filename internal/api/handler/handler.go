package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/autopress/config"
	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/service"
	"github.com/d60-Lab/autopress/pkg/auth"
	"github.com/d60-Lab/autopress/pkg/logger"
	"github.com/d60-Lab/autopress/pkg/response"
)

// SweepTrigger 由 *service.Scheduler 实现
type SweepTrigger interface {
	Trigger() bool
	Last() *service.SweepResult
}

// Handler HTTP 处理器集合
type Handler struct {
	postService service.PostService
	sweeps      SweepTrigger
	issuer      *auth.Issuer
	admin       config.AdminConfig
}

func NewHandler(postService service.PostService, sweeps SweepTrigger, issuer *auth.Issuer, admin config.AdminConfig) *Handler {
	return &Handler{postService: postService, sweeps: sweeps, issuer: issuer, admin: admin}
}

// fail 把服务层错误映射为 HTTP 状态码，上游错误信息原样透传
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPostNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, repository.ErrAlreadyGenerated),
		errors.Is(err, service.ErrAlreadyPublished),
		errors.Is(err, service.ErrClaimed):
		response.Conflict(c, err.Error())
	case errors.Is(err, repository.ErrArticleMissing),
		errors.Is(err, repository.ErrUnsupportedLanguage),
		errors.Is(err, service.ErrTargetConfig),
		errors.Is(err, service.ErrPublishStatus),
		errors.Is(err, assistant.ErrMissingAPIKey),
		errors.Is(err, assistant.ErrMissingAssistant):
		response.BadRequest(c, err.Error())
	case isUpstream(err):
		logger.Warn("upstream call failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.BadGateway(c, err.Error(), nil)
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.InternalError(c, err)
	}
}

func isUpstream(err error) bool {
	var apiErr *assistant.APIError
	return errors.As(err, &apiErr) ||
		errors.Is(err, assistant.ErrRunFailed) ||
		errors.Is(err, assistant.ErrRunCancelled) ||
		errors.Is(err, assistant.ErrRunExpired) ||
		errors.Is(err, assistant.ErrRunTimedOut) ||
		errors.Is(err, assistant.ErrNoAssistantMessage) ||
		errors.Is(err, assistant.ErrInvalidPayload)
}
