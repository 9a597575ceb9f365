package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/autopress/pkg/auth"
	"github.com/d60-Lab/autopress/pkg/response"
)

type botRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TriggerSweep 立即触发一次扫描
// @Summary 手动触发扫描（异步）
// @Tags 机器人
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/sweeps [post]
func (h *Handler) TriggerSweep(c *gin.Context) {
	queued := h.sweeps.Trigger()
	response.Accepted(c, gin.H{"queued": queued, "last": h.sweeps.Last()})
}

// SetBot 开关机器人
// @Summary 启用/停用机器人
// @Tags 机器人
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body botRequest true "开关"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Router /api/v1/bot [put]
func (h *Handler) SetBot(c *gin.Context) {
	var req botRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.postService.SetBotEnabled(c.Request.Context(), *req.Enabled); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"enabled": *req.Enabled})
}

// Login 管理员登录
// @Summary 管理员登录，返回 JWT
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Username != h.admin.Username || auth.CheckPassword(h.admin.PasswordHash, req.Password) != nil {
		response.Unauthorized(c, auth.ErrInvalidCredentials.Error())
		return
	}
	token, exp, err := h.issuer.Issue(req.Username)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token, "expires_at": exp})
}
