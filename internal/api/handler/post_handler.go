package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/autopress/internal/assistant"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/pkg/response"
)

type generateRequest struct {
	Language string `json:"language" binding:"omitempty,oneof=en fr english french both"`
	Force    bool   `json:"force"`
}

type publishRequest struct {
	Language string `json:"language" binding:"required,oneof=en fr"`
	Status   string `json:"status" binding:"omitempty,oneof=draft publish"`
	Force    bool   `json:"force"`
}

func postID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid post id")
		return 0, false
	}
	return uint(id), true
}

// GetPost 查询帖子
// @Summary 查询帖子及其文章/发布状态
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path int true "帖子ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	post, err := h.postService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, post)
}

// EvaluatePost 以当前配置评估帖子（无副作用）
// @Summary 评估自动发布条件
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path int true "帖子ID"
// @Success 200 {object} response.Response{data=service.Decision}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/evaluate [post]
func (h *Handler) EvaluatePost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	d, err := h.postService.Evaluate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, d)
}

// GeneratePost 手动生成文章
// @Summary 手动生成文章（同步等待生成完成）
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "帖子ID"
// @Param request body generateRequest false "语言与是否强制重新生成"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/posts/{id}/generate [post]
func (h *Handler) GeneratePost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req generateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	mode, err := assistant.ParseMode(req.Language)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	post, err := h.postService.Generate(c.Request.Context(), id, mode, req.Force)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, post)
}

// PublishPost 手动发布某语言的文章
// @Summary 发布文章到 WordPress
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "帖子ID"
// @Param request body publishRequest true "发布参数"
// @Success 200 {object} response.Response{data=service.PublishResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response{data=service.PublishResult}
// @Router /api/v1/posts/{id}/publish [post]
func (h *Handler) PublishPost(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.postService.Publish(c.Request.Context(), id, model.Language(req.Language), req.Status, req.Force)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.Success {
		response.BadGateway(c, res.Error, res)
		return
	}
	response.Success(c, res)
}
