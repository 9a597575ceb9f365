package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/autopress/pkg/auth"
	"github.com/d60-Lab/autopress/pkg/response"
)

const ContextSubject = "subject"

// JWTAuth 要求 "Authorization: Bearer <token>"
func JWTAuth(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		subject, err := issuer.Parse(token)
		if err != nil {
			response.Unauthorized(c, err.Error())
			return
		}
		c.Set(ContextSubject, subject)
		c.Next()
	}
}

// RequestID 为每个请求设置 X-Request-ID，缺失时生成
func RequestID(gen func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = gen()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
