// Package response 统一的 JSON 响应信封
package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

// Response 所有接口的返回结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// 业务错误码
const (
	CodeOK               = 0
	CodeInvalid          = 40000
	CodeInvalidState     = 40001
	CodeUnauthenticated  = 40100
	CodePermissionDenied = 40300
	CodeNotFound         = 40400
	CodeConflict         = 40900
	CodeTooManyRequests  = 42900
	CodeInternal         = 50000
	CodeUnavailable      = 50300
)

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: "created", Data: data})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: CodeInvalid, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: CodeUnauthenticated, Message: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: CodeTooManyRequests, Message: msg})
}

// InternalError 对外只返回固定文案，细节写日志并上报 sentry
func InternalError(c *gin.Context, err error) {
	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: CodeInternal, Message: "internal server error"})
}

// Error 按 apperr 的 Kind 映射 HTTP 状态码
func Error(c *gin.Context, err error) {
	var status, code int
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status, code = http.StatusNotFound, CodeNotFound
	case apperr.KindConflict:
		status, code = http.StatusConflict, CodeConflict
	case apperr.KindInvalidState:
		status, code = http.StatusBadRequest, CodeInvalidState
	case apperr.KindPermissionDenied:
		status, code = http.StatusForbidden, CodePermissionDenied
	case apperr.KindInvalid:
		status, code = http.StatusBadRequest, CodeInvalid
	case apperr.KindUnauthenticated:
		status, code = http.StatusUnauthorized, CodeUnauthenticated
	case apperr.KindUnavailable:
		logger.Warn("store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		status, code = http.StatusServiceUnavailable, CodeUnavailable
	default:
		InternalError(c, err)
		return
	}
	c.AbortWithStatusJSON(status, Response{Code: code, Message: apperr.MessageOf(err)})
}
