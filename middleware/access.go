package middleware

import (
	"net/http"
	"time"

	"janusbridge/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog logs one line per request. /healthz and /metrics log at debug.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch c.Request.URL.Path {
		case "/healthz", "/metrics":
			log.Debug("http", fields...)
		default:
			log.Info("http", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 with a CodeError body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				log.Error("http handler panic", zap.String("path", c.Request.URL.Path), zap.Error(err), zap.Stack("stack"))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errs.NewCodeError(errs.ServerInternalError, "internal error"))
			}
		}()
		c.Next()
	}
}
