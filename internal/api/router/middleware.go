package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"ai-recruit-go/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestLogger 为每个请求分配 request_id，并把带该字段的 logger 放进上下文
func RequestLogger() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		reqID := string(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Response.Header.Set(headerRequestID, reqID)

		l := logger.Logger.With().Str("request_id", reqID).Logger()
		ctx = l.WithContext(ctx)

		start := time.Now()
		c.Next(ctx)

		l.Info().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", c.Response.StatusCode()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
