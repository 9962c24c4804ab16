package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/processor"
	"ai-recruit-go/internal/tracing"
)

// 错误响应中的 code
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeModelError       = "MODEL_ERROR"
	CodePairBusy         = "PAIR_BUSY"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorResponse 统一错误响应体
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor 错误到 HTTP 状态码与错误码的映射
func StatusFor(err error) (int, string) {
	switch {
	case apperrors.IsNotFound(err):
		return consts.StatusNotFound, CodeNotFound
	case apperrors.IsExtraction(err):
		return consts.StatusBadRequest, CodeExtractionFailed
	case errors.Is(err, processor.ErrPairBusy):
		return consts.StatusConflict, CodePairBusy
	case apperrors.IsModel(err), errors.Is(err, apperrors.ErrNoValidResumes):
		return consts.StatusBadGateway, CodeModelError
	default:
		return consts.StatusInternalServerError, CodeInternal
	}
}

func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, code := StatusFor(err)
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)

	l := logger.Ctx(ctx)
	var ev *zerolog.Event
	if status >= consts.StatusInternalServerError {
		ev = l.Error()
	} else {
		ev = l.Warn()
	}
	ev.Err(err).Str("path", string(c.Path())).Int("status", status).Msg("请求处理失败")

	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Message: msg})
}
