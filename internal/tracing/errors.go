package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ai-recruit-go/internal/apperrors"
)

// ErrorType 错误分类，便于在链路中过滤
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeDB         ErrorType = "db"
	ErrorTypeRedis      ErrorType = "redis"
	ErrorTypeRabbitMQ   ErrorType = "rabbitmq"
	ErrorTypeObject     ErrorType = "object_storage"
	ErrorTypeModel      ErrorType = "llm"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeInternal   ErrorType = "internal"
)

// Classify 按错误链推断分类；无法识别的归为 internal
func Classify(err error) ErrorType {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case apperrors.IsNotFound(err):
		return ErrorTypeNotFound
	case apperrors.IsExtraction(err):
		return ErrorTypeExtraction
	case apperrors.IsModel(err):
		return ErrorTypeModel
	case errors.Is(err, apperrors.ErrNoValidResumes):
		return ErrorTypeValidation
	default:
		return ErrorTypeInternal
	}
}

// RecordError 记录错误并附加统一的分类属性
func RecordError(span trace.Span, err error, errorType ErrorType, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	if errorType == "" {
		errorType = Classify(err)
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 请求处理失败时记录状态码与客户端/服务端分类
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}
	category := "unknown"
	switch {
	case statusCode >= 400 && statusCode < 500:
		category = "client_error"
	case statusCode >= 500:
		category = "server_error"
	}
	RecordError(span, err, Classify(err),
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}
