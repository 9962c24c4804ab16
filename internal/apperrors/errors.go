package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// 基础错误，配合 errors.Is 使用
var (
	ErrFileMissing       = errors.New("文件不存在或无法读取")
	ErrEmptyContent      = errors.New("content is empty")
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	ErrLegacyFormat      = errors.New("不支持旧版 .doc 格式")
	ErrMalformedDocument = errors.New("文档内容无法解析")

	ErrModelInvocation = errors.New("模型调用失败")
	ErrEmptyResponse   = errors.New("model returned empty response")
	ErrUnparseable     = errors.New("model returned unparseable data")

	ErrNotFound       = errors.New("记录不存在")
	ErrNoValidResumes = errors.New("no valid resumes extracted")
)

// ExtractionError 文本提取失败，消息需可直接展示给上传者
type ExtractionError struct {
	Format  string
	Name    string
	BaseErr error
	Detail  string
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString(e.BaseErr.Error())
	if e.Name != "" || e.Format != "" {
		fmt.Fprintf(&b, " (文件:%s, 格式:%s)", e.Name, e.Format)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.BaseErr }

// Is 实现 errors.Is 接口以支持错误比较
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// ModelInvocationError 网络/接口失败，或响应为空、无法解析
type ModelInvocationError struct {
	Op      string
	BaseErr error
	Detail  string
}

func (e *ModelInvocationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
}

func (e *ModelInvocationError) Unwrap() error { return e.BaseErr }

func (e *ModelInvocationError) Is(target error) bool {
	return target == ErrModelInvocation || errors.Is(e.BaseErr, target)
}

// NotFoundError 引用的候选人或岗位不存在
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d 不存在", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationWarning 软性数据质量问题，只记录不抛出
type ValidationWarning struct {
	Field   string
	Message string
}

func (w ValidationWarning) Error() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// PartialFailure 批处理中部分条目失败；只有全部失败时才会作为错误返回
type PartialFailure struct {
	Op      string
	Total   int
	Failed  int
	Reasons []string
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d/%d 失败", e.Op, e.Failed, e.Total)
}

// Add 记录一条失败原因
func (e *PartialFailure) Add(reason string) {
	e.Failed++
	e.Reasons = append(e.Reasons, reason)
}

// 构造函数

func NewExtractionError(name, format string, base error, detail string) error {
	return &ExtractionError{Name: name, Format: format, BaseErr: base, Detail: detail}
}

func NewModelError(op string, base error, detail string) error {
	if base == nil {
		base = ErrModelInvocation
	}
	return &ModelInvocationError{Op: op, BaseErr: base, Detail: detail}
}

func NewNotFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsExtraction / IsModel / IsNotFound 供 HTTP 层映射状态码

func IsExtraction(err error) bool {
	var e *ExtractionError
	return errors.As(err, &e)
}

func IsModel(err error) bool {
	var e *ModelInvocationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
