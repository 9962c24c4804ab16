package apperrors

import (
	"github.com/rs/zerolog"
)

// Policy 组件遇到模型/提取失败时的处理策略
type Policy int

const (
	// HardFail 错误直接返回给调用方
	HardFail Policy = iota
	// DegradeToSentinel 降级为"待人工录入"占位结果
	DegradeToSentinel
	// DegradeToDefault 降级为组件声明的默认值
	DegradeToDefault
)

func (p Policy) String() string {
	switch p {
	case HardFail:
		return "hard_fail"
	case DegradeToSentinel:
		return "degrade_to_sentinel"
	case DegradeToDefault:
		return "degrade_to_default"
	default:
		return "unknown"
	}
}

// Guard 按策略统一处理一次调用的结果。
// err 为 nil 时原样返回 value；HardFail 返回 err；两种降级策略返回 fallback() 并记录告警。
func Guard[T any](policy Policy, op string, value T, err error, fallback func() T, logger zerolog.Logger) (T, error) {
	if err == nil {
		return value, nil
	}
	if policy == HardFail || fallback == nil {
		return value, err
	}
	logger.Warn().
		Err(err).
		Str("op", op).
		Str("policy", policy.String()).
		Msg("调用失败，按策略降级")
	return fallback(), nil
}
