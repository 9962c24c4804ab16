package tracing

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultMaxLength = 200

	MaxSQLLength    = 500
	MaxRedisLength  = 100
	MaxPromptLength = 300
	MaxResumeLength = 150
)

// piiKeys 属性名包含这些关键字时值需要掩码
var piiKeys = []string{
	"email", "phone", "mobile", "password", "id_card", "身份证",
	"address", "地址", "name", "姓名", "secret", "token", "api_key",
}

// SafeAttributeValue 敏感字段掩码，其余超长时截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, k := range piiKeys {
		if strings.Contains(lowerName, k) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// SafeString 构造经过掩码/截断的字符串属性
func SafeString(key, value string) attribute.KeyValue {
	return attribute.String(key, SafeAttributeValue(key, value, DefaultMaxLength))
}

// MaskPII "张三" -> "张*"，"王小明" -> "王*明"，更长的值保留首尾各两个字符
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[:1]) + "*"
	case n <= 4:
		return string(runes[:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 超长时保留首尾，中间以 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

func SafeSQL(sql string) string { return TruncateString(sql, MaxSQLLength) }

func SafeRedisKey(key string) string { return TruncateString(key, MaxRedisLength) }

func SafeResumeContent(content string) string { return TruncateString(content, MaxResumeLength) }

func SafePrompt(prompt string) string { return TruncateString(prompt, MaxPromptLength) }
