package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-recruit-go/internal/apperrors"
)

// DecodeKind 模型响应解码结果类型
type DecodeKind int

const (
	DecodeOk DecodeKind = iota
	DecodeParseFailure
	DecodeEmptyResponse
)

func (k DecodeKind) String() string {
	switch k {
	case DecodeOk:
		return "ok"
	case DecodeParseFailure:
		return "parse_failure"
	case DecodeEmptyResponse:
		return "empty_response"
	default:
		return fmt.Sprintf("DecodeKind(%d)", int(k))
	}
}

// DecodeResult 带标签的解码结果，Kind 为 DecodeOk 时 Value 有效
type DecodeResult[T any] struct {
	Kind  DecodeKind
	Value T
	Raw   string // 提取出的JSON片段，排查用
	Err   error  // ParseFailure 时的底层错误
}

// OK 是否解码成功
func (r DecodeResult[T]) OK() bool { return r.Kind == DecodeOk }

// AsError 非 Ok 时转换为 ModelInvocationError
func (r DecodeResult[T]) AsError(op string) error {
	switch r.Kind {
	case DecodeOk:
		return nil
	case DecodeEmptyResponse:
		return apperrors.NewModelError(op, apperrors.ErrEmptyResponse, "")
	default:
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		return apperrors.NewModelError(op, apperrors.ErrUnparseable, detail)
	}
}

// Decode 把模型原始输出解码为 T。
// 依次处理 BOM、markdown 代码块、前后多余文字、非法 UTF-8；首次反序列化失败时修复字符串内未转义的引号再试一次。
func Decode[T any](content string) DecodeResult[T] {
	var zero T
	content = strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))
	if content == "" {
		return DecodeResult[T]{Kind: DecodeEmptyResponse, Value: zero}
	}

	cleaned := CleanJSONBlock(content)
	jsonStr := ExtractJSON(cleaned)
	if jsonStr == "" {
		// 字符串内有未转义引号时按字符串感知的匹配会失败，退回只数括号
		jsonStr = extractByBraces(cleaned)
	}
	if jsonStr == "" {
		return DecodeResult[T]{Kind: DecodeParseFailure, Value: zero, Raw: content, Err: fmt.Errorf("no JSON value found")}
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var v T
	err := json.Unmarshal([]byte(jsonStr), &v)
	if err == nil {
		return DecodeResult[T]{Kind: DecodeOk, Value: v, Raw: jsonStr}
	}

	fixed := sanitizeJSON(jsonStr)
	var retry T
	if fixErr := json.Unmarshal([]byte(fixed), &retry); fixErr == nil {
		return DecodeResult[T]{Kind: DecodeOk, Value: retry, Raw: fixed}
	}
	return DecodeResult[T]{Kind: DecodeParseFailure, Value: zero, Raw: jsonStr, Err: err}
}

// CleanJSONBlock 去掉 ```json ... ``` 包裹
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ExtractJSON 返回文本中第一个完整的 JSON 对象或数组，找不到返回空串。
// 字符串字面量内的括号不参与计数。
func ExtractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}
	open, closeCh := text[start], byte('}')
	if open == '[' {
		closeCh = ']'
	}

	level := 0
	inStr, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case open:
			level++
		case closeCh:
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func extractByBraces(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 把字符串字面量内部、并非字符串结尾的双引号改写为 \"。
// 判断依据：下一个非空白字符是否为 : , ] } 之一。
func sanitizeJSON(src string) string {
	var b strings.Builder
	b.Grow(len(src) + 16)
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString(`\"`)
			}
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			escaped = false
		}
	}
	return b.String()
}
