package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/constants"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/types"
)

// FallbackState 扫描件降级流程的状态
type FallbackState int

const (
	StateTextAvailable FallbackState = iota
	StateScannedNoText
	StateOcrAttempted
	StatePlaceholder
)

func (s FallbackState) String() string {
	switch s {
	case StateTextAvailable:
		return "TextAvailable"
	case StateScannedNoText:
		return "ScannedNoText"
	case StateOcrAttempted:
		return "OcrAttempted"
	case StatePlaceholder:
		return "Placeholder"
	default:
		return fmt.Sprintf("FallbackState(%d)", int(s))
	}
}

// Terminal TextAvailable 与 Placeholder 为终态
func (s FallbackState) Terminal() bool {
	return s == StateTextAvailable || s == StatePlaceholder
}

// 占位记录的说明文字
const (
	SummaryImageOnly      = "该PDF为扫描件或纯图片，未能提取到文字内容，请人工录入候选人信息。"
	SummaryOCRUnavailable = "该PDF为扫描件或纯图片，未能提取到文字内容。OCR识别已开启但暂未接入，请人工录入候选人信息。"
	SummaryOCRFailed      = "该PDF为扫描件或纯图片，OCR识别未得到有效文字，请人工录入候选人信息。"
)

// OCREngine OCR 扩展点
type OCREngine interface {
	Recognize(ctx context.Context, doc Document) (string, error)
}

// FallbackOutcome 降级流程的结果。State 为 StateTextAvailable 时 Text 有效，为 StatePlaceholder 时 Record 有效。
type FallbackOutcome struct {
	State  FallbackState
	Text   string
	Record *types.CandidateRecord
	Trail  []FallbackState
}

// ScannedFallback 主提取失败或文字过少时的二次提取与降级策略
type ScannedFallback struct {
	retry      PDFTextReader
	ocrEnabled bool
	engine     OCREngine
	minRunes   int
	logger     zerolog.Logger
}

type FallbackOption func(*ScannedFallback)

// WithOCR 开启 OCR；engine 为 nil 表示已开启但尚未接入引擎
func WithOCR(engine OCREngine) FallbackOption {
	return func(f *ScannedFallback) {
		f.ocrEnabled = true
		f.engine = engine
	}
}

func WithFallbackLogger(l zerolog.Logger) FallbackOption {
	return func(f *ScannedFallback) { f.logger = l }
}

// NewScannedFallback retry 为二次提取使用的解析器，可为 nil
func NewScannedFallback(retry PDFTextReader, opts ...FallbackOption) *ScannedFallback {
	f := &ScannedFallback{
		retry:    retry,
		minRunes: constants.MinScannedTextRunes,
		logger:   logger.Named("scanned_fallback"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Policy 本组件的失败处理策略
func (f *ScannedFallback) Policy() apperrors.Policy { return apperrors.DegradeToSentinel }

// Usable 文本是否足够进入解析
func (f *ScannedFallback) Usable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= f.minRunes
}

// Resolve 根据主提取结果推进状态机直到终态。
// 仅适用于可扫描格式；其他格式的提取失败不在这里处理。
func (f *ScannedFallback) Resolve(ctx context.Context, doc Document, primaryText string, primaryErr error) FallbackOutcome {
	out := FallbackOutcome{}
	state := StateScannedNoText
	text := primaryText
	if primaryErr == nil && f.Usable(primaryText) {
		state = StateTextAvailable
	}
	if primaryErr != nil {
		f.logger.Warn().Err(primaryErr).Str("file", doc.Name).Msg("主提取失败，进入扫描件降级流程")
	}

	retried := false
	summary := SummaryImageOnly
	for {
		out.Trail = append(out.Trail, state)
		if state.Terminal() {
			break
		}

		switch state {
		case StateScannedNoText:
			if !retried && f.retry != nil {
				retried = true
				if t, err := f.retry.ReadText(ctx, doc.Data, doc.Name); err == nil && f.Usable(t) {
					text = t
					state = StateTextAvailable
					continue
				} else if err != nil {
					f.logger.Debug().Err(err).Str("file", doc.Name).Msg("二次提取失败")
				}
			}
			switch {
			case !f.ocrEnabled:
				summary = SummaryImageOnly
				state = StatePlaceholder
			case f.engine == nil:
				summary = SummaryOCRUnavailable
				state = StatePlaceholder
			default:
				state = StateOcrAttempted
			}

		case StateOcrAttempted:
			t, err := f.recognize(ctx, doc)
			t, _ = apperrors.Guard(f.Policy(), "ocr", t, err, func() string { return "" }, f.logger)
			if f.Usable(t) {
				text = t
				state = StateTextAvailable
			} else {
				summary = SummaryOCRFailed
				state = StatePlaceholder
			}
		}
	}

	out.State = state
	if state == StateTextAvailable {
		out.Text = strings.TrimSpace(text)
	} else {
		rec := types.NewPendingRecord(summary)
		out.Record = &rec
	}

	f.logger.Info().
		Str("file", doc.Name).
		Str("state", state.String()).
		Interface("trail", trailNames(out.Trail)).
		Msg("扫描件降级流程结束")
	return out
}

// recognize 引擎 panic 也按 OCR 失败处理
func (f *ScannedFallback) recognize(ctx context.Context, doc Document) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ocr engine panic: %v", r)
		}
	}()
	return f.engine.Recognize(ctx, doc)
}

func trailNames(trail []FallbackState) []string {
	names := make([]string, len(trail))
	for i, s := range trail {
		names[i] = s.String()
	}
	return names
}
