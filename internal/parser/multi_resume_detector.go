package parser

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/constants"
	"ai-recruit-go/internal/llm"
	"ai-recruit-go/internal/logger"
)

// DetectionVerdict 模型对文档是否包含多份简历的判断，仅作参考
type DetectionVerdict struct {
	IsMultiple bool   `json:"isMultiple"`
	Count      int    `json:"count"`
	Reason     string `json:"reason"`
}

// singleVerdict 检测失败或内容过短时的默认值
func singleVerdict(reason string) DetectionVerdict {
	return DetectionVerdict{IsMultiple: false, Count: 1, Reason: reason}
}

type splitResponse struct {
	Resumes []json.RawMessage `json:"resumes"`
}

// MultiResumeDetector 判断并拆分多份简历
type MultiResumeDetector struct {
	detectCompleter llm.Completer
	splitCompleter  llm.Completer
	minRunes        int
	logger          zerolog.Logger
}

type DetectorOption func(*MultiResumeDetector)

func WithDetectorLogger(l zerolog.Logger) DetectorOption {
	return func(d *MultiResumeDetector) { d.logger = l }
}

// WithSplitCompleter 拆分请求使用单独的模型（默认与检测相同）
func WithSplitCompleter(c llm.Completer) DetectorOption {
	return func(d *MultiResumeDetector) { d.splitCompleter = c }
}

func NewMultiResumeDetector(completer llm.Completer, opts ...DetectorOption) *MultiResumeDetector {
	d := &MultiResumeDetector{
		detectCompleter: completer,
		splitCompleter:  completer,
		minRunes:        constants.MinDetectTextRunes,
		logger:          logger.Named("multi_resume_detector"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy 检测失败降级为单份简历
func (d *MultiResumeDetector) Policy() apperrors.Policy { return apperrors.DegradeToDefault }

// Detect 文本过短时不调用模型；任何调用或解码失败都降级为 {false, 1}
func (d *MultiResumeDetector) Detect(ctx context.Context, text string) DetectionVerdict {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < d.minRunes {
		return singleVerdict("内容过短")
	}

	res, err := llm.CompleteJSON[DetectionVerdict](ctx, d.detectCompleter, multiDetectSystemPrompt, text)
	if err == nil && !res.OK() {
		err = res.AsError("multi_detect")
	}
	v, _ := apperrors.Guard(d.Policy(), "multi_detect", res.Value, err, func() DetectionVerdict {
		return singleVerdict("检测失败，按单份简历处理")
	}, d.logger)

	if v.Count < 1 {
		v.Count = 1
	}
	if v.Count == 1 {
		v.IsMultiple = false
	}
	if !v.IsMultiple {
		v.Count = 1
	}
	d.logger.Info().Bool("is_multiple", v.IsMultiple).Int("count", v.Count).Str("reason", v.Reason).Msg("多简历检测完成")
	return v
}

// Split 一次请求把全文拆分为每位候选人一条的原始 JSON 记录
func (d *MultiResumeDetector) Split(ctx context.Context, text string) ([]json.RawMessage, error) {
	res, err := llm.CompleteJSON[splitResponse](ctx, d.splitCompleter, multiSplitSystemPrompt, text)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		// 模型有时直接返回数组
		if arr := llm.Decode[[]json.RawMessage](res.Raw); res.Kind == llm.DecodeParseFailure && arr.OK() {
			return arr.Value, nil
		}
		return nil, res.AsError("multi_split")
	}
	return res.Value.Resumes, nil
}
