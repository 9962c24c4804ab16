package parser

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/llm"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/types"
)

// TextResolution 提取 + 扫描件降级后的结果；Placeholder 非空时文档没有可用文字
type TextResolution struct {
	Text        string
	Placeholder *types.CandidateRecord
	Trail       []extract.FallbackState
}

// ResumeParser 调用补全服务把简历文本转换为 CandidateRecord
type ResumeParser struct {
	completer llm.Completer
	extractor *extract.Extractor
	fallback  *extract.ScannedFallback
	validator *ResumeValidator
	logger    zerolog.Logger
}

type ResumeParserOption func(*ResumeParser)

func WithParserLogger(l zerolog.Logger) ResumeParserOption {
	return func(p *ResumeParser) { p.logger = l }
}

func WithValidator(v *ResumeValidator) ResumeParserOption {
	return func(p *ResumeParser) { p.validator = v }
}

func NewResumeParser(completer llm.Completer, extractor *extract.Extractor, fallback *extract.ScannedFallback, opts ...ResumeParserOption) *ResumeParser {
	p := &ResumeParser{
		completer: completer,
		extractor: extractor,
		fallback:  fallback,
		validator: NewResumeValidator(),
		logger:    logger.Named("resume_parser"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy 文本解析失败直接返回
func (p *ResumeParser) Policy() apperrors.Policy { return apperrors.HardFail }

// Validator 供编排器对拆分结果复用同一个校验器
func (p *ResumeParser) Validator() *ResumeValidator { return p.validator }

// ResolveText 提取文档文字。仅 PDF 在提取失败或文字过少时进入降级流程，其他格式的失败直接返回。
func (p *ResumeParser) ResolveText(ctx context.Context, doc extract.Document) (TextResolution, error) {
	text, err := p.extractor.Extract(ctx, doc)
	if !doc.Format.Scannable() || p.fallback == nil {
		if err != nil {
			return TextResolution{}, err
		}
		return TextResolution{Text: text}, nil
	}
	if err == nil && p.fallback.Usable(text) {
		return TextResolution{Text: text, Trail: []extract.FallbackState{extract.StateTextAvailable}}, nil
	}

	outcome := p.fallback.Resolve(ctx, doc, text, err)
	res := TextResolution{Trail: outcome.Trail}
	if outcome.State == extract.StateTextAvailable {
		res.Text = outcome.Text
	} else {
		res.Placeholder = outcome.Record
	}
	return res, nil
}

// ParseDocument 直接模式：提取（含降级）后解析；扫描件返回待人工录入记录
func (p *ResumeParser) ParseDocument(ctx context.Context, doc extract.Document) (types.CandidateRecord, error) {
	res, err := p.ResolveText(ctx, doc)
	if err != nil {
		return types.CandidateRecord{}, err
	}
	if res.Placeholder != nil {
		rec, _ := p.validator.Validate(*res.Placeholder)
		return rec, nil
	}
	return p.ParseText(ctx, res.Text)
}

// ParseText 文本模式：一次补全请求，结果经过校验后返回
func (p *ResumeParser) ParseText(ctx context.Context, text string) (types.CandidateRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.CandidateRecord{}, apperrors.NewExtractionError("", "", apperrors.ErrEmptyContent, "")
	}

	start := time.Now()
	res, err := llm.CompleteJSON[types.CandidateRecord](ctx, p.completer, resumeParseSystemPrompt, text)
	if err == nil && !res.OK() {
		err = res.AsError("resume_parse")
		p.logger.Debug().Str("raw", truncateForLog(res.Raw, 500)).Msg("模型返回内容无法解析")
	}
	rec, err := apperrors.Guard(p.Policy(), "resume_parse", res.Value, err, nil, p.logger)
	if err != nil {
		return types.CandidateRecord{}, err
	}

	rec, warnings := p.validator.Validate(rec)
	p.logger.Info().
		Str("name", rec.Name).
		Int("skills", len(rec.Skills)).
		Int("experience", len(rec.Experience)).
		Int("warnings", len(warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("简历解析完成")
	return rec, nil
}

func truncateForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
