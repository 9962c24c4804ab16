package processor // 简历解析编排、匹配计算与批量匹配

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/parser"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/tracing"
	"ai-recruit-go/internal/types"
)

var tracer = otel.Tracer("ai-recruit-go/processor")

// ResumeProcessor 一个文档到若干候选人记录的编排：单简历路径与多简历拆分路径
type ResumeProcessor struct {
	parser     ResumeParser
	splitter   ResumeSplitter
	validator  *parser.ResumeValidator
	candidates CandidateStore
	logger     zerolog.Logger
}

type ResumeProcessorOption func(*ResumeProcessor)

func WithProcessorLogger(l zerolog.Logger) ResumeProcessorOption {
	return func(p *ResumeProcessor) {
		p.logger = l
		p.validator = p.validator.WithLogger(l)
	}
}

// WithCandidateStore 启用 ProcessAndStore
func WithCandidateStore(s CandidateStore) ResumeProcessorOption {
	return func(p *ResumeProcessor) { p.candidates = s }
}

func WithResumeValidator(v *parser.ResumeValidator) ResumeProcessorOption {
	return func(p *ResumeProcessor) { p.validator = v }
}

func NewResumeProcessor(rp ResumeParser, splitter ResumeSplitter, opts ...ResumeProcessorOption) *ResumeProcessor {
	p := &ResumeProcessor{
		parser:    rp,
		splitter:  splitter,
		validator: parser.NewResumeValidator(),
		logger:    logger.Named("resume_processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func single(rec types.CandidateRecord) types.MultiResumeDetectionResult {
	return types.MultiResumeDetectionResult{IsMultiple: false, Count: 1, Resumes: []types.CandidateRecord{rec}}
}

// DetectAndParse 提取文本后判断是否包含多份简历。
// 多简历分支出现任何错误（包括拆分后没有合格记录）时回退一次到单简历路径，
// 两条路径都失败才返回错误。
func (p *ResumeProcessor) DetectAndParse(ctx context.Context, doc extract.Document) (types.MultiResumeDetectionResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeProcessor.DetectAndParse", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
		attribute.String("document.format", string(doc.Format)),
	))
	defer span.End()

	res, err := p.parser.ResolveText(ctx, doc)
	if err != nil {
		tracing.RecordError(span, err, "")
		return types.MultiResumeDetectionResult{}, err
	}
	if res.Placeholder != nil {
		rec, _ := p.validator.Validate(*res.Placeholder)
		span.SetAttributes(attribute.Bool("pending_manual", true))
		p.logger.Warn().Str("file", doc.Name).Str("reason", rec.Summary).Msg("文档没有可用文字，生成待人工录入记录")
		return single(rec), nil
	}

	verdict := p.splitter.Detect(ctx, res.Text)
	span.SetAttributes(attribute.Bool("detect.is_multiple", verdict.IsMultiple), attribute.Int("detect.count", verdict.Count))
	if !verdict.IsMultiple || verdict.Count <= 1 {
		return p.parseSingle(ctx, span, res.Text)
	}

	result, multiErr := p.parseMultiple(ctx, res.Text)
	if multiErr == nil {
		span.SetAttributes(attribute.Int("resumes", len(result.Resumes)))
		return result, nil
	}

	p.logger.Warn().Err(multiErr).Str("file", doc.Name).Msg("多简历分支失败，回退到单简历路径")
	span.AddEvent("fallback_to_single")
	result, err = p.parseSingle(ctx, span, res.Text)
	if err != nil {
		return types.MultiResumeDetectionResult{}, errors.Join(err, multiErr)
	}
	return result, nil
}

func (p *ResumeProcessor) parseSingle(ctx context.Context, span trace.Span, text string) (types.MultiResumeDetectionResult, error) {
	rec, err := p.parser.ParseText(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, "")
		return types.MultiResumeDetectionResult{}, err
	}
	return single(rec), nil
}

// parseMultiple 一次拆分请求，逐条检查；不合格记录丢弃并记录原因
func (p *ResumeProcessor) parseMultiple(ctx context.Context, text string) (types.MultiResumeDetectionResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeProcessor.SplitResumes")
	defer span.End()

	raws, err := p.splitter.Split(ctx, text)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeModel)
		return types.MultiResumeDetectionResult{}, fmt.Errorf("拆分多份简历失败: %w", err)
	}

	skipped := &apperrors.PartialFailure{Op: "multi_resume_split", Total: len(raws)}
	survivors := make([]types.CandidateRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := parser.CheckSplitRecord(raw)
		if err != nil {
			skipped.Add(fmt.Sprintf("第%d条: %v", i+1, err))
			p.logger.Warn().Err(err).Int("index", i).Msg("拆分记录未通过校验，已跳过")
			continue
		}
		rec, _ = p.validator.Validate(rec)
		survivors = append(survivors, rec)
	}
	span.SetAttributes(attribute.Int("split.total", len(raws)), attribute.Int("split.skipped", skipped.Failed))

	if len(survivors) == 0 {
		return types.MultiResumeDetectionResult{}, fmt.Errorf("%w: %v", apperrors.ErrNoValidResumes, skipped)
	}
	if skipped.Failed > 0 {
		p.logger.Info().Strs("reasons", skipped.Reasons).Msg(skipped.Error())
	}
	return types.MultiResumeDetectionResult{IsMultiple: true, Count: len(survivors), Resumes: survivors}, nil
}

// BuildCandidates 把解析结果转换为待入库的候选人
func BuildCandidates(result types.MultiResumeDetectionResult, sourceKey string, parseJobID *string) ([]*models.Candidate, error) {
	out := make([]*models.Candidate, 0, len(result.Resumes))
	for _, rec := range result.Resumes {
		c, err := models.NewCandidate(rec, sourceKey, parseJobID)
		if err != nil {
			return nil, fmt.Errorf("构造候选人失败: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ProcessAndStore 同步解析并在一个事务内保存全部候选人，返回检测结果与新候选人ID
func (p *ResumeProcessor) ProcessAndStore(ctx context.Context, doc extract.Document, sourceKey string) (types.MultiResumeDetectionResult, []uint, error) {
	if p.candidates == nil {
		return types.MultiResumeDetectionResult{}, nil, errors.New("candidate store is not configured")
	}
	result, err := p.DetectAndParse(ctx, doc)
	if err != nil {
		return result, nil, err
	}
	candidates, err := BuildCandidates(result, sourceKey, nil)
	if err != nil {
		return result, nil, err
	}
	ids, err := p.candidates.CreateCandidates(ctx, candidates)
	if err != nil {
		return result, nil, err
	}
	p.logger.Info().Str("file", doc.Name).Bool("is_multiple", result.IsMultiple).Uints("candidate_ids", ids).Msg("简历已入库")
	return result, ids, nil
}
