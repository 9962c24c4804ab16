package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/parser"
	"ai-recruit-go/internal/storage"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/tracing"
)

// ErrPairBusy 同一 (候选人, 岗位) 对正在被其他进程计算
var ErrPairBusy = errors.New("该候选人与岗位的匹配正在计算中")

const defaultLockWait = 10 * time.Second

// MatchService 计算单个 (候选人, 岗位) 对的匹配结果并写入存储
type MatchService struct {
	candidates CandidateStore
	jobs       JobStore
	store      MatchStore
	evaluator  MatchEvaluator
	locker     PairLocker
	lockTTL    time.Duration
	lockWait   time.Duration
	logger     zerolog.Logger
}

type MatchServiceOption func(*MatchService)

// WithPairLock 计算期间持有 (候选人, 岗位) 互斥锁；locker 为 nil 时不加锁
func WithPairLock(locker PairLocker, ttl time.Duration) MatchServiceOption {
	return func(s *MatchService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithMatchLogger(l zerolog.Logger) MatchServiceOption {
	return func(s *MatchService) { s.logger = l }
}

func NewMatchService(candidates CandidateStore, jobs JobStore, store MatchStore, evaluator MatchEvaluator, opts ...MatchServiceOption) *MatchService {
	s := &MatchService{
		candidates: candidates,
		jobs:       jobs,
		store:      store,
		evaluator:  evaluator,
		lockTTL:    2 * time.Minute,
		lockWait:   defaultLockWait,
		logger:     logger.Named("match_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeMatch 候选人或岗位不存在返回 NotFoundError；模型失败返回 ModelInvocationError。
// 重复计算会原地更新同一条结果。
func (s *MatchService) ComputeMatch(ctx context.Context, candidateID, jobID uint) (*models.MatchResult, error) {
	ctx, span := tracer.Start(ctx, "MatchService.ComputeMatch", trace.WithAttributes(
		attribute.Int("candidate.id", int(candidateID)),
		attribute.Int("job.id", int(jobID)),
	))
	defer span.End()
	log := s.logger.With().Uint("candidate_id", candidateID).Uint("job_id", jobID).Logger()

	fail := func(err error, stage string) (*models.MatchResult, error) {
		tracing.RecordError(span, err, "", attribute.String("error.stage", stage))
		return nil, err
	}

	candidate, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return fail(err, "加载候选人失败")
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fail(err, "加载岗位失败")
	}

	release, err := s.lock(ctx, candidateID, jobID, log)
	if err != nil {
		return fail(err, "获取匹配锁失败")
	}
	defer release()

	rec := candidate.Record()
	posting := job.Posting()
	start := time.Now()
	analysis, err := s.evaluator.Evaluate(ctx, parser.CandidateText(rec), parser.JobText(posting))
	if err != nil {
		return fail(err, "匹配评估失败")
	}

	score := parser.NormalizeScore(analysis.Score)
	analysis.Score = score
	matched := parser.MatchedKeywords(rec.Skills, analysis.Strengths)
	missing := parser.MissingKeywords(posting.Keywords, analysis.Weaknesses)
	details := parser.FormatDetails(analysis)

	result, err := s.store.UpsertMatchResult(ctx, candidateID, jobID, score, matched, missing, details)
	if err != nil {
		return fail(err, "保存匹配结果失败")
	}
	span.SetAttributes(attribute.Float64("match.score", score))
	log.Info().Float64("score", score).Strs("matched", matched).Strs("missing", missing).
		Dur("elapsed", time.Since(start)).Msg("匹配完成")
	return result, nil
}

// lock Redis 不可用时不阻塞匹配，只记录告警；锁被占用超过等待时间返回 ErrPairBusy
func (s *MatchService) lock(ctx context.Context, candidateID, jobID uint, log zerolog.Logger) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := storage.MatchPairLockKey(candidateID, jobID)
	token, err := s.locker.WaitLock(ctx, key, s.lockTTL, s.lockWait)
	switch {
	case errors.Is(err, storage.ErrLockHeld):
		return nil, fmt.Errorf("%w (candidate=%d, job=%d)", ErrPairBusy, candidateID, jobID)
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("获取匹配锁失败，不加锁继续")
		return func() {}, nil
	}
	return func() {
		// 释放不受调用方取消影响
		if _, err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Msg("释放匹配锁失败")
		}
	}, nil
}
