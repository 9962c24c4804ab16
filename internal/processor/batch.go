package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/types"
)

const defaultRecommendLimit = 10

// BatchMatcher 候选人 × 岗位的批量匹配与推荐排序
type BatchMatcher struct {
	matcher      PairMatcher
	candidates   CandidateStore
	jobs         JobStore
	workers      int
	defaultLimit int
	logger       zerolog.Logger
}

type BatchOption func(*BatchMatcher)

// WithWorkers 并发计算的 pair 数，1 为顺序执行
func WithWorkers(n int) BatchOption {
	return func(b *BatchMatcher) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithDefaultLimit(n int) BatchOption {
	return func(b *BatchMatcher) {
		if n > 0 {
			b.defaultLimit = n
		}
	}
}

func WithBatchLogger(l zerolog.Logger) BatchOption {
	return func(b *BatchMatcher) { b.logger = l }
}

func NewBatchMatcher(matcher PairMatcher, candidates CandidateStore, jobs JobStore, opts ...BatchOption) *BatchMatcher {
	b := &BatchMatcher{
		matcher:      matcher,
		candidates:   candidates,
		jobs:         jobs,
		workers:      1,
		defaultLimit: defaultRecommendLimit,
		logger:       logger.Named("batch_matcher"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pair struct {
	candidateID, jobID uint
}

// RunBatch ID 为 nil 时取全部未删除候选人 / 全部 OPEN 岗位；显式传入空切片表示空集合。
// 单个 pair 失败只记录并计数，不会中断批次；只有解析 ID 集合失败才返回错误。
func (b *BatchMatcher) RunBatch(ctx context.Context, candidateIDs, jobIDs []uint) (types.BatchSummary, error) {
	ctx, span := tracer.Start(ctx, "BatchMatcher.RunBatch")
	defer span.End()

	var err error
	if candidateIDs == nil {
		if candidateIDs, err = b.candidates.ListCandidateIDs(ctx); err != nil {
			return types.BatchSummary{}, fmt.Errorf("查询候选人列表失败: %w", err)
		}
	}
	if jobIDs == nil {
		if jobIDs, err = b.jobs.ListOpenJobIDs(ctx); err != nil {
			return types.BatchSummary{}, fmt.Errorf("查询岗位列表失败: %w", err)
		}
	}

	pairs := make([]pair, 0, len(candidateIDs)*len(jobIDs))
	for _, c := range candidateIDs {
		for _, j := range jobIDs {
			pairs = append(pairs, pair{c, j})
		}
	}

	results := b.computeAll(ctx, pairs)
	summary := types.BatchSummary{Total: len(pairs), Completed: len(results)}
	span.SetAttributes(attribute.Int("batch.total", summary.Total), attribute.Int("batch.completed", summary.Completed))
	b.logger.Info().Int("total", summary.Total).Int("completed", summary.Completed).Msg("批量匹配完成")
	return summary, nil
}

// computeAll 有界并发执行，返回成功的结果（顺序不保证）
func (b *BatchMatcher) computeAll(ctx context.Context, pairs []pair) []*models.MatchResult {
	var (
		mu      sync.Mutex
		results = make([]*models.MatchResult, 0, len(pairs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, p := range pairs {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := b.matcher.ComputeMatch(gctx, p.candidateID, p.jobID)
			if err != nil {
				b.logger.Warn().Err(err).Uint("candidate_id", p.candidateID).Uint("job_id", p.jobID).Msg("pair 匹配失败，已跳过")
				return nil
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RecommendJobsForCandidate 对全部 OPEN 岗位计算匹配，按分数降序取前 limit 个
func (b *BatchMatcher) RecommendJobsForCandidate(ctx context.Context, candidateID uint, limit int) ([]*models.MatchResult, error) {
	if _, err := b.candidates.GetCandidate(ctx, candidateID); err != nil {
		return nil, err
	}
	jobIDs, err := b.jobs.ListOpenJobIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询岗位列表失败: %w", err)
	}
	pairs := make([]pair, 0, len(jobIDs))
	for _, j := range jobIDs {
		pairs = append(pairs, pair{candidateID, j})
	}
	return b.rank(b.computeAll(ctx, pairs), limit), nil
}

// RecommendCandidatesForJob 对全部候选人计算匹配，按分数降序取前 limit 个
func (b *BatchMatcher) RecommendCandidatesForJob(ctx context.Context, jobID uint, limit int) ([]*models.MatchResult, error) {
	if _, err := b.jobs.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	candidateIDs, err := b.candidates.ListCandidateIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	pairs := make([]pair, 0, len(candidateIDs))
	for _, c := range candidateIDs {
		pairs = append(pairs, pair{c, jobID})
	}
	return b.rank(b.computeAll(ctx, pairs), limit), nil
}

// rank 分数相同时按 ID 升序，保证结果稳定
func (b *BatchMatcher) rank(results []*models.MatchResult, limit int) []*models.MatchResult {
	if limit <= 0 {
		limit = b.defaultLimit
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].CandidateID != results[j].CandidateID {
			return results[i].CandidateID < results[j].CandidateID
		}
		return results[i].JobID < results[j].JobID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
