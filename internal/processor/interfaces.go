package processor

import (
	"context"
	"encoding/json"
	"time"

	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/parser"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/types"
)

//
// 解析相关接口
//

// ResumeParser 单简历路径：提取（含扫描件降级）+ 文本解析
type ResumeParser interface {
	ResolveText(ctx context.Context, doc extract.Document) (parser.TextResolution, error)
	ParseText(ctx context.Context, text string) (types.CandidateRecord, error)
}

// ResumeSplitter 多简历检测与拆分
type ResumeSplitter interface {
	Detect(ctx context.Context, text string) parser.DetectionVerdict
	Split(ctx context.Context, text string) ([]json.RawMessage, error)
}

// MatchEvaluator 一次补全请求评估候选人与岗位
type MatchEvaluator interface {
	Evaluate(ctx context.Context, candidateText, jobText string) (types.MatchAnalysis, error)
}

//
// 存储相关接口
//

// CandidateStore 候选人读写
type CandidateStore interface {
	CreateCandidates(ctx context.Context, candidates []*models.Candidate) ([]uint, error)
	GetCandidate(ctx context.Context, id uint) (*models.Candidate, error)
	ListCandidateIDs(ctx context.Context) ([]uint, error)
}

// JobStore 岗位读取
type JobStore interface {
	GetJob(ctx context.Context, id uint) (*models.Job, error)
	ListOpenJobIDs(ctx context.Context) ([]uint, error)
}

// MatchStore 匹配结果按 (candidateID, jobID) 幂等写入
type MatchStore interface {
	UpsertMatchResult(ctx context.Context, candidateID, jobID uint, score float64, matched, missing []string, details string) (*models.MatchResult, error)
}

// PairLocker 分布式互斥锁
type PairLocker interface {
	WaitLock(ctx context.Context, key string, ttl, wait time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// PairMatcher 单个 (候选人, 岗位) 对的匹配，批量编排只依赖它
type PairMatcher interface {
	ComputeMatch(ctx context.Context, candidateID, jobID uint) (*models.MatchResult, error)
}
