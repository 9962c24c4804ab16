package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/types"
)

// JobStore 岗位的创建与查询
type JobStore interface {
	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id uint) (*models.Job, error)
}

// Matcher 单对匹配
type Matcher interface {
	ComputeMatch(ctx context.Context, candidateID, jobID uint) (*models.MatchResult, error)
}

// Recommender 批量匹配与推荐
type Recommender interface {
	RunBatch(ctx context.Context, candidateIDs, jobIDs []uint) (types.BatchSummary, error)
	RecommendJobsForCandidate(ctx context.Context, candidateID uint, limit int) ([]*models.MatchResult, error)
	RecommendCandidatesForJob(ctx context.Context, jobID uint, limit int) ([]*models.MatchResult, error)
}

// MatchHandler 岗位、匹配计算与推荐
type MatchHandler struct {
	jobs        JobStore
	matcher     Matcher
	recommender Recommender
}

func NewMatchHandler(jobs JobStore, matcher Matcher, recommender Recommender) *MatchHandler {
	return &MatchHandler{jobs: jobs, matcher: matcher, recommender: recommender}
}

// CreateJobRequest 新建岗位
type CreateJobRequest struct {
	Title        string   `json:"title"`
	Requirements string   `json:"requirements"`
	Keywords     []string `json:"keywords"`
}

// MatchRequest 单对匹配
type MatchRequest struct {
	CandidateID uint `json:"candidateId"`
	JobID       uint `json:"jobId"`
}

// BatchRequest 为空的列表表示全部
type BatchRequest struct {
	CandidateIDs []uint `json:"candidateIds"`
	JobIDs       []uint `json:"jobIds"`
}

// MatchView 匹配结果的对外表示
type MatchView struct {
	CandidateID     uint     `json:"candidateId"`
	JobID           uint     `json:"jobId"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matchedKeywords"`
	MissingKeywords []string `json:"missingKeywords"`
	Details         string   `json:"details"`
}

func toView(r *models.MatchResult) MatchView {
	return MatchView{
		CandidateID:     r.CandidateID,
		JobID:           r.JobID,
		Score:           r.Score,
		MatchedKeywords: r.MatchedKeywords(),
		MissingKeywords: r.MissingKeywords(),
		Details:         r.Details,
	}
}

func toViews(rs []*models.MatchResult) []MatchView {
	out := make([]MatchView, 0, len(rs))
	for _, r := range rs {
		out = append(out, toView(r))
	}
	return out
}

func jobView(j *models.Job) map[string]any {
	return map[string]any{
		"id":           j.ID,
		"title":        j.Title,
		"requirements": j.Requirements,
		"keywords":     j.Keywords(),
		"status":       j.Status,
		"createdAt":    j.CreatedAt,
	}
}

// HandleCreateJob POST /api/v1/jobs
func (h *MatchHandler) HandleCreateJob(ctx context.Context, c *app.RequestContext) {
	var req CreateJobRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "请求体格式错误")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		badRequest(c, "title 不能为空")
		return
	}
	job := &models.Job{
		Title:        strings.TrimSpace(req.Title),
		Requirements: req.Requirements,
		KeywordsJSON: models.EncodeStrings(req.Keywords),
	}
	if err := h.jobs.CreateJob(ctx, job); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, jobView(job))
}

// HandleGetJob GET /api/v1/jobs/:id
func (h *MatchHandler) HandleGetJob(ctx context.Context, c *app.RequestContext) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, jobView(job))
}

// HandleComputeMatch POST /api/v1/matches
func (h *MatchHandler) HandleComputeMatch(ctx context.Context, c *app.RequestContext) {
	var req MatchRequest
	if err := c.BindJSON(&req); err != nil || req.CandidateID == 0 || req.JobID == 0 {
		badRequest(c, "candidateId 与 jobId 必填")
		return
	}
	r, err := h.matcher.ComputeMatch(ctx, req.CandidateID, req.JobID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, toView(r))
}

// HandleBatch POST /api/v1/matches/batch
func (h *MatchHandler) HandleBatch(ctx context.Context, c *app.RequestContext) {
	var req BatchRequest
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&req); err != nil {
			badRequest(c, "请求体格式错误")
			return
		}
	}
	summary, err := h.recommender.RunBatch(ctx, req.CandidateIDs, req.JobIDs)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, summary)
}

// HandleRecommendJobs GET /api/v1/candidates/:id/recommendations?limit=
func (h *MatchHandler) HandleRecommendJobs(ctx context.Context, c *app.RequestContext) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	rs, err := h.recommender.RecommendJobsForCandidate(ctx, id, queryLimit(c))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{"candidateId": id, "results": toViews(rs)})
}

// HandleRecommendCandidates GET /api/v1/jobs/:id/recommendations?limit=
func (h *MatchHandler) HandleRecommendCandidates(ctx context.Context, c *app.RequestContext) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	rs, err := h.recommender.RecommendCandidatesForJob(ctx, id, queryLimit(c))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{"jobId": id, "results": toViews(rs)})
}

// queryLimit 缺省或非法时返回 0，由推荐逻辑取默认值
func queryLimit(c *app.RequestContext) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
