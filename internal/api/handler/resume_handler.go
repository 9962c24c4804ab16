package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/outbox"
	"ai-recruit-go/internal/storage"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/types"
)

// ResumeService 同步解析并入库
type ResumeService interface {
	ProcessAndStore(ctx context.Context, doc extract.Document, sourceKey string) (types.MultiResumeDetectionResult, []uint, error)
}

// ParseJobStore 异步解析任务的创建与查询
type ParseJobStore interface {
	CreateParseJob(ctx context.Context, job *models.ParseJob, msg *models.OutboxMessage) error
	GetParseJob(ctx context.Context, jobID string) (*models.ParseJob, error)
}

// CandidateReader 候选人查询
type CandidateReader interface {
	GetCandidate(ctx context.Context, id uint) (*models.Candidate, error)
}

// ResumeHandler 简历上传、解析与候选人查询
type ResumeHandler struct {
	cfg        *config.Config
	service    ResumeService
	documents  storage.DocumentStore // 可为 nil，此时异步上传不可用
	parseJobs  ParseJobStore
	candidates CandidateReader
	logger     zerolog.Logger
}

func NewResumeHandler(cfg *config.Config, service ResumeService, documents storage.DocumentStore, parseJobs ParseJobStore, candidates CandidateReader) *ResumeHandler {
	return &ResumeHandler{
		cfg:        cfg,
		service:    service,
		documents:  documents,
		parseJobs:  parseJobs,
		candidates: candidates,
		logger:     logger.Named("resume_handler"),
	}
}

// ParseResponse 同步解析结果
type ParseResponse struct {
	IsMultiple   bool                    `json:"isMultiple"`
	Count        int                     `json:"count"`
	Resumes      []types.CandidateRecord `json:"resumes"`
	CandidateIDs []uint                  `json:"candidateIds"`
}

// UploadResponse 异步上传受理结果
type UploadResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// readDocument 读取 multipart 的 file 字段；格式由 format 字段或文件扩展名决定
func (h *ResumeHandler) readDocument(c *app.RequestContext) (extract.Document, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return extract.Document{}, fmt.Errorf("缺少上传文件")
	}
	if limit := h.cfg.Server.MaxUploadBytes; limit > 0 && fileHeader.Size > int64(limit) {
		return extract.Document{}, fmt.Errorf("文件大小超过限制 (%d 字节)", limit)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return extract.Document{}, fmt.Errorf("打开上传文件失败")
	}
	defer f.Close()

	format := extract.ParseFormat(fileHeader.Filename)
	if declared := string(c.FormValue("format")); declared != "" {
		format = extract.ParseFormat(declared)
	}
	return extract.NewDocument(fileHeader.Filename, format, f)
}

// HandleParse 同步解析：提取、检测、解析后保存候选人
// POST /api/v1/resumes/parse
func (h *ResumeHandler) HandleParse(ctx context.Context, c *app.RequestContext) {
	doc, err := h.readDocument(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	start := time.Now()
	result, ids, err := h.service.ProcessAndStore(ctx, doc, "")
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	h.logger.Info().Str("file", doc.Name).Int("count", result.Count).Uints("candidate_ids", ids).
		Dur("elapsed", time.Since(start)).Msg("同步解析完成")

	c.JSON(consts.StatusOK, ParseResponse{
		IsMultiple:   result.IsMultiple,
		Count:        result.Count,
		Resumes:      result.Resumes,
		CandidateIDs: ids,
	})
}

// HandleUpload 文件写入对象存储，解析任务与队列消息同一事务落库，由 worker 异步处理
// POST /api/v1/resumes/upload
func (h *ResumeHandler) HandleUpload(ctx context.Context, c *app.RequestContext) {
	if h.documents == nil {
		c.JSON(consts.StatusServiceUnavailable, ErrorResponse{Code: CodeUnavailable, Message: "对象存储不可用，请使用同步解析接口"})
		return
	}
	doc, err := h.readDocument(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	// 无法识别的格式在受理时拒绝，避免产生注定失败的任务
	if doc.Format == extract.FormatUnknown {
		writeError(ctx, c, apperrors.NewExtractionError(doc.Name, "", apperrors.ErrUnsupportedFormat, "支持的格式: .txt .json .docx .pdf"))
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(ctx, c, fmt.Errorf("生成任务ID失败: %w", err))
		return
	}
	jobID := id.String()

	key, err := h.documents.PutDocument(ctx, jobID, doc.Name, doc.Data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}

	msg, err := outbox.NewMessage(jobID, models.EventParseRequested,
		h.cfg.RabbitMQ.ParseExchange, h.cfg.RabbitMQ.ParseRoutingKey,
		models.ParseJobMessage{JobID: jobID, Attempt: 1}, time.Now())
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	job := &models.ParseJob{
		JobID:     jobID,
		ObjectKey: key,
		FileName:  doc.Name,
		Format:    string(doc.Format),
		Status:    models.ParseJobQueued,
	}
	if err := h.parseJobs.CreateParseJob(ctx, job, msg); err != nil {
		writeError(ctx, c, err)
		return
	}

	h.logger.Info().Str("parse_job_id", jobID).Str("object_key", key).Msg("解析任务已提交")
	c.JSON(consts.StatusAccepted, UploadResponse{JobID: jobID, Status: job.Status})
}

// HandleGetParseJob GET /api/v1/resumes/jobs/:id
func (h *ResumeHandler) HandleGetParseJob(ctx context.Context, c *app.RequestContext) {
	job, err := h.parseJobs.GetParseJob(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{
		"jobId":        job.JobID,
		"status":       job.Status,
		"attempts":     job.Attempts,
		"fileName":     job.FileName,
		"lastError":    job.LastError,
		"candidateIds": job.CandidateIDs(),
		"createdAt":    job.CreatedAt,
		"updatedAt":    job.UpdatedAt,
	})
}

// HandleGetCandidate GET /api/v1/candidates/:id
func (h *ResumeHandler) HandleGetCandidate(ctx context.Context, c *app.RequestContext) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	candidate, err := h.candidates.GetCandidate(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{
		"id":            candidate.ID,
		"record":        candidate.Record(),
		"pendingManual": candidate.PendingManual,
		"parseJobId":    candidate.ParseJobID,
		"createdAt":     candidate.CreatedAt,
	})
}

func uintParam(c *app.RequestContext, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		badRequest(c, fmt.Sprintf("无效的 %s", name))
		return 0, false
	}
	return uint(v), true
}
