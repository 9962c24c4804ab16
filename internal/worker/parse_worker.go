package worker // 异步简历解析任务的消费端

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/outbox"
	"ai-recruit-go/internal/processor"
	"ai-recruit-go/internal/storage"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/tracing"
	"ai-recruit-go/internal/types"
)

var tracer = otel.Tracer("ai-recruit-go/worker")

// ParseJobStore 解析任务状态流转
type ParseJobStore interface {
	StartParseJob(ctx context.Context, jobID string) (*models.ParseJob, bool, error)
	CompleteParseJob(ctx context.Context, jobID string, candidates []*models.Candidate) ([]uint, error)
	FailParseJob(ctx context.Context, jobID string, cause error, retry *models.OutboxMessage) error
}

// DocumentParser 一个文档到若干候选人记录
type DocumentParser interface {
	DetectAndParse(ctx context.Context, doc extract.Document) (types.MultiResumeDetectionResult, error)
}

// JobLocker 防止同一任务被重复投递后并发处理
type JobLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// ParseWorker 处理解析队列中的消息
type ParseWorker struct {
	jobs      ParseJobStore
	documents storage.DocumentStore
	parser    DocumentParser
	locker    JobLocker
	lockTTL   time.Duration

	exchange      string
	routingKey    string
	maxAttempts   int
	retryInterval time.Duration

	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*ParseWorker)

// WithJobLock 处理期间持有任务锁；nil 表示不加锁
func WithJobLock(l JobLocker, ttl time.Duration) Option {
	return func(w *ParseWorker) {
		w.locker = l
		if ttl > 0 {
			w.lockTTL = ttl
		}
	}
}

// WithRetry 首次重试间隔 interval，之后每次翻倍，共最多 maxAttempts 次尝试
func WithRetry(maxAttempts int, interval time.Duration) Option {
	return func(w *ParseWorker) {
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
		if interval > 0 {
			w.retryInterval = interval
		}
	}
}

func WithRoute(exchange, routingKey string) Option {
	return func(w *ParseWorker) {
		w.exchange = exchange
		w.routingKey = routingKey
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(w *ParseWorker) { w.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(w *ParseWorker) { w.now = now }
}

func NewParseWorker(jobs ParseJobStore, documents storage.DocumentStore, parser DocumentParser, opts ...Option) *ParseWorker {
	w := &ParseWorker{
		jobs:          jobs,
		documents:     documents,
		parser:        parser,
		lockTTL:       5 * time.Minute,
		exchange:      "resume.parse.exchange",
		routingKey:    "resume.parse",
		maxAttempts:   3,
		retryInterval: 5 * time.Second,
		now:           time.Now,
		logger:        logger.Named("parse_worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewFromConfig 按 rabbitmq 配置段设置路由与重试参数
func NewFromConfig(cfg *config.RabbitMQConfig, jobs ParseJobStore, documents storage.DocumentStore, parser DocumentParser, opts ...Option) *ParseWorker {
	base := []Option{
		WithRoute(cfg.ParseExchange, cfg.ParseRoutingKey),
		WithRetry(cfg.MaxAttempts, config.GetDuration(cfg.RetryInterval, 5*time.Second)),
	}
	return NewParseWorker(jobs, documents, parser, append(base, opts...)...)
}

// Backoff 第 attempt 次失败后的等待时间
func (w *ParseWorker) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return w.retryInterval * time.Duration(1<<uint(attempt-1))
}

// Handle 作为消费回调：返回 false 时消息重新入队。
// 只有任务状态无法写回数据库时才返回 false，其余失败都已记录在任务上。
func (w *ParseWorker) Handle(ctx context.Context, body []byte) bool {
	var msg models.ParseJobMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.JobID == "" {
		w.logger.Error().Err(err).Str("body", string(body)).Msg("无法识别的解析消息，已丢弃")
		return true
	}
	log := w.logger.With().Str("parse_job_id", msg.JobID).Int("attempt", msg.Attempt).Logger()

	release, ok := w.lock(ctx, msg.JobID, log)
	if !ok {
		return true
	}
	defer release()

	err := w.Process(ctx, msg.JobID)
	if errors.Is(err, errStateUpdate) {
		log.Error().Err(err).Msg("解析任务状态写回失败，消息重新入队")
		return false
	}
	return true
}

var errStateUpdate = errors.New("更新解析任务状态失败")

// Process 执行一次解析尝试并记录结果
func (w *ParseWorker) Process(ctx context.Context, jobID string) error {
	ctx, span := tracer.Start(ctx, "ParseWorker.Process", trace.WithAttributes(attribute.String("parse_job.id", jobID)))
	defer span.End()
	log := w.logger.With().Str("parse_job_id", jobID).Logger()

	job, started, err := w.jobs.StartParseJob(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			log.Warn().Msg("解析任务不存在，忽略消息")
			return nil
		}
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("%w: %v", errStateUpdate, err)
	}
	if !started {
		log.Info().Msg("解析任务已完成，忽略重复消息")
		return nil
	}
	span.SetAttributes(attribute.Int("parse_job.attempt", job.Attempts))

	ids, err := w.run(ctx, job)
	if err == nil {
		span.SetAttributes(attribute.Int("candidates", len(ids)))
		log.Info().Uints("candidate_ids", ids).Int("attempt", job.Attempts).Msg("解析任务完成")
		return nil
	}

	tracing.RecordError(span, err, "")
	retry, rerr := w.retryMessage(job, err)
	if rerr != nil {
		log.Error().Err(rerr).Msg("构造重试消息失败")
	}
	if ferr := w.jobs.FailParseJob(ctx, jobID, err, retry); ferr != nil {
		return fmt.Errorf("%w: %v", errStateUpdate, ferr)
	}
	var ev *zerolog.Event
	if retry != nil {
		ev = log.Warn().Time("retry_at", retry.AvailableAt)
	} else {
		ev = log.Error()
	}
	ev.Err(err).Int("attempt", job.Attempts).Bool("will_retry", retry != nil).Msg("解析任务失败")
	return err
}

func (w *ParseWorker) run(ctx context.Context, job *models.ParseJob) ([]uint, error) {
	data, err := w.documents.GetDocument(ctx, job.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("下载简历文件失败: %w", err)
	}
	format := extract.Format(job.Format)
	if format == "" {
		format = extract.ParseFormat(job.FileName)
	}
	doc := extract.Document{Name: job.FileName, Format: format, Data: data}

	result, err := w.parser.DetectAndParse(ctx, doc)
	if err != nil {
		return nil, err
	}
	candidates, err := processor.BuildCandidates(result, job.ObjectKey, &job.JobID)
	if err != nil {
		return nil, err
	}
	ids, err := w.jobs.CompleteParseJob(ctx, job.JobID, candidates)
	if err != nil {
		return nil, fmt.Errorf("保存解析结果失败: %w", err)
	}
	return ids, nil
}

// retryMessage 文件本身无法提取时重试没有意义
func (w *ParseWorker) retryMessage(job *models.ParseJob, cause error) (*models.OutboxMessage, error) {
	if apperrors.IsExtraction(cause) || job.Attempts >= w.maxAttempts {
		return nil, nil
	}
	at := w.now().Add(w.Backoff(job.Attempts))
	return outbox.NewMessage(job.JobID, models.EventParseRetry, w.exchange, w.routingKey,
		models.ParseJobMessage{JobID: job.JobID, Attempt: job.Attempts + 1}, at)
}

// lock 锁被占用说明另一个消费者正在处理同一任务，当前消息直接确认
func (w *ParseWorker) lock(ctx context.Context, jobID string, log zerolog.Logger) (func(), bool) {
	if w.locker == nil {
		return func() {}, true
	}
	key := storage.ParseJobLockKey(jobID)
	token, err := w.locker.AcquireLock(ctx, key, w.lockTTL)
	switch {
	case errors.Is(err, storage.ErrLockHeld):
		log.Info().Msg("解析任务正在被其他消费者处理")
		return nil, false
	case err != nil:
		log.Warn().Err(err).Msg("获取解析任务锁失败，不加锁继续")
		return func() {}, true
	}
	return func() {
		if _, err := w.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Msg("释放解析任务锁失败")
		}
	}, true
}
