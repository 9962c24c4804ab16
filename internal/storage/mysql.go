package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("ai-recruit-go/storage/mysql")

type spanKey struct{}

// GormTracingPlugin 为每条 SQL 生成一个 OpenTelemetry span
type GormTracingPlugin struct {
	tracer   trace.Tracer
	dbName   string
	dbSystem attribute.KeyValue
}

func NewGormTracingPlugin(dbName string, system attribute.KeyValue) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName, dbSystem: system}
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册 CRUD 前后回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(string, func(*gorm.DB)) error
		after    func(string, func(*gorm.DB)) error
	}{
		{"CREATE", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"RAW", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.register("otel:before_"+h.op, p.before(h.op)); err != nil {
			return err
		}
		if err := h.after("otel:after_"+h.op, p.after); err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ctx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				p.dbSystem,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			))
		db.Statement.Context = context.WithValue(ctx, spanKey{}, span)
	}
}

func (p *GormTracingPlugin) after(db *gorm.DB) {
	span, ok := db.Statement.Context.Value(spanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if sql := db.Statement.SQL.String(); sql != "" {
		span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
	}
	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		// 未找到属于正常业务分支
		span.SetAttributes(attribute.String("error.type", "record_not_found"))
		span.SetStatus(codes.Ok, "record not found")
	default:
		tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
	}
}

// MySQL 关系数据库访问层：候选人、岗位、匹配结果、解析任务
type MySQL struct {
	db     *gorm.DB
	dbName string
}

// NewMySQL 连接 MySQL，按配置决定是否自动迁移
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	m, err := OpenDatabase(mysql.Open(dsn), cfg.Database, semconv.DBSystemMySQL, cfg.LogLevel, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)
	return m, nil
}

// OpenDatabase 使用任意 gorm 方言打开数据库（测试中使用 SQLite）
func OpenDatabase(dialector gorm.Dialector, dbName string, system attribute.KeyValue, logLevel int, autoMigrate bool) (*MySQL, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(gormLogLevel(logLevel)),
		NowFunc:                                  func() time.Time { return time.Now().Local() },
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := db.Use(NewGormTracingPlugin(dbName, system)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, dbName: dbName}
	if autoMigrate {
		if err := m.AutoMigrate(); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

func gormLogLevel(level int) logger.LogLevel {
	switch level {
	case 1:
		return logger.Silent
	case 2:
		return logger.Error
	case 3:
		return logger.Warn
	case 4:
		return logger.Info
	default:
		return logger.Warn
	}
}

// AutoMigrate 迁移全部表结构，迁移期间关闭 SQL 日志
func (m *MySQL) AutoMigrate() error {
	silent := logger.New(log.New(log.Writer(), "", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Silent,
		IgnoreRecordNotFoundError: true,
	})
	if err := m.db.Session(&gorm.Session{Logger: silent}).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

func (m *MySQL) DB() *gorm.DB {
	return m.db
}

func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// Ping 健康检查
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound(entity, id)
	}
	return fmt.Errorf("查询%s %d 失败: %w", entity, id, err)
}

// ---- 候选人 ----

func (m *MySQL) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	return m.db.WithContext(ctx).Create(c).Error
}

// CreateCandidates 在一个事务内保存全部候选人，任一失败则全部回滚
func (m *MySQL) CreateCandidates(ctx context.Context, candidates []*models.Candidate) ([]uint, error) {
	var ids []uint
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = createCandidates(tx, candidates)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func createCandidates(tx *gorm.DB, candidates []*models.Candidate) ([]uint, error) {
	ids := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		if err := tx.Create(c).Error; err != nil {
			return nil, fmt.Errorf("保存候选人失败: %w", err)
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// GetCandidate 不存在或已软删除时返回 NotFoundError
func (m *MySQL) GetCandidate(ctx context.Context, id uint) (*models.Candidate, error) {
	var c models.Candidate
	if err := m.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "candidate", id)
	}
	return &c, nil
}

// ListCandidateIDs 全部未删除的候选人
func (m *MySQL) ListCandidateIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := m.db.WithContext(ctx).Model(&models.Candidate{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// ---- 岗位 ----

func (m *MySQL) CreateJob(ctx context.Context, j *models.Job) error {
	if j.Status == "" {
		j.Status = models.JobStatusOpen
	}
	return m.db.WithContext(ctx).Create(j).Error
}

func (m *MySQL) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var j models.Job
	if err := m.db.WithContext(ctx).First(&j, id).Error; err != nil {
		return nil, notFound(err, "job", id)
	}
	return &j, nil
}

// ListOpenJobIDs 全部未删除且状态为 OPEN 的岗位
func (m *MySQL) ListOpenJobIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := m.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ?", models.JobStatusOpen).
		Order("id").Pluck("id", &ids).Error
	return ids, err
}

// ---- 匹配结果 ----

// UpsertMatchResult 按 (candidate_id, job_id) 插入或原地更新，重复计算不会产生重复行
func (m *MySQL) UpsertMatchResult(ctx context.Context, candidateID, jobID uint, score float64, matched, missing []string, details string) (*models.MatchResult, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertMatchResult", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.name", m.dbName),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "match_results"),
		attribute.Int("candidate.id", int(candidateID)),
		attribute.Int("job.id", int(jobID)),
	)

	row := &models.MatchResult{
		CandidateID:         candidateID,
		JobID:               jobID,
		Score:               score,
		MatchedKeywordsJSON: models.EncodeStrings(matched),
		MissingKeywordsJSON: models.EncodeStrings(missing),
		Details:             details,
	}
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "candidate_id"}, {Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "matched_keywords_json", "missing_keywords_json", "details", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("保存匹配结果失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	// 冲突更新时 row.ID 不可靠，重新读取
	return m.GetMatchResult(ctx, candidateID, jobID)
}

func (m *MySQL) GetMatchResult(ctx context.Context, candidateID, jobID uint) (*models.MatchResult, error) {
	var r models.MatchResult
	err := m.db.WithContext(ctx).Where("candidate_id = ? AND job_id = ?", candidateID, jobID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("match_result", candidateID)
		}
		return nil, err
	}
	return &r, nil
}

// ---- 解析任务 ----

// CreateParseJob 解析任务与其发件箱消息在同一事务内写入
func (m *MySQL) CreateParseJob(ctx context.Context, job *models.ParseJob, msg *models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("创建解析任务失败: %w", err)
		}
		if msg != nil {
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("写入发件箱失败: %w", err)
			}
		}
		return nil
	})
}

func (m *MySQL) GetParseJob(ctx context.Context, jobID string) (*models.ParseJob, error) {
	var j models.ParseJob
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("parse job %s: %w", jobID, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &j, nil
}

// StartParseJob 标记为 RUNNING 并累加尝试次数；已成功的任务返回 false
func (m *MySQL) StartParseJob(ctx context.Context, jobID string) (*models.ParseJob, bool, error) {
	var job models.ParseJob
	started := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("job_id = ?", jobID).First(&job).Error; err != nil {
			return err
		}
		if job.Status == models.ParseJobSucceeded {
			return nil
		}
		job.Status = models.ParseJobRunning
		job.Attempts++
		started = true
		return tx.Model(&job).Updates(map[string]any{"status": job.Status, "attempts": job.Attempts}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("parse job %s: %w", jobID, apperrors.ErrNotFound)
		}
		return nil, false, err
	}
	return &job, started, nil
}

// CompleteParseJob 保存候选人并把任务标记为成功
func (m *MySQL) CompleteParseJob(ctx context.Context, jobID string, candidates []*models.Candidate) ([]uint, error) {
	var ids []uint
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if ids, err = createCandidates(tx, candidates); err != nil {
			return err
		}
		return tx.Model(&models.ParseJob{}).Where("job_id = ?", jobID).Updates(map[string]any{
			"status":             models.ParseJobSucceeded,
			"last_error":         "",
			"candidate_ids_json": models.EncodeUints(ids),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FailParseJob retry 非空时任务回到 QUEUED 并写入延迟发布的重试消息，否则标记为 FAILED
func (m *MySQL) FailParseJob(ctx context.Context, jobID string, cause error, retry *models.OutboxMessage) error {
	status := models.ParseJobFailed
	if retry != nil {
		status = models.ParseJobQueued
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ParseJob{}).Where("job_id = ?", jobID).Updates(map[string]any{
			"status":     status,
			"last_error": cause.Error(),
		}).Error; err != nil {
			return err
		}
		if retry != nil {
			return tx.Create(retry).Error
		}
		return nil
	})
}
