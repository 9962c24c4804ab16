package outbox // 发件箱模式：业务数据与待发布消息同一事务落库，由中继异步投递

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/storage/models"
)

const (
	defaultPollingInterval = 2 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5 // 单条消息发布失败的最大次数
)

// Publisher 消息代理的发布端
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// NewMessage 构造一条待发布消息，availableAt 之前中继不会投递
func NewMessage(aggregateID, eventType, exchange, routingKey string, payload any, availableAt time.Time) (*models.OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化发件箱消息失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(body),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxPending,
		AvailableAt:      availableAt,
	}, nil
}

// MessageRelay 轮询 outbox 表并将到期消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	now             func() time.Time
	tracer          trace.Tracer
}

type Option func(*MessageRelay)

func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *MessageRelay) { r.logger = l }
}

// WithClock 测试中固定当前时间
func WithClock(now func() time.Time) Option {
	return func(r *MessageRelay) { r.now = now }
}

func NewMessageRelay(db *gorm.DB, publisher Publisher, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger.Named("outbox"),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		now:             time.Now,
		tracer:          otel.Tracer("ai-recruit-go/outbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 阻塞轮询直到 ctx 取消
func (r *MessageRelay) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.pollingInterval).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("MessageRelay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessPending(ctx); err != nil {
				r.logger.Error().Err(err).Msg("处理发件箱消息失败")
			}
		}
	}
}

// ProcessPending 发布一批到期的 PENDING 消息，返回成功发布的条数
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 让多个中继实例互不阻塞
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND available_at <= ?", models.OutboxPending, r.now()).
		Order("available_at asc").Order("id asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, fmt.Errorf("查询待发布消息失败: %w", err)
	}
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	sent := 0
	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = models.OutboxFailed
			}
			r.logger.Warn().Err(err).Uint64("id", msg.ID).Str("aggregate_id", msg.AggregateID).
				Int("retry", msg.RetryCount).Msg("发布消息失败")
		} else {
			now := r.now()
			msg.Status = models.OutboxSent
			msg.ProcessedAt = &now
			msg.ErrorMessage = ""
			sent++
		}
		// 更新失败时整批回滚，下一轮重新拾取
		if err := tx.Save(msg).Error; err != nil {
			return 0, fmt.Errorf("更新发件箱消息 %d 失败: %w", msg.ID, err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	r.logger.Debug().Int("fetched", len(messages)).Int("sent", sent).Msg("发件箱批次完成")
	return sent, nil
}
