package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/logger"
)

// MessageQueue 发件箱中继依赖的发布接口
type MessageQueue interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data any, persistent bool) error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ 提供消息队列功能
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool

	mu       sync.Mutex
	declared map[string]bool // exchange / queue / binding 已声明缓存

	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
	logger       zerolog.Logger
}

// NewRabbitMQ 连接 RabbitMQ 并声明解析任务的交换机与队列
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]bool),
		cfg:      cfg,
		logger:   logger.Named("rabbitmq"),
	}
	mq.channelPool = sync.Pool{
		New: func() any {
			ch, errPool := conn.Channel()
			if errPool != nil {
				mq.logger.Error().Err(errPool).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	if err := mq.DeclareParseTopology(); err != nil {
		conn.Close()
		return nil, err
	}
	mq.logger.Info().Str("exchange", cfg.ParseExchange).Str("queue", cfg.ParseQueue).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch, _ := r.channelPool.Get().(*amqp.Channel)
	if ch == nil || ch.IsClosed() {
		newCh, err := r.conn.Channel()
		if err != nil {
			r.logger.Error().Err(err).Msg("创建新RabbitMQ通道失败")
			return nil
		}
		return newCh
	}
	return ch
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// DeclareParseTopology direct 交换机 + 持久化队列 + 绑定
func (r *RabbitMQ) DeclareParseTopology() error {
	if err := r.EnsureExchange(r.cfg.ParseExchange, amqp.ExchangeDirect, true); err != nil {
		return err
	}
	if err := r.EnsureQueue(r.cfg.ParseQueue, true); err != nil {
		return err
	}
	return r.BindQueue(r.cfg.ParseQueue, r.cfg.ParseExchange, r.cfg.ParseRoutingKey)
}

func (r *RabbitMQ) once(key string, declare func(ch *amqp.Channel) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[key] {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)
	if err := declare(ch); err != nil {
		return err
	}
	r.declared[key] = true
	return nil
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	return r.once("exchange:"+exchangeName, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("声明exchange失败: %w", err)
		}
		return nil
	})
}

// EnsureQueue 确保队列存在
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	return r.once("queue:"+queueName, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(queueName, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("声明队列失败: %w", err)
		}
		return nil
	})
}

// BindQueue 绑定队列到exchange
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	key := fmt.Sprintf("binding:%s:%s:%s", exchangeName, queueName, routingKey)
	return r.once(key, func(ch *amqp.Channel) error {
		if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
			return fmt.Errorf("绑定队列到exchange失败: %w", err)
		}
		return nil
	})
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}
	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data any, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, exchangeName, routingKey, jsonData, persistent)
}

// StartConsumer 启动消费协程；handler 返回 true 确认，false 拒绝并重新入队。
// ctx 取消后消费协程退出，返回的通道随之关闭。
func (r *RabbitMQ) StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler func(context.Context, []byte) bool) (<-chan struct{}, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ch.Close()
		r.logger.Info().Str("queue", queueName).Int("prefetch", prefetchCount).Msg("RabbitMQ消费者已启动")

		for {
			select {
			case <-ctx.Done():
				r.logger.Info().Str("queue", queueName).Msg("RabbitMQ消费者已停止")
				return
			case delivery, ok := <-deliveries:
				if !ok {
					r.logger.Warn().Str("queue", queueName).Msg("RabbitMQ通道已关闭")
					return
				}
				if handler(ctx, delivery.Body) {
					if err := delivery.Ack(false); err != nil {
						r.logger.Error().Err(err).Msg("确认消息失败")
					}
				} else if err := delivery.Nack(false, true); err != nil {
					r.logger.Error().Err(err).Msg("拒绝消息失败")
				}
			}
		}
	}()
	return done, nil
}
