package worker

import (
	"context"
	"fmt"
)

// Consumer 队列消费端，handler 返回 false 时消息重新入队
type Consumer interface {
	StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler func(context.Context, []byte) bool) (<-chan struct{}, error)
}

// Run 启动 n 个消费协程并阻塞到全部退出
func (w *ParseWorker) Run(ctx context.Context, consumer Consumer, queue string, prefetch, n int) error {
	if n < 1 {
		n = 1
	}
	dones := make([]<-chan struct{}, 0, n)
	for i := 0; i < n; i++ {
		done, err := consumer.StartConsumer(ctx, queue, prefetch, w.Handle)
		if err != nil {
			return fmt.Errorf("启动第%d个消费者失败: %w", i+1, err)
		}
		dones = append(dones, done)
	}
	w.logger.Info().Str("queue", queue).Int("consumers", n).Msg("解析 worker 已启动")
	for _, done := range dones {
		<-done
	}
	return ctx.Err()
}
