package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ai-recruit-go/internal/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "消费解析队列，异步处理上传的简历",
	RunE:  runWorker,
}

var workerCount int

func init() {
	workerCmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "并发消费者数量，覆盖 rabbitmq.workers")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()
	app := s.app

	mq := app.Storage.RabbitMQ
	if mq == nil {
		return errors.New("RabbitMQ 未配置或连接失败")
	}
	if err := mq.DeclareParseTopology(); err != nil {
		return err
	}
	w, err := app.ParseWorker()
	if err != nil {
		return err
	}

	// worker 也运行中继，重试消息写入发件箱后由它投递
	go app.Relay().Run(ctx)

	rc := app.Config.RabbitMQ
	n := rc.Workers
	if workerCount > 0 {
		n = workerCount
	}
	logger.Info().Str("queue", rc.ParseQueue).Int("workers", n).Msg("解析 worker 启动")
	if err := w.Run(ctx, mq, rc.ParseQueue, rc.PrefetchCount, n); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("解析 worker 已退出")
	return nil
}
