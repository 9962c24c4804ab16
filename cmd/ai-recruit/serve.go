package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ai-recruit-go/internal/api/handler"
	"ai-recruit-go/internal/api/router"
	"ai-recruit-go/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP API 服务（同时运行发件箱中继）",
	RunE:  runServe,
}

var serveAddress string

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "监听地址，覆盖 server.address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()
	app := s.app
	if serveAddress != "" {
		app.Config.Server.Address = serveAddress
	}

	checks := map[string]handler.Pinger{"mysql": app.Storage.MySQL}
	if app.Storage.Redis != nil {
		checks["redis"] = app.Storage.Redis
	}
	db := app.Storage.MySQL
	h := router.NewServer(app.Config, router.Handlers{
		Resume: handler.NewResumeHandler(app.Config, app.Processor, app.Documents(), db, db),
		Match:  handler.NewMatchHandler(db, app.Matcher, app.Batch),
		Health: handler.NewHealthHandler(checks),
	})

	if relay := app.Relay(); relay != nil {
		if err := app.Storage.RabbitMQ.DeclareParseTopology(); err != nil {
			logger.Warn().Err(err).Msg("声明解析队列失败")
		}
		go relay.Run(ctx)
	} else {
		logger.Warn().Msg("RabbitMQ 未连接，发件箱消息将暂存在数据库中")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP 服务关闭失败")
		}
	}()

	logger.Info().Str("address", app.Config.Server.Address).Msg("HTTP 服务启动")
	if err := h.Run(); err != nil {
		return err
	}
	logger.Info().Msg("优雅退出完成")
	return nil
}
