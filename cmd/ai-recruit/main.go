package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ai-recruit-go/internal/bootstrap"
	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/tracing"
)

var rootCmd = &cobra.Command{
	Use:           "ai-recruit",
	Short:         "简历解析与人岗匹配服务",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// 所有子命令共用的参数
var (
	configPath string
	logLevel   string
)

func bindCommonFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径，为空时只使用默认值与环境变量")
	fs.StringVar(&logLevel, "log-level", "", "覆盖配置中的日志级别 (debug|info|warn|error)")
}

func init() {
	bindCommonFlags(rootCmd.PersistentFlags())
}

// session 一次命令执行所需的组件与清理函数
type session struct {
	app     *bootstrap.App
	cleanup func()
}

// setup 加载配置并初始化日志、链路追踪与业务组件
func setup(ctx context.Context) (*session, error) {
	path := configPath
	if _, err := os.Stat(path); path != "" && err != nil {
		path = ""
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}

	logCloser := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		_ = logCloser.Close()
		return nil, err
	}

	return &session{
		app: app,
		cleanup: func() {
			app.Close()
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("关闭链路追踪失败")
			}
			closeQuietly(logCloser)
		},
	}, nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
