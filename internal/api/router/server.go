package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzlogger "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/logger"
)

// NewServer 创建带链路追踪的 Hertz 服务并注册路由，hlog 输出到全局 zerolog
func NewServer(cfg *config.Config, hs Handlers) *server.Hertz {
	hlog.SetLogger(hertzlogger.From(logger.Logger))

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(cfg.Server.MaxUploadBytes+(1<<20)),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	RegisterRoutes(h, cfg, hs)
	return h
}
