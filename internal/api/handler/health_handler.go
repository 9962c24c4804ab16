package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Pinger 依赖的连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 依次检查各依赖，任一失败返回 503
type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HandleHealth GET /api/v1/health
func (h *HealthHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := consts.StatusOK
	if status != "ok" {
		code = consts.StatusServiceUnavailable
	}
	c.JSON(code, map[string]any{"status": status, "dependencies": deps})
}
