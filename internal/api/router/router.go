package router

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"ai-recruit-go/internal/api/handler"
	"ai-recruit-go/internal/config"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Resume *handler.ResumeHandler
	Match  *handler.MatchHandler
	Health *handler.HealthHandler
}

// RegisterRoutes 注册 API 路由；配置了 api_keys 时除健康检查外都需要 X-API-Key
func RegisterRoutes(h *server.Hertz, cfg *config.Config, hs Handlers) {
	h.Use(RequestLogger())

	api := h.Group("/api/v1")
	api.GET("/health", hs.Health.HandleHealth)

	var mw []app.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		mw = append(mw, apiKeyAuth(cfg.Auth.APIKeys))
	}
	secured := api.Group("", mw...)

	secured.POST("/resumes/parse", hs.Resume.HandleParse)
	secured.POST("/resumes/upload", hs.Resume.HandleUpload)
	secured.GET("/resumes/jobs/:id", hs.Resume.HandleGetParseJob)

	secured.GET("/candidates/:id", hs.Resume.HandleGetCandidate)
	secured.GET("/candidates/:id/recommendations", hs.Match.HandleRecommendJobs)

	secured.POST("/jobs", hs.Match.HandleCreateJob)
	secured.GET("/jobs/:id", hs.Match.HandleGetJob)
	secured.GET("/jobs/:id/recommendations", hs.Match.HandleRecommendCandidates)

	secured.POST("/matches", hs.Match.HandleComputeMatch)
	secured.POST("/matches/batch", hs.Match.HandleBatch)
}

var errInvalidAPIKey = errors.New("invalid api key")

func apiKeyAuth(keys []string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, handler.ErrorResponse{Code: "UNAUTHORIZED", Message: "缺少或无效的 API Key"})
		}),
	)
}
