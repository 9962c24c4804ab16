package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/config"
	"ai-recruit-go/pkg/ratelimit"
)

// Factory 按任务创建 Completer；同一模型共享一个令牌桶
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu      sync.Mutex
	buckets map[string]*ratelimit.TokenBucket
}

func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger, buckets: make(map[string]*ratelimit.TokenBucket)}
}

// Completer 返回任务对应的 Completer：provider 模型 -> 限流代理 -> 超时包装
func (f *Factory) Completer(ctx context.Context, task string) (Completer, error) {
	modelName := f.cfg.GetModelForTask(task)
	base, err := f.newChatModel(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("初始化 %s 模型失败: %w", task, err)
	}

	limited := ratelimit.NewRateLimitedModelWithBucket(base, f.bucket(modelName))
	timeout := config.GetDuration(f.cfg.LLM.CallTimeout, 60*time.Second)

	f.logger.Info().
		Str("task", task).
		Str("provider", f.cfg.LLM.Provider).
		Str("model", modelName).
		Dur("timeout", timeout).
		Msg("LLM Completer 初始化成功")
	return NewChatCompleter(limited, timeout, task), nil
}

func (f *Factory) newChatModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	c := f.cfg.LLM
	switch c.Provider {
	case "openai":
		return NewOpenAIChatModel(c.APIKey, modelName, c.APIURL, c.Temperature)
	case "gemini":
		return NewGeminiChatModel(ctx, c.APIKey, modelName, c.Temperature)
	case "qwen", "":
		return NewQwenChatModel(c.APIKey, modelName, c.APIURL, c.Temperature, f.logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

func (f *Factory) bucket(modelName string) *ratelimit.TokenBucket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.buckets[modelName]; ok {
		return b
	}
	b := ratelimit.NewTokenBucket(f.cfg.EffectiveQPM(modelName), 0).
		WithRetryPolicy(config.GetDuration(f.cfg.LLM.RetryWait, time.Second), f.cfg.LLM.MaxRetries)
	f.buckets[modelName] = b
	return b
}
