package ratelimit

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedModel 为 eino ChatModel 增加限流与重试的代理
type RateLimitedModel struct {
	original    model.BaseChatModel
	rateLimiter *TokenBucket
}

// NewRateLimitedModelWithBucket 多个模型共享同一个令牌桶（同一账号的QPM配额）
func NewRateLimitedModelWithBucket(original model.BaseChatModel, bucket *TokenBucket) *RateLimitedModel {
	return &RateLimitedModel{original: original, rateLimiter: bucket}
}

func (rl *RateLimitedModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

func (rl *RateLimitedModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

var _ model.BaseChatModel = (*RateLimitedModel)(nil)
