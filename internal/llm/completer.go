package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ai-recruit-go/internal/apperrors"
)

// Completer 补全服务的窄接口：system + user -> JSON 文本
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatCompleter 基于 eino ChatModel 的 Completer，每次调用单独设置超时
type ChatCompleter struct {
	model   model.BaseChatModel
	timeout time.Duration
	name    string
}

// NewChatCompleter timeout<=0 时不额外加超时
func NewChatCompleter(m model.BaseChatModel, timeout time.Duration, name string) *ChatCompleter {
	return &ChatCompleter{model: m, timeout: timeout, name: name}
}

// Complete 发送 system/user 两条消息并返回助手回复内容
func (c *ChatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if c.model == nil {
		return "", apperrors.NewModelError(c.name, apperrors.ErrModelInvocation, "chat model is not initialized")
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := c.model.Generate(callCtx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", apperrors.NewModelError(c.name, context.DeadlineExceeded, fmt.Sprintf("超过 %s 未返回", c.timeout))
		}
		return "", apperrors.NewModelError(c.name, err, "")
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// CompleteJSON 调用补全服务并解码。
// 调用本身失败时返回 error；调用成功时解码结果（含 ParseFailure / EmptyResponse）通过 DecodeResult 返回。
func CompleteJSON[T any](ctx context.Context, c Completer, system, user string) (DecodeResult[T], error) {
	content, err := c.Complete(ctx, system, user)
	if err != nil {
		return DecodeResult[T]{}, err
	}
	return Decode[T](content), nil
}
