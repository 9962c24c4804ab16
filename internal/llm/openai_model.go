package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"
)

// OpenAIChatModel 通过 openai-go 调用 Chat Completions（JSON object 模式）
type OpenAIChatModel struct {
	client      *openai.Client
	modelName   string
	temperature float64
}

// NewOpenAIChatModel baseURL 非空时可对接任意 OpenAI 兼容服务
func NewOpenAIChatModel(apiKey, modelName, baseURL string, temperature float64) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIChatModel{client: &client, modelName: modelName, temperature: temperature}, nil
}

// Generate 实现 model.BaseChatModel
func (o *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.modelName),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: constant.JSONObject("json_object"),
			},
		},
		Temperature: openai.Float(o.temperature),
	}
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case schema.Assistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no response from openai")
	}
	return schema.AssistantMessage(completion.Choices[0].Message.Content, nil), nil
}

func (o *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("OpenAIChatModel does not support streaming")
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)
