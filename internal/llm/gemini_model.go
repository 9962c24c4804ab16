package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiChatModel 通过 google.golang.org/genai 调用 Gemini，要求 application/json 输出
type GeminiChatModel struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

func NewGeminiChatModel(ctx context.Context, apiKey, modelName string, temperature float64) (*GeminiChatModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if modelName = strings.TrimSpace(modelName); modelName == "" {
		modelName = defaultGeminiModel
	}
	return &GeminiChatModel{client: client, modelName: modelName, temperature: float32(temperature)}, nil
}

// Generate system 消息合并为 SystemInstruction，其余按顺序拼成一个 user 提示
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	var system, prompt strings.Builder
	for _, m := range messages {
		if m == nil {
			continue
		}
		target := &prompt
		if m.Role == schema.System {
			target = &system
		}
		if target.Len() > 0 {
			target.WriteString("\n\n")
		}
		target.WriteString(m.Content)
	}
	if strings.TrimSpace(prompt.String()) == "" {
		return nil, errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(g.temperature),
	}
	if system.Len() > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(system.String(), genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt.String()), cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			out.WriteString(part.Text)
		}
		// 只取第一个候选
		break
	}
	return schema.AssistantMessage(out.String(), nil), nil
}

func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("GeminiChatModel does not support streaming")
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)
