package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

const (
	// DashScope 的 OpenAI 兼容接口
	defaultQwenAPIURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName = "qwen-plus"
)

// QwenChatModel 通义千问 OpenAI 兼容接口的 eino ChatModel 实现，固定请求 JSON 输出
type QwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	httpClient  *http.Client
	logger      zerolog.Logger
}

type qwenChatRequest struct {
	Model          string            `json:"model"`
	Messages       []qwenChatMessage `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat *qwenRespFormat   `json:"response_format,omitempty"`
}

type qwenRespFormat struct {
	Type string `json:"type"`
}

type qwenChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type qwenChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int             `json:"index"`
		Message      qwenChatMessage `json:"message"`
		FinishReason string          `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewQwenChatModel 创建通义千问模型；modelName/apiURL 为空时使用默认值
func NewQwenChatModel(apiKey, modelName, apiURL string, temperature float64, logger zerolog.Logger) (*QwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultQwenModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultQwenAPIURL
	}
	return &QwenChatModel{
		apiKey:      apiKey,
		modelName:   modelName,
		apiURL:      apiURL,
		temperature: temperature,
		httpClient:  &http.Client{},
		logger:      logger,
	}, nil
}

// Generate 实现 model.BaseChatModel
func (q *QwenChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	payload := qwenChatRequest{
		Model:          q.modelName,
		Temperature:    q.temperature,
		ResponseFormat: &qwenRespFormat{Type: "json_object"},
	}
	for _, m := range messages {
		if m == nil {
			continue
		}
		payload.Messages = append(payload.Messages, qwenChatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.apiKey)
	req.Header.Set("Content-Type", "application/json")

	q.logger.Debug().Str("model", q.modelName).Int("messages", len(payload.Messages)).Msg("发送通义千问请求")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %.500s", resp.Status, string(respBody))
	}

	var parsed qwenChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("API 返回错误 %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项")
	}

	q.logger.Debug().
		Str("finish_reason", parsed.Choices[0].FinishReason).
		Int("content_len", len(parsed.Choices[0].Message.Content)).
		Msg("收到通义千问响应")
	return schema.AssistantMessage(parsed.Choices[0].Message.Content, nil), nil
}

// Stream 本服务只需要一次性 JSON 输出
func (q *QwenChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("QwenChatModel 不支持 Stream")
}

var _ model.BaseChatModel = (*QwenChatModel)(nil)
