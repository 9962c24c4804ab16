package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatModel 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatModel 测试用 eino ChatModel。
// 优先使用 Responder；否则按顺序返回 SequentialResponses；都没有时返回固定响应。
type MockChatModel struct {
	mu sync.Mutex

	ExpectedResponse string
	ExpectedError    error

	SequentialResponses []MockResponse
	responseIndex       int

	// Responder 根据消息内容决定响应，适合并发或顺序不确定的场景
	Responder func(messages []*schema.Message) (string, error)

	calls            int
	receivedMessages [][]*schema.Message
}

// NewMockChatModel 创建一个返回固定响应的 mock
func NewMockChatModel(expectedResponse string, expectedError error) *MockChatModel {
	return &MockChatModel{ExpectedResponse: expectedResponse, ExpectedError: expectedError}
}

// NewMockChatModelSequential 创建按顺序返回不同响应的 mock，用完后返回错误
func NewMockChatModelSequential(responses ...MockResponse) *MockChatModel {
	return &MockChatModel{SequentialResponses: responses}
}

// NewMockChatModelFunc 创建由函数决定响应的 mock
func NewMockChatModelFunc(fn func(messages []*schema.Message) (string, error)) *MockChatModel {
	return &MockChatModel{Responder: fn}
}

func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.receivedMessages = append(m.receivedMessages, received)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case m.Responder != nil:
		content, err := m.Responder(input)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(content, nil), nil
	case len(m.SequentialResponses) > 0:
		if m.responseIndex >= len(m.SequentialResponses) {
			return nil, errors.New("mock model has run out of sequential responses")
		}
		resp := m.SequentialResponses[m.responseIndex]
		m.responseIndex++
		if resp.Error != nil {
			return nil, resp.Error
		}
		return schema.AssistantMessage(resp.Content, nil), nil
	default:
		if m.ExpectedError != nil {
			return nil, m.ExpectedError
		}
		return schema.AssistantMessage(m.ExpectedResponse, nil), nil
	}
}

func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not implemented in MockChatModel")
}

// Calls 返回 Generate 被调用的次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ReceivedMessages 返回每次调用收到的消息
func (m *MockChatModel) ReceivedMessages() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.receivedMessages))
	copy(out, m.receivedMessages)
	return out
}

var _ model.BaseChatModel = (*MockChatModel)(nil)
