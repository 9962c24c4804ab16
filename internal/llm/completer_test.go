package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruit-go/internal/apperrors"
)

// slowModel 阻塞直到 ctx 结束
type slowModel struct{}

func (slowModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowModel) Stream(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("unsupported")
}

func TestChatCompleterSendsSystemAndUser(t *testing.T) {
	mock := NewMockChatModel(`{"ok":true}`, nil)
	c := NewChatCompleter(mock, time.Second, "test")

	out, err := c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	received := mock.ReceivedMessages()
	require.Len(t, received, 1)
	require.Len(t, received[0], 2)
	assert.Equal(t, schema.System, received[0][0].Role)
	assert.Equal(t, "sys", received[0][0].Content)
	assert.Equal(t, schema.User, received[0][1].Role)
	assert.Equal(t, "usr", received[0][1].Content)
}

func TestChatCompleterTimeoutIsModelError(t *testing.T) {
	c := NewChatCompleter(slowModel{}, 20*time.Millisecond, "slow")

	_, err := c.Complete(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.True(t, apperrors.IsModel(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChatCompleterWrapsTransportError(t *testing.T) {
	c := NewChatCompleter(NewMockChatModel("", errors.New("connection refused")), 0, "x")
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrModelInvocation)
}

func TestCompleteJSON(t *testing.T) {
	c := NewChatCompleter(NewMockChatModelSequential(
		MockResponse{Content: `{"score": 9}`},
		MockResponse{Content: ""},
	), 0, "seq")

	res, err := CompleteJSON[sampleAnalysis](context.Background(), c, "s", "u")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 9.0, res.Value.Score)

	res, err = CompleteJSON[sampleAnalysis](context.Background(), c, "s", "u")
	require.NoError(t, err)
	assert.Equal(t, DecodeEmptyResponse, res.Kind)

	_, err = CompleteJSON[sampleAnalysis](context.Background(), c, "s", "u")
	require.Error(t, err, "mock 响应用完后应返回调用错误")
}
