package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruit-go/internal/llm"
)

var longText = strings.Repeat("候选人简历内容，包含工作经历和教育经历。", 5)

func newTestDetector(mock *llm.MockChatModel) *MultiResumeDetector {
	return NewMultiResumeDetector(llm.NewChatCompleter(mock, time.Second, "multi_detect"), WithDetectorLogger(zerolog.Nop()))
}

func TestDetectShortTextSkipsModel(t *testing.T) {
	mock := llm.NewMockChatModel(`{"isMultiple":true,"count":3}`, nil)
	v := newTestDetector(mock).Detect(context.Background(), "张三 13800138000")

	assert.False(t, v.IsMultiple)
	assert.Equal(t, 1, v.Count)
	assert.Zero(t, mock.Calls())
}

func TestDetectMultiple(t *testing.T) {
	mock := llm.NewMockChatModel(`{"isMultiple":true,"count":3,"reason":"三个不同姓名与电话"}`, nil)
	v := newTestDetector(mock).Detect(context.Background(), longText)

	assert.Equal(t, DetectionVerdict{IsMultiple: true, Count: 3, Reason: "三个不同姓名与电话"}, v)
	assert.Equal(t, 1, mock.Calls())
}

func TestDetectDegradesToSingle(t *testing.T) {
	cases := map[string]*llm.MockChatModel{
		"transport":   llm.NewMockChatModel("", errors.New("timeout")),
		"unparseable": llm.NewMockChatModel("不是JSON", nil),
		"empty":       llm.NewMockChatModel("", nil),
	}
	for name, mock := range cases {
		t.Run(name, func(t *testing.T) {
			v := newTestDetector(mock).Detect(context.Background(), longText)
			assert.False(t, v.IsMultiple)
			assert.Equal(t, 1, v.Count)
		})
	}
}

func TestDetectNormalizesInconsistentVerdict(t *testing.T) {
	v := newTestDetector(llm.NewMockChatModel(`{"isMultiple":true,"count":1}`, nil)).Detect(context.Background(), longText)
	assert.False(t, v.IsMultiple)

	v = newTestDetector(llm.NewMockChatModel(`{"isMultiple":false,"count":0}`, nil)).Detect(context.Background(), longText)
	assert.Equal(t, 1, v.Count)

	v = newTestDetector(llm.NewMockChatModel(`{"isMultiple":false,"count":4}`, nil)).Detect(context.Background(), longText)
	assert.Equal(t, DetectionVerdict{IsMultiple: false, Count: 1}, v)
}

func TestSplit(t *testing.T) {
	mock := llm.NewMockChatModel(`{"resumes":[{"name":"张三"},{"name":"李四"}]}`, nil)
	recs, err := newTestDetector(mock).Split(context.Background(), longText)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	mock = llm.NewMockChatModel(`[{"name":"张三"},{"name":"李四"},{"name":"王五"}]`, nil)
	recs, err = newTestDetector(mock).Split(context.Background(), longText)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	_, err = newTestDetector(llm.NewMockChatModel("无法拆分", nil)).Split(context.Background(), longText)
	assert.Error(t, err)
}
