package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/llm"
	"ai-recruit-go/internal/types"
)

func TestEvaluateNormalizesScore(t *testing.T) {
	mock := llm.NewMockChatModel(`{"score":82.46,"analysis":"匹配","strengths":["Strong Java background"],"weaknesses":null}`, nil)
	e := NewMatchEvaluator(llm.NewChatCompleter(mock, time.Second, "match_eval"), zerolog.Nop())

	a, err := e.Evaluate(context.Background(), "候选人", "岗位")
	require.NoError(t, err)
	assert.Equal(t, 82.5, a.Score)
	assert.NotNil(t, a.Weaknesses)

	user := mock.ReceivedMessages()[0][1].Content
	assert.Contains(t, user, "【岗位信息】\n岗位")
	assert.Contains(t, user, "【候选人信息】\n候选人")
}

func TestEvaluateHardFails(t *testing.T) {
	e := NewMatchEvaluator(llm.NewChatCompleter(llm.NewMockChatModel("", errors.New("boom")), time.Second, "match_eval"), zerolog.Nop())
	_, err := e.Evaluate(context.Background(), "c", "j")
	assert.True(t, apperrors.IsModel(err))

	e = NewMatchEvaluator(llm.NewChatCompleter(llm.NewMockChatModel("score: 80", nil), time.Second, "match_eval"), zerolog.Nop())
	_, err = e.Evaluate(context.Background(), "c", "j")
	assert.ErrorIs(t, err, apperrors.ErrUnparseable)
}

func TestNormalizeScore(t *testing.T) {
	cases := map[float64]float64{
		82:     82.0,
		82.04:  82.0,
		82.46:  82.5,
		-3:     0,
		104.7:  100,
		99.999: 100,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeScore(in), "%v", in)
	}
}

func TestKeywordExtraction(t *testing.T) {
	assert.Equal(t, []string{"Java"},
		MatchedKeywords([]string{"Java", "Spring"}, []string{"Strong Java background"}))
	assert.Equal(t, []string{"Kafka"},
		MissingKeywords([]string{"Java", "Kafka"}, []string{"No Kafka experience"}))

	// 优势描述没有点名任何技能时回退到前5个技能
	skills := []string{"Go", "Redis", "MySQL", "Docker", "K8s", "Linux"}
	assert.Equal(t, skills[:5], MatchedKeywords(skills, []string{"沟通能力强"}))
	assert.Empty(t, MatchedKeywords(nil, []string{"x"}))

	// 不足没有点名关键词时允许为空
	assert.Empty(t, MissingKeywords([]string{"Kafka"}, []string{"经验略少"}))

	// 去重、忽略大小写
	assert.Equal(t, []string{"go"}, MatchedKeywords([]string{"go", "Go"}, []string{"熟悉 GO 语言"}))
}

func TestFormatDetailsIsDeterministic(t *testing.T) {
	a := types.MatchAnalysis{Score: 82, Analysis: "整体匹配", Strengths: []string{"Java"}, Weaknesses: nil}
	want := "匹配分数: 82.0\n分析: 整体匹配\n优势:\n- Java\n不足: 无"
	assert.Equal(t, want, FormatDetails(a))
	assert.Equal(t, FormatDetails(a), FormatDetails(a))

	b := a
	b.Analysis = "另一段分析"
	assert.NotEqual(t, FormatDetails(a), FormatDetails(b))
}

func TestCandidateAndJobText(t *testing.T) {
	age := types.FlexInt(30)
	years := types.FlexFloat(6)
	rec := types.CandidateRecord{
		Name: "张三", Gender: "男", Age: &age, YearsOfExperience: &years,
		Skills:     []string{"Java", "Spring"},
		Experience: []types.Experience{{Company: "阿里", Title: "工程师", StartDate: "2019-01", EndDate: "至今", Description: "交易系统"}},
		Education:  []types.Education{{School: "浙大", Degree: "本科", Major: "计算机", StartYear: "2011", EndYear: "2015"}},
	}
	text := CandidateText(rec)
	assert.Contains(t, text, "技能: Java, Spring")
	assert.Contains(t, text, "- 阿里 | 工程师 | 2019-01 - 至今 | 交易系统")
	assert.Contains(t, text, "- 浙大 | 本科 | 计算机 | 2011 - 2015")
	assert.Contains(t, text, "工作年限: 6年")

	job := JobText(types.JobPosting{Title: "Java 开发", Requirements: "3年以上", Keywords: []string{"Java", "Kafka"}})
	assert.Equal(t, "岗位: Java 开发\n要求: 3年以上\n技能关键词: Java, Kafka", job)
}
