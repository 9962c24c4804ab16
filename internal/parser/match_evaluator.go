package parser

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/constants"
	"ai-recruit-go/internal/llm"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/types"
)

// MatchEvaluator 调用补全服务评估候选人与岗位的匹配度
type MatchEvaluator struct {
	completer llm.Completer
	logger    zerolog.Logger
}

func NewMatchEvaluator(completer llm.Completer, l ...zerolog.Logger) *MatchEvaluator {
	e := &MatchEvaluator{completer: completer, logger: logger.Named("match_evaluator")}
	if len(l) > 0 {
		e.logger = l[0]
	}
	return e
}

// Policy 匹配评估失败直接返回
func (e *MatchEvaluator) Policy() apperrors.Policy { return apperrors.HardFail }

// Evaluate 返回模型的匹配分析，分数已四舍五入到一位小数并限制在 [0,100]
func (e *MatchEvaluator) Evaluate(ctx context.Context, candidateText, jobText string) (types.MatchAnalysis, error) {
	user := fmt.Sprintf("【岗位信息】\n%s\n\n【候选人信息】\n%s", jobText, candidateText)
	res, err := llm.CompleteJSON[types.MatchAnalysis](ctx, e.completer, matchEvalSystemPrompt, user)
	if err == nil && !res.OK() {
		err = res.AsError("match_eval")
	}
	analysis, err := apperrors.Guard(e.Policy(), "match_eval", res.Value, err, nil, e.logger)
	if err != nil {
		return types.MatchAnalysis{}, err
	}
	analysis.Score = NormalizeScore(analysis.Score)
	if analysis.Strengths == nil {
		analysis.Strengths = []string{}
	}
	if analysis.Weaknesses == nil {
		analysis.Weaknesses = []string{}
	}
	return analysis, nil
}

// NormalizeScore 四舍五入到一位小数并限制在 [0,100]
func NormalizeScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	score = math.Round(score*10) / 10
	return math.Max(0, math.Min(100, score))
}

// CandidateText 候选人的规范文本表示
func CandidateText(rec types.CandidateRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "姓名: %s\n", rec.Name)
	if rec.Gender != "" {
		fmt.Fprintf(&sb, "性别: %s\n", rec.Gender)
	}
	if rec.Age != nil {
		fmt.Fprintf(&sb, "年龄: %d\n", int(*rec.Age))
	}
	if rec.YearsOfExperience != nil {
		fmt.Fprintf(&sb, "工作年限: %g年\n", float64(*rec.YearsOfExperience))
	}
	fmt.Fprintf(&sb, "技能: %s\n", strings.Join(rec.Skills, ", "))

	if len(rec.Experience) > 0 {
		sb.WriteString("工作经历:\n")
		for _, e := range rec.Experience {
			fmt.Fprintf(&sb, "- %s | %s | %s - %s", e.Company, e.Title, e.StartDate, e.EndDate)
			if e.Description != "" {
				fmt.Fprintf(&sb, " | %s", e.Description)
			}
			sb.WriteString("\n")
		}
	}
	if len(rec.Education) > 0 {
		sb.WriteString("教育经历:\n")
		for _, e := range rec.Education {
			fmt.Fprintf(&sb, "- %s | %s", e.School, e.Degree)
			if e.Major != "" {
				fmt.Fprintf(&sb, " | %s", e.Major)
			}
			fmt.Fprintf(&sb, " | %s - %s\n", e.StartYear, e.EndYear)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// JobText 岗位的规范文本表示
func JobText(job types.JobPosting) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "岗位: %s\n", job.Title)
	fmt.Fprintf(&sb, "要求: %s", job.Requirements)
	if len(job.Keywords) > 0 {
		fmt.Fprintf(&sb, "\n技能关键词: %s", strings.Join(job.Keywords, ", "))
	}
	return sb.String()
}

// MatchedKeywords 在任一优势描述中出现的候选人技能（忽略大小写）；一个都没有时取前5个技能
func MatchedKeywords(skills, strengths []string) []string {
	matched := mentionedIn(skills, strengths)
	if len(matched) > 0 {
		return matched
	}
	fallback := dedupeSkills(skills)
	if len(fallback) > constants.FallbackMatchedSkills {
		fallback = fallback[:constants.FallbackMatchedSkills]
	}
	return fallback
}

// MissingKeywords 在任一不足描述中出现的岗位关键词；允许为空
func MissingKeywords(jobKeywords, weaknesses []string) []string {
	return mentionedIn(jobKeywords, weaknesses)
}

func mentionedIn(keywords, texts []string) []string {
	lowered := make([]string, len(texts))
	for i, t := range texts {
		lowered[i] = strings.ToLower(t)
	}
	out := []string{}
	for _, k := range dedupeSkills(keywords) {
		lk := strings.ToLower(k)
		for _, t := range lowered {
			if strings.Contains(t, lk) {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// FormatDetails 与模型原文无关的确定性报告
func FormatDetails(a types.MatchAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "匹配分数: %.1f\n", a.Score)
	fmt.Fprintf(&sb, "分析: %s\n", strings.TrimSpace(a.Analysis))
	writeList(&sb, "优势", a.Strengths)
	sb.WriteString("\n")
	writeList(&sb, "不足", a.Weaknesses)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	sb.WriteString(title + ":")
	if len(items) == 0 {
		sb.WriteString(" 无")
		return
	}
	for _, it := range items {
		sb.WriteString("\n- " + strings.TrimSpace(it))
	}
}
