package constants

import "time"

const (
	// LLM 任务名，对应 llm.task_models 的键
	TaskResumeParse = "resume_parse"
	TaskMultiDetect = "multi_detect"
	TaskMatchEval   = "match_eval"

	// MinScannedTextRunes 低于该长度的PDF文本视为扫描件
	MinScannedTextRunes = 10
	// MinDetectTextRunes 低于该长度的文本不做多简历检测
	MinDetectTextRunes = 50
	// FallbackMatchedSkills 优势描述未提及任何技能时，取前N个技能作为匹配关键词
	FallbackMatchedSkills = 5

	DefaultLockTTL = 2 * time.Minute
)
