package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// 待人工录入记录的固定占位值
const (
	PendingName  = "待人工录入"
	PendingPhone = "00000000000"
	PendingEmail = "pending@manual.entry"
)

// CandidateRecord 结构化简历，LLM 解析结果与入库前的统一表示
type CandidateRecord struct {
	Name              string       `json:"name"`
	Phone             string       `json:"phone"`
	Email             string       `json:"email"`
	Gender            string       `json:"gender,omitempty"`
	Age               *FlexInt     `json:"age,omitempty"`
	Skills            []string     `json:"skills"`
	Experience        []Experience `json:"experience"`
	Education         []Education  `json:"education"`
	YearsOfExperience *FlexFloat   `json:"yearsOfExperience,omitempty"`
	Summary           string       `json:"summary,omitempty"`
}

// UnmarshalJSON 手机号允许数字形式，其余字段按默认规则解码
func (r *CandidateRecord) UnmarshalJSON(data []byte) error {
	type plain CandidateRecord
	aux := struct {
		*plain
		Phone FlexString `json:"phone"`
	}{plain: (*plain)(r), Phone: FlexString(r.Phone)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Phone = string(aux.Phone)
	return nil
}

// Experience 工作经历，按时间倒序
type Experience struct {
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	StartDate   FlexString `json:"startDate"`
	EndDate     FlexString `json:"endDate"`
	Description string     `json:"description,omitempty"`
}

// Education 教育经历
type Education struct {
	School    string     `json:"school"`
	Degree    string     `json:"degree"`
	Major     string     `json:"major,omitempty"`
	StartYear FlexString `json:"startYear"`
	EndYear   FlexString `json:"endYear"`
}

// NewPendingRecord 生成"待人工录入"占位记录，summary 说明原因
func NewPendingRecord(reason string) CandidateRecord {
	return CandidateRecord{
		Name:       PendingName,
		Phone:      PendingPhone,
		Email:      PendingEmail,
		Skills:     []string{},
		Experience: []Experience{},
		Education:  []Education{},
		Summary:    reason,
	}
}

// IsPendingManualEntry 是否为占位记录
func (r CandidateRecord) IsPendingManualEntry() bool {
	return r.Name == PendingName && r.Phone == PendingPhone && r.Email == PendingEmail
}

// MultiResumeDetectionResult 一个文档检测/解析出的全部候选人。
// Resumes 为空表示调用方应走单简历路径。
type MultiResumeDetectionResult struct {
	IsMultiple bool              `json:"isMultiple"`
	Count      int               `json:"count"`
	Resumes    []CandidateRecord `json:"resumes"`
}

// MatchAnalysis LLM 返回的匹配分析，不落库
type MatchAnalysis struct {
	Score      float64  `json:"score"`
	Analysis   string   `json:"analysis"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// BatchSummary 批量匹配汇总
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// FlexString 兼容模型把年份写成数字或字符串
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unsupported value for string field: %s", string(data))
	}
	*s = FlexString(n.String())
	return nil
}

// FlexInt 兼容 28 / "28" / "28岁"
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	v, err := parseLooseNumber(data)
	if err != nil {
		return err
	}
	*i = FlexInt(int(v))
	return nil
}

// FlexFloat 兼容 5 / 5.5 / "5" / "5年"
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	v, err := parseLooseNumber(data)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func parseLooseNumber(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return 0, err
		}
	}
	// 截取前导数字部分
	end := 0
	for end < len(raw) && (raw[end] >= '0' && raw[end] <= '9' || raw[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw[:end], 64)
	if err != nil {
		return 0, nil
	}
	return v, nil
}

// JobPosting 匹配时使用的岗位视图
type JobPosting struct {
	Title        string   `json:"title"`
	Requirements string   `json:"requirements"`
	Keywords     []string `json:"keywords"`
}
