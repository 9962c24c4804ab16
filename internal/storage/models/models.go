package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ai-recruit-go/internal/types"
)

// 岗位状态
const (
	JobStatusOpen   = "OPEN"
	JobStatusClosed = "CLOSED"
)

// 解析任务状态
const (
	ParseJobQueued    = "QUEUED"
	ParseJobRunning   = "RUNNING"
	ParseJobSucceeded = "SUCCEEDED"
	ParseJobFailed    = "FAILED"
)

// Candidate 候选人主表，保存解析后的结构化简历
type Candidate struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string         `gorm:"type:varchar(255)" json:"name"`
	Phone             string         `gorm:"type:varchar(50);index:idx_candidates_phone" json:"phone"`
	Email             string         `gorm:"type:varchar(255)" json:"email"`
	Gender            string         `gorm:"type:varchar(10)" json:"gender,omitempty"`
	Age               *int           `json:"age,omitempty"`
	YearsOfExperience *float64       `json:"yearsOfExperience,omitempty"`
	Summary           string         `gorm:"type:text" json:"summary,omitempty"`
	SkillsJSON        datatypes.JSON `gorm:"type:json" json:"skills"`
	ExperienceJSON    datatypes.JSON `gorm:"type:json" json:"experience"`
	EducationJSON     datatypes.JSON `gorm:"type:json" json:"education"`
	PendingManual     bool           `gorm:"default:false;index:idx_candidates_pending" json:"pendingManual"`
	SourceObjectKey   string         `gorm:"type:varchar(1024)" json:"sourceObjectKey,omitempty"`
	ParseJobID        *string        `gorm:"type:char(36);index:idx_candidates_parse_job" json:"parseJobId,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// NewCandidate 由结构化简历构造待入库的候选人
func NewCandidate(rec types.CandidateRecord, sourceKey string, parseJobID *string) (*Candidate, error) {
	skills, err := json.Marshal(nonNil(rec.Skills))
	if err != nil {
		return nil, err
	}
	exp, err := json.Marshal(nonNilSlice(rec.Experience))
	if err != nil {
		return nil, err
	}
	edu, err := json.Marshal(nonNilSlice(rec.Education))
	if err != nil {
		return nil, err
	}
	c := &Candidate{
		Name:            rec.Name,
		Phone:           rec.Phone,
		Email:           rec.Email,
		Gender:          rec.Gender,
		Summary:         rec.Summary,
		SkillsJSON:      skills,
		ExperienceJSON:  exp,
		EducationJSON:   edu,
		PendingManual:   rec.IsPendingManualEntry(),
		SourceObjectKey: sourceKey,
		ParseJobID:      parseJobID,
	}
	if rec.Age != nil {
		age := int(*rec.Age)
		c.Age = &age
	}
	if rec.YearsOfExperience != nil {
		y := float64(*rec.YearsOfExperience)
		c.YearsOfExperience = &y
	}
	return c, nil
}

// Record 转换回结构化简历；JSON 列损坏时对应字段为空数组
func (c *Candidate) Record() types.CandidateRecord {
	rec := types.CandidateRecord{
		Name:       c.Name,
		Phone:      c.Phone,
		Email:      c.Email,
		Gender:     c.Gender,
		Summary:    c.Summary,
		Skills:     []string{},
		Experience: []types.Experience{},
		Education:  []types.Education{},
	}
	if len(c.SkillsJSON) > 0 {
		_ = json.Unmarshal(c.SkillsJSON, &rec.Skills)
	}
	if len(c.ExperienceJSON) > 0 {
		_ = json.Unmarshal(c.ExperienceJSON, &rec.Experience)
	}
	if len(c.EducationJSON) > 0 {
		_ = json.Unmarshal(c.EducationJSON, &rec.Education)
	}
	if c.Age != nil {
		age := types.FlexInt(*c.Age)
		rec.Age = &age
	}
	if c.YearsOfExperience != nil {
		y := types.FlexFloat(*c.YearsOfExperience)
		rec.YearsOfExperience = &y
	}
	return rec
}

// Job 岗位信息表
type Job struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title        string         `gorm:"type:varchar(255);not null" json:"title"`
	Requirements string         `gorm:"type:text" json:"requirements"`
	KeywordsJSON datatypes.JSON `gorm:"type:json" json:"keywords"`
	Status       string         `gorm:"type:varchar(20);default:OPEN;index:idx_jobs_status" json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Job) TableName() string {
	return "jobs"
}

// Keywords 技能关键词列表
func (j *Job) Keywords() []string {
	kw := []string{}
	if len(j.KeywordsJSON) > 0 {
		_ = json.Unmarshal(j.KeywordsJSON, &kw)
	}
	return kw
}

// Posting 匹配使用的岗位视图
func (j *Job) Posting() types.JobPosting {
	return types.JobPosting{Title: j.Title, Requirements: j.Requirements, Keywords: j.Keywords()}
}

// MatchResult 候选人-岗位匹配结果，(candidate_id, job_id) 唯一
type MatchResult struct {
	ID                  uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateID         uint           `gorm:"not null;uniqueIndex:idx_match_pair,priority:1" json:"candidateId"`
	JobID               uint           `gorm:"not null;uniqueIndex:idx_match_pair,priority:2;index:idx_match_job_score,priority:1" json:"jobId"`
	Score               float64        `gorm:"not null;index:idx_match_job_score,priority:2" json:"score"`
	MatchedKeywordsJSON datatypes.JSON `gorm:"type:json" json:"matchedKeywords"`
	MissingKeywordsJSON datatypes.JSON `gorm:"type:json" json:"missingKeywords"`
	Details             string         `gorm:"type:text" json:"details"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func (MatchResult) TableName() string {
	return "match_results"
}

func (m *MatchResult) MatchedKeywords() []string { return decodeStrings(m.MatchedKeywordsJSON) }
func (m *MatchResult) MissingKeywords() []string { return decodeStrings(m.MissingKeywordsJSON) }

// ParseJob 异步解析任务
type ParseJob struct {
	JobID            string         `gorm:"type:char(36);primaryKey" json:"jobId"`
	ObjectKey        string         `gorm:"type:varchar(1024);not null" json:"objectKey"`
	FileName         string         `gorm:"type:varchar(255)" json:"fileName"`
	Format           string         `gorm:"type:varchar(10)" json:"format"`
	Status           string         `gorm:"type:varchar(20);default:QUEUED;index:idx_parse_jobs_status" json:"status"`
	Attempts         int            `gorm:"default:0" json:"attempts"`
	LastError        string         `gorm:"type:text" json:"lastError,omitempty"`
	CandidateIDsJSON datatypes.JSON `gorm:"type:json" json:"candidateIds"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (ParseJob) TableName() string {
	return "parse_jobs"
}

// CandidateIDs 解析产生的候选人
func (p *ParseJob) CandidateIDs() []uint {
	ids := []uint{}
	if len(p.CandidateIDsJSON) > 0 {
		_ = json.Unmarshal(p.CandidateIDsJSON, &ids)
	}
	return ids
}

// ParseJobMessage 解析队列中的消息体
type ParseJobMessage struct {
	JobID   string `json:"jobId"`
	Attempt int    `json:"attempt"`
}

// All 参与自动迁移的全部模型
func All() []any {
	return []any{&Candidate{}, &Job{}, &MatchResult{}, &ParseJob{}, &OutboxMessage{}}
}

// EncodeStrings 关键词等字符串列表的 JSON 列
func EncodeStrings(items []string) datatypes.JSON {
	b, _ := json.Marshal(nonNil(items))
	return b
}

func decodeStrings(raw datatypes.JSON) []string {
	out := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// EncodeUints 候选人 ID 列表的 JSON 列
func EncodeUints(ids []uint) datatypes.JSON {
	if ids == nil {
		ids = []uint{}
	}
	b, _ := json.Marshal(ids)
	return b
}
