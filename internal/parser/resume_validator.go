package parser

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/logger"
	"ai-recruit-go/internal/types"
)

// 常见的"无值"占位写法
var placeholderNames = map[string]struct{}{
	"": {}, "null": {}, "none": {}, "n/a": {}, "未知": {}, "姓名": {}, "无": {},
}

// ResumeValidator 对解析结果做规范化修复；只产生告警，从不拒绝记录
type ResumeValidator struct {
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewResumeValidator() *ResumeValidator {
	return &ResumeValidator{validate: validator.New(), logger: logger.Named("resume_validator")}
}

// WithLogger 返回使用指定 logger 的副本
func (v *ResumeValidator) WithLogger(l zerolog.Logger) *ResumeValidator {
	c := *v
	c.logger = l
	return &c
}

// Validate 返回规范化后的记录与告警。纯函数且幂等：Validate(Validate(r)) 与 Validate(r) 相同。
func (v *ResumeValidator) Validate(rec types.CandidateRecord) (types.CandidateRecord, []apperrors.ValidationWarning) {
	out := rec
	ensureArrays(&out)
	if out.IsPendingManualEntry() {
		return out, nil
	}

	out.Name = strings.TrimSpace(out.Name)
	out.Email = strings.TrimSpace(out.Email)
	out.Gender = strings.TrimSpace(out.Gender)
	out.Summary = strings.TrimSpace(out.Summary)
	out.Phone = normalizePhone(out.Phone)
	out.Skills = dedupeSkills(out.Skills)

	exp := make([]types.Experience, 0, len(out.Experience))
	for _, e := range out.Experience {
		e.Company = strings.TrimSpace(e.Company)
		e.Title = strings.TrimSpace(e.Title)
		e.StartDate = types.FlexString(strings.TrimSpace(string(e.StartDate)))
		e.EndDate = types.FlexString(strings.TrimSpace(string(e.EndDate)))
		e.Description = strings.TrimSpace(e.Description)
		if e.Company == "" && e.Title == "" && e.Description == "" {
			continue
		}
		exp = append(exp, e)
	}
	out.Experience = exp

	edu := make([]types.Education, 0, len(out.Education))
	for _, e := range out.Education {
		e.School = strings.TrimSpace(e.School)
		e.Degree = strings.TrimSpace(e.Degree)
		e.Major = strings.TrimSpace(e.Major)
		e.StartYear = types.FlexString(strings.TrimSpace(string(e.StartYear)))
		e.EndYear = types.FlexString(strings.TrimSpace(string(e.EndYear)))
		if e.School == "" && e.Degree == "" && e.Major == "" {
			continue
		}
		edu = append(edu, e)
	}
	out.Education = edu

	warnings := v.check(out)
	for _, w := range warnings {
		v.logger.Warn().Str("field", w.Field).Str("name", out.Name).Msg(w.Message)
	}
	return out, warnings
}

func (v *ResumeValidator) check(rec types.CandidateRecord) []apperrors.ValidationWarning {
	var warnings []apperrors.ValidationWarning
	if _, ok := placeholderNames[strings.ToLower(rec.Name)]; ok {
		warnings = append(warnings, apperrors.ValidationWarning{Field: "name", Message: "姓名缺失或为占位值"})
	}
	if !plausiblePhone(rec.Phone) {
		warnings = append(warnings, apperrors.ValidationWarning{Field: "phone", Message: "手机号缺失或不是11位数字"})
	}
	if rec.Email == "" {
		warnings = append(warnings, apperrors.ValidationWarning{Field: "email", Message: "邮箱缺失"})
	} else if err := v.validate.Var(rec.Email, "email"); err != nil {
		warnings = append(warnings, apperrors.ValidationWarning{Field: "email", Message: "邮箱格式不正确"})
	}
	if rec.Age != nil && (int(*rec.Age) < 16 || int(*rec.Age) > 80) {
		warnings = append(warnings, apperrors.ValidationWarning{Field: "age", Message: "年龄超出合理范围"})
	}
	return warnings
}

func ensureArrays(rec *types.CandidateRecord) {
	if rec.Skills == nil {
		rec.Skills = []string{}
	}
	if rec.Experience == nil {
		rec.Experience = []types.Experience{}
	}
	if rec.Education == nil {
		rec.Education = []types.Education{}
	}
}

// dedupeSkills 去空、去重（忽略大小写），保留首次出现的写法和顺序
func dedupeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// normalizePhone 去掉分隔符与 +86 前缀；结果不是11位时保留去空格后的原值
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 13 && strings.HasPrefix(d, "86") {
		d = d[2:]
	}
	if len(d) == 11 {
		return d
	}
	return phone
}

func plausiblePhone(phone string) bool {
	if len(phone) != 11 || phone[0] != '1' {
		return false
	}
	for i := 0; i < len(phone); i++ {
		if phone[i] < '0' || phone[i] > '9' {
			return false
		}
	}
	return true
}
