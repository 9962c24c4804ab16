package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"ai-recruit-go/internal/types"
)

// candidateRecordSchema 拆分结果中单条记录的最低结构要求
const candidateRecordSchema = `{
  "type": "object",
  "properties": {
    "name":   {"type": ["string", "null"]},
    "phone":  {"type": ["string", "number", "null"]},
    "email":  {"type": ["string", "null"]},
    "skills": {"type": ["array", "null"], "items": {"type": ["string", "null"]}},
    "experience": {"type": ["array", "null"], "items": {"type": "object"}},
    "education":  {"type": ["array", "null"], "items": {"type": "object"}}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func recordSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(candidateRecordSchema))
	})
	return compiledSchema, schemaErr
}

// ErrNoIdentity 记录既没有姓名也没有任何联系方式
var ErrNoIdentity = errors.New("记录缺少姓名与联系方式")

// CheckSplitRecord 多简历拆分分支的逐条检查：结构校验后解码，并要求至少有姓名、电话、邮箱之一。
// 不合格的记录由调用方丢弃，不做修复。
func CheckSplitRecord(raw json.RawMessage) (types.CandidateRecord, error) {
	schema, err := recordSchema()
	if err != nil {
		return types.CandidateRecord{}, fmt.Errorf("load record schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return types.CandidateRecord{}, fmt.Errorf("记录不是合法的 JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			msgs = append(msgs, field+": "+desc.Description())
		}
		return types.CandidateRecord{}, fmt.Errorf("记录结构不符合要求: %s", strings.Join(msgs, "; "))
	}

	var rec types.CandidateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.CandidateRecord{}, fmt.Errorf("记录解码失败: %w", err)
	}
	if strings.TrimSpace(rec.Name) == "" && strings.TrimSpace(rec.Phone) == "" && strings.TrimSpace(rec.Email) == "" {
		return types.CandidateRecord{}, ErrNoIdentity
	}
	return rec, nil
}
