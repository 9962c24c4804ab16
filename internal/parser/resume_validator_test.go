package parser

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-recruit-go/internal/types"
)

func quietValidator() *ResumeValidator {
	return NewResumeValidator().WithLogger(zerolog.Nop())
}

func TestValidateFillsNilArrays(t *testing.T) {
	out, _ := quietValidator().Validate(types.CandidateRecord{Name: "张三"})
	assert.NotNil(t, out.Skills)
	assert.NotNil(t, out.Experience)
	assert.NotNil(t, out.Education)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"skills":[]`)
	assert.Contains(t, string(raw), `"experience":[]`)
	assert.Contains(t, string(raw), `"education":[]`)
}

func TestValidateNormalizes(t *testing.T) {
	in := types.CandidateRecord{
		Name:   "  李四 ",
		Phone:  "+86 138-0013-8000",
		Email:  " lisi@example.com ",
		Skills: []string{"Go", " go ", "", "Kafka", "GO", "MySQL"},
		Experience: []types.Experience{
			{Company: " 字节跳动 ", Title: "后端工程师", StartDate: "2021-03", EndDate: "至今"},
			{},
		},
		Education: []types.Education{{School: "浙江大学", Degree: "本科"}, {}},
	}
	out, warnings := quietValidator().Validate(in)

	assert.Equal(t, "李四", out.Name)
	assert.Equal(t, "13800138000", out.Phone)
	assert.Equal(t, "lisi@example.com", out.Email)
	assert.Equal(t, []string{"Go", "Kafka", "MySQL"}, out.Skills)
	require.Len(t, out.Experience, 1)
	assert.Equal(t, "字节跳动", out.Experience[0].Company)
	assert.Len(t, out.Education, 1)
	assert.Empty(t, warnings)
}

func TestValidateWarnsButNeverRejects(t *testing.T) {
	age := types.FlexInt(3)
	out, warnings := quietValidator().Validate(types.CandidateRecord{
		Name:  "null",
		Phone: "12345",
		Email: "not-an-email",
		Age:   &age,
	})

	fields := make([]string, 0, len(warnings))
	for _, w := range warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"name", "phone", "email", "age"}, fields)
	assert.Equal(t, "12345", out.Phone, "无法规范化的手机号保留原值")
	assert.Equal(t, "not-an-email", out.Email)
}

func TestValidateIsIdempotent(t *testing.T) {
	years := types.FlexFloat(5.5)
	inputs := []types.CandidateRecord{
		{},
		{Name: " 王五 ", Phone: "86 139 0000 1111", Email: "x@y.com", Skills: []string{"a", "A", " b"}, YearsOfExperience: &years},
		{Name: "赵六", Phone: "tel: 12", Experience: []types.Experience{{Company: " c ", Description: " d "}}},
		types.NewPendingRecord("扫描件"),
	}
	v := quietValidator()
	for _, in := range inputs {
		once, _ := v.Validate(in)
		twice, _ := v.Validate(once)
		assert.Equal(t, once, twice)
	}
}

func TestValidateLeavesSentinelUntouched(t *testing.T) {
	rec := types.NewPendingRecord("该PDF为扫描件")
	out, warnings := quietValidator().Validate(rec)
	assert.Equal(t, rec, out)
	assert.Empty(t, warnings)
	assert.True(t, out.IsPendingManualEntry())
}

func TestCheckSplitRecord(t *testing.T) {
	rec, err := CheckSplitRecord(json.RawMessage(`{"name":"张三","phone":13800138000,"skills":["Go"],"experience":null}`))
	require.NoError(t, err)
	assert.Equal(t, "张三", rec.Name)
	assert.Equal(t, "13800138000", rec.Phone)

	_, err = CheckSplitRecord(json.RawMessage(`{"name":"","phone":null,"email":null}`))
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = CheckSplitRecord(json.RawMessage(`{"name":"李四","skills":"Go, Java"}`))
	assert.ErrorContains(t, err, "skills")

	_, err = CheckSplitRecord(json.RawMessage(`"just a string"`))
	assert.Error(t, err)
}
