package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateRecordPhoneForms(t *testing.T) {
	cases := map[string]string{
		`{"name":"张三","phone":"138 0013 8000"}`: "138 0013 8000",
		`{"name":"张三","phone":13800138000}`:     "13800138000",
		`{"name":"张三","phone":null}`:            "",
		`{"name":"张三"}`:                         "",
	}
	for in, want := range cases {
		var rec CandidateRecord
		require.NoError(t, json.Unmarshal([]byte(in), &rec), in)
		assert.Equal(t, "张三", rec.Name)
		assert.Equal(t, want, rec.Phone, in)
	}
}

func TestCandidateRecordKeepsOtherFields(t *testing.T) {
	var rec CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(`{"phone":13800138000,"age":"28岁","skills":["Go"],
"experience":[{"company":"字节跳动","startDate":2021}]}`), &rec))
	require.NotNil(t, rec.Age)
	assert.EqualValues(t, 28, *rec.Age)
	assert.Equal(t, []string{"Go"}, rec.Skills)
	require.Len(t, rec.Experience, 1)
	assert.Equal(t, FlexString("2021"), rec.Experience[0].StartDate)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"phone":"13800138000"`)
}
