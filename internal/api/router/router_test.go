package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"ai-recruit-go/internal/api/handler"
	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/config"
	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/processor"
	"ai-recruit-go/internal/storage"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/types"
)

type fakeResumeService struct {
	result types.MultiResumeDetectionResult
	ids    []uint
	err    error
	got    extract.Document
}

func (f *fakeResumeService) ProcessAndStore(_ context.Context, doc extract.Document, _ string) (types.MultiResumeDetectionResult, []uint, error) {
	f.got = doc
	return f.result, f.ids, f.err
}

type memDocuments struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (m *memDocuments) PutDocument(_ context.Context, jobID, fileName string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := storage.DocumentKey(jobID, fileName)
	m.objs[key] = data
	return key, nil
}

func (m *memDocuments) GetDocument(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objs[key], nil
}

type fakeMatcher struct {
	result *models.MatchResult
	err    error
}

func (f *fakeMatcher) ComputeMatch(_ context.Context, cid, jid uint) (*models.MatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.CandidateID, r.JobID = cid, jid
	return &r, nil
}

type fakeRecommender struct {
	summary   types.BatchSummary
	results   []*models.MatchResult
	lastLimit int
	gotCIDs   []uint
}

func (f *fakeRecommender) RunBatch(_ context.Context, cids, _ []uint) (types.BatchSummary, error) {
	f.gotCIDs = cids
	return f.summary, nil
}

func (f *fakeRecommender) RecommendJobsForCandidate(_ context.Context, id uint, limit int) ([]*models.MatchResult, error) {
	f.lastLimit = limit
	if id == 404 {
		return nil, apperrors.NewNotFound("candidate", id)
	}
	return f.results, nil
}

func (f *fakeRecommender) RecommendCandidatesForJob(_ context.Context, _ uint, limit int) ([]*models.MatchResult, error) {
	f.lastLimit = limit
	return f.results, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	h       *server.Hertz
	db      *storage.MySQL
	service *fakeResumeService
	docs    *memDocuments
	matcher *fakeMatcher
	rec     *fakeRecommender
}

func newTestEnv(t *testing.T, apiKeys ...string) *testEnv {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)"
	db, err := storage.OpenDatabase(sqlite.Open(dsn), "test", semconv.DBSystemSqlite, 1, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.Server.MaxUploadBytes = 1 << 20
	cfg.RabbitMQ.ParseExchange = "resume.parse.exchange"
	cfg.RabbitMQ.ParseRoutingKey = "resume.parse"
	cfg.Auth.APIKeys = apiKeys

	env := &testEnv{
		db:      db,
		service: &fakeResumeService{},
		docs:    &memDocuments{objs: map[string][]byte{}},
		matcher: &fakeMatcher{result: &models.MatchResult{Score: 82, MatchedKeywordsJSON: models.EncodeStrings([]string{"Java"}), MissingKeywordsJSON: models.EncodeStrings([]string{"Kafka"})}},
		rec:     &fakeRecommender{},
	}
	hs := Handlers{
		Resume: handler.NewResumeHandler(cfg, env.service, env.docs, db, db),
		Match:  handler.NewMatchHandler(db, env.matcher, env.rec),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{"mysql": db}),
	}
	env.h = server.New(server.WithHostPorts("127.0.0.1:0"))
	RegisterRoutes(env.h, cfg, hs)
	return env
}

func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func (e *testEnv) do(method, url string, body *bytes.Buffer, headers ...ut.Header) *ut.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	return ut.PerformRequest(e.h.Engine, method, url, &ut.Body{Body: body, Len: body.Len()}, headers...)
}

func jsonBody(v any) *bytes.Buffer {
	b, _ := json.Marshal(v)
	return bytes.NewBuffer(b)
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func decode(t *testing.T, rec *ut.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestParseReturnsRecords(t *testing.T) {
	env := newTestEnv(t)
	env.service.result = types.MultiResumeDetectionResult{
		IsMultiple: true, Count: 2,
		Resumes: []types.CandidateRecord{{Name: "张三"}, {Name: "李四"}},
	}
	env.service.ids = []uint{7, 8}

	body, ct := multipartBody(t, "batch.txt", []byte("两份简历"), nil)
	resp := env.do("POST", "/api/v1/resumes/parse", body, ut.Header{Key: "Content-Type", Value: ct})
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var out handler.ParseResponse
	decode(t, resp, &out)
	assert.True(t, out.IsMultiple)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []uint{7, 8}, out.CandidateIDs)
	assert.Equal(t, extract.FormatText, env.service.got.Format)
	assert.NotEmpty(t, resp.Header().Get(headerRequestID))
}

func TestParseErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"extraction", apperrors.NewExtractionError("cv.doc", "doc", apperrors.ErrLegacyFormat, ""), 400, handler.CodeExtractionFailed},
		{"model", apperrors.NewModelError("resume_parse", apperrors.ErrUnparseable, ""), 502, handler.CodeModelError},
		{"no valid resumes", fmt.Errorf("wrap: %w", apperrors.ErrNoValidResumes), 502, handler.CodeModelError},
		{"internal", errors.New("disk full"), 500, handler.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.service.err = tc.err
			body, ct := multipartBody(t, "cv.txt", []byte("简历"), nil)
			resp := env.do("POST", "/api/v1/resumes/parse", body, ut.Header{Key: "Content-Type", Value: ct})
			assert.Equal(t, tc.status, resp.Code)

			var out handler.ErrorResponse
			decode(t, resp, &out)
			assert.Equal(t, tc.code, out.Code)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do("POST", "/api/v1/resumes/parse", bytes.NewBufferString("{}"), jsonHeader)
	assert.Equal(t, 400, resp.Code)
}

func TestUploadCreatesQueuedJob(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "cv.pdf", []byte("%PDF-1.4"), nil)
	resp := env.do("POST", "/api/v1/resumes/upload", body, ut.Header{Key: "Content-Type", Value: ct})
	require.Equal(t, 202, resp.Code, resp.Body.String())

	var out handler.UploadResponse
	decode(t, resp, &out)
	require.NotEmpty(t, out.JobID)
	assert.Equal(t, models.ParseJobQueued, out.Status)

	job, err := env.db.GetParseJob(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, "pdf", job.Format)
	assert.Contains(t, env.docs.objs, job.ObjectKey)

	var msgs []models.OutboxMessage
	require.NoError(t, env.db.DB().Where("aggregate_id = ?", out.JobID).Find(&msgs).Error)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.EventParseRequested, msgs[0].EventType)
	assert.Equal(t, "resume.parse", msgs[0].TargetRoutingKey)

	resp = env.do("GET", "/api/v1/resumes/jobs/"+out.JobID, nil)
	assert.Equal(t, 200, resp.Code)
}

func TestUploadRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "cv.xyz", []byte("???"), nil)
	resp := env.do("POST", "/api/v1/resumes/upload", body, ut.Header{Key: "Content-Type", Value: ct})
	assert.Equal(t, 400, resp.Code)

	var count int64
	require.NoError(t, env.db.DB().Model(&models.ParseJob{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadHonoursDeclaredFormat(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, "resume", []byte("纯文本简历"), map[string]string{"format": "txt"})
	resp := env.do("POST", "/api/v1/resumes/upload", body, ut.Header{Key: "Content-Type", Value: ct})
	assert.Equal(t, 202, resp.Code, resp.Body.String())
}

func TestGetParseJobNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do("GET", "/api/v1/resumes/jobs/nope", nil)
	assert.Equal(t, 404, resp.Code)
}

func TestCandidateLookup(t *testing.T) {
	env := newTestEnv(t)
	c, err := models.NewCandidate(types.CandidateRecord{Name: "张三", Skills: []string{"Go"}}, "", nil)
	require.NoError(t, err)
	require.NoError(t, env.db.CreateCandidate(context.Background(), c))

	resp := env.do("GET", fmt.Sprintf("/api/v1/candidates/%d", c.ID), nil)
	require.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Body.String(), "张三")

	assert.Equal(t, 404, env.do("GET", "/api/v1/candidates/999", nil).Code)
	assert.Equal(t, 400, env.do("GET", "/api/v1/candidates/abc", nil).Code)
}

func TestJobCreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do("POST", "/api/v1/jobs", jsonBody(handler.CreateJobRequest{
		Title: "后端工程师", Requirements: "Go, Kafka", Keywords: []string{"Go", "Kafka"},
	}), jsonHeader)
	require.Equal(t, 201, resp.Code, resp.Body.String())

	var created map[string]any
	decode(t, resp, &created)
	assert.Equal(t, models.JobStatusOpen, created["status"])
	id := uint(created["id"].(float64))

	resp = env.do("GET", fmt.Sprintf("/api/v1/jobs/%d", id), nil)
	require.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Body.String(), "Kafka")

	resp = env.do("POST", "/api/v1/jobs", jsonBody(handler.CreateJobRequest{Title: "  "}), jsonHeader)
	assert.Equal(t, 400, resp.Code)
}

func TestComputeMatch(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do("POST", "/api/v1/matches", jsonBody(handler.MatchRequest{CandidateID: 1, JobID: 2}), jsonHeader)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	var view handler.MatchView
	decode(t, resp, &view)
	assert.Equal(t, 82.0, view.Score)
	assert.Equal(t, []string{"Java"}, view.MatchedKeywords)
	assert.Equal(t, []string{"Kafka"}, view.MissingKeywords)

	assert.Equal(t, 400, env.do("POST", "/api/v1/matches", jsonBody(map[string]int{"jobId": 2}), jsonHeader).Code)

	env.matcher.err = processor.ErrPairBusy
	assert.Equal(t, 409, env.do("POST", "/api/v1/matches", jsonBody(handler.MatchRequest{CandidateID: 1, JobID: 2}), jsonHeader).Code)

	env.matcher.err = apperrors.NewNotFound("job", 2)
	assert.Equal(t, 404, env.do("POST", "/api/v1/matches", jsonBody(handler.MatchRequest{CandidateID: 1, JobID: 2}), jsonHeader).Code)
}

func TestBatchAndRecommendations(t *testing.T) {
	env := newTestEnv(t)
	env.rec.summary = types.BatchSummary{Total: 4, Completed: 3}
	env.rec.results = []*models.MatchResult{{CandidateID: 1, JobID: 3, Score: 90}}

	resp := env.do("POST", "/api/v1/matches/batch", jsonBody(handler.BatchRequest{CandidateIDs: []uint{1, 2}}), jsonHeader)
	require.Equal(t, 200, resp.Code, resp.Body.String())
	assert.Equal(t, []uint{1, 2}, env.rec.gotCIDs)

	resp = env.do("POST", "/api/v1/matches/batch", nil)
	assert.Equal(t, 200, resp.Code)
	assert.Nil(t, env.rec.gotCIDs)

	// 显式空数组与省略字段不同
	resp = env.do("POST", "/api/v1/matches/batch", bytes.NewBufferString(`{"candidateIds":[]}`), jsonHeader)
	assert.Equal(t, 200, resp.Code)
	require.NotNil(t, env.rec.gotCIDs)
	assert.Empty(t, env.rec.gotCIDs)

	resp = env.do("GET", "/api/v1/candidates/1/recommendations?limit=5", nil)
	require.Equal(t, 200, resp.Code)
	assert.Equal(t, 5, env.rec.lastLimit)
	assert.Contains(t, resp.Body.String(), `"score":90`)

	resp = env.do("GET", "/api/v1/jobs/3/recommendations?limit=bad", nil)
	require.Equal(t, 200, resp.Code)
	assert.Zero(t, env.rec.lastLimit)

	assert.Equal(t, 404, env.do("GET", "/api/v1/candidates/404/recommendations", nil).Code)
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, "secret-key")

	assert.Equal(t, 401, env.do("GET", "/api/v1/jobs/1", nil).Code)
	assert.Equal(t, 401, env.do("GET", "/api/v1/jobs/1", nil, ut.Header{Key: "X-API-Key", Value: "wrong"}).Code)
	assert.Equal(t, 404, env.do("GET", "/api/v1/jobs/1", nil, ut.Header{Key: "X-API-Key", Value: "secret-key"}).Code)

	// 健康检查不需要鉴权
	assert.Equal(t, 200, env.do("GET", "/api/v1/health", nil).Code)
}

func TestHealthDegraded(t *testing.T) {
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	h.GET("/health", handler.NewHealthHandler(map[string]handler.Pinger{"redis": failingPinger{}}).HandleHealth)

	resp := ut.PerformRequest(h.Engine, "GET", "/health", &ut.Body{Body: &bytes.Buffer{}, Len: 0})
	assert.Equal(t, 503, resp.Code)
	assert.Contains(t, resp.Body.String(), "connection refused")
}
