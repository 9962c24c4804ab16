package processor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"ai-recruit-go/internal/apperrors"
	"ai-recruit-go/internal/llm"
	"ai-recruit-go/internal/parser"
	"ai-recruit-go/internal/storage"
	"ai-recruit-go/internal/storage/models"
	"ai-recruit-go/internal/types"
)

func newTestStore(t *testing.T) *storage.MySQL {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "recruit.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	m, err := storage.OpenDatabase(sqlite.Open(dsn), "test", semconv.DBSystemSqlite, 1, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func seedCandidate(t *testing.T, m *storage.MySQL, name string, skills ...string) uint {
	t.Helper()
	c, err := models.NewCandidate(types.CandidateRecord{Name: name, Phone: "13800138000", Skills: skills}, "", nil)
	require.NoError(t, err)
	require.NoError(t, m.CreateCandidate(context.Background(), c))
	return c.ID
}

func seedJob(t *testing.T, m *storage.MySQL, title string, keywords ...string) uint {
	t.Helper()
	j := &models.Job{Title: title, Requirements: "3年以上后端经验", KeywordsJSON: models.EncodeStrings(keywords)}
	require.NoError(t, m.CreateJob(context.Background(), j))
	return j.ID
}

func newEvaluator(resp string, err error) (*parser.MatchEvaluator, *llm.MockChatModel) {
	mock := llm.NewMockChatModel(resp, err)
	return parser.NewMatchEvaluator(llm.NewChatCompleter(mock, time.Second, "match_eval"), zerolog.Nop()), mock
}

type fakeLocker struct {
	mu       sync.Mutex
	waitErr  error
	keys     []string
	released []string
}

func (l *fakeLocker) WaitLock(_ context.Context, key string, _, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.waitErr != nil {
		return "", l.waitErr
	}
	return "token", nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, key)
	return token == "token", nil
}

const analysisJSON = `{"score":82,"analysis":"整体匹配","strengths":["Strong Java background"],"weaknesses":["No Kafka experience"]}`

func TestComputeMatch(t *testing.T) {
	db := newTestStore(t)
	cid := seedCandidate(t, db, "张三", "Java", "Spring")
	jid := seedJob(t, db, "后端工程师", "Java", "Kafka")
	eval, mock := newEvaluator(analysisJSON, nil)
	locker := &fakeLocker{}

	svc := NewMatchService(db, db, db, eval, WithPairLock(locker, time.Minute), WithMatchLogger(zerolog.Nop()))
	r, err := svc.ComputeMatch(context.Background(), cid, jid)
	require.NoError(t, err)

	assert.Equal(t, 82.0, r.Score)
	assert.Equal(t, []string{"Java"}, r.MatchedKeywords())
	assert.Equal(t, []string{"Kafka"}, r.MissingKeywords())
	assert.Contains(t, r.Details, "匹配分数: 82.0")
	assert.Equal(t, []string{storage.MatchPairLockKey(cid, jid)}, locker.released)

	// 发给模型的内容包含两侧的规范文本
	msgs := mock.ReceivedMessages()
	require.Len(t, msgs, 1)
	user := msgs[0][len(msgs[0])-1].Content
	assert.Contains(t, user, "技能: Java, Spring")
	assert.Contains(t, user, "技能关键词: Java, Kafka")
}

func TestComputeMatchTwiceKeepsOneRow(t *testing.T) {
	db := newTestStore(t)
	cid := seedCandidate(t, db, "张三", "Java")
	jid := seedJob(t, db, "后端工程师", "Java")
	ctx := context.Background()

	eval, _ := newEvaluator(analysisJSON, nil)
	first, err := NewMatchService(db, db, db, eval, WithMatchLogger(zerolog.Nop())).ComputeMatch(ctx, cid, jid)
	require.NoError(t, err)

	eval, _ = newEvaluator(`{"score":64.56,"analysis":"重新评估","strengths":[],"weaknesses":[]}`, nil)
	second, err := NewMatchService(db, db, db, eval, WithMatchLogger(zerolog.Nop())).ComputeMatch(ctx, cid, jid)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 64.6, second.Score)
	assert.Contains(t, second.Details, "重新评估")
	// 没有优势提及时取前几个技能
	assert.Equal(t, []string{"Java"}, second.MatchedKeywords())

	var count int64
	require.NoError(t, db.DB().Model(&models.MatchResult{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestComputeMatchNotFound(t *testing.T) {
	db := newTestStore(t)
	cid := seedCandidate(t, db, "张三")
	jid := seedJob(t, db, "后端工程师")
	eval, mock := newEvaluator(analysisJSON, nil)
	svc := NewMatchService(db, db, db, eval, WithMatchLogger(zerolog.Nop()))

	_, err := svc.ComputeMatch(context.Background(), 999, jid)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.ComputeMatch(context.Background(), cid, 999)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Zero(t, mock.Calls())
}

func TestComputeMatchModelFailureStoresNothing(t *testing.T) {
	db := newTestStore(t)
	cid := seedCandidate(t, db, "张三")
	jid := seedJob(t, db, "后端工程师")
	eval, _ := newEvaluator("", errors.New("rate limited"))

	_, err := NewMatchService(db, db, db, eval, WithMatchLogger(zerolog.Nop())).ComputeMatch(context.Background(), cid, jid)
	require.Error(t, err)
	assert.True(t, apperrors.IsModel(err))

	_, err = db.GetMatchResult(context.Background(), cid, jid)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestComputeMatchLocking(t *testing.T) {
	db := newTestStore(t)
	cid := seedCandidate(t, db, "张三", "Java")
	jid := seedJob(t, db, "后端工程师", "Java")
	ctx := context.Background()

	eval, mock := newEvaluator(analysisJSON, nil)
	busy := &fakeLocker{waitErr: storage.ErrLockHeld}
	_, err := NewMatchService(db, db, db, eval, WithPairLock(busy, 0), WithMatchLogger(zerolog.Nop())).ComputeMatch(ctx, cid, jid)
	assert.ErrorIs(t, err, ErrPairBusy)
	assert.Zero(t, mock.Calls())

	// Redis 故障时不加锁继续
	broken := &fakeLocker{waitErr: errors.New("dial tcp: connection refused")}
	r, err := NewMatchService(db, db, db, eval, WithPairLock(broken, 0), WithMatchLogger(zerolog.Nop())).ComputeMatch(ctx, cid, jid)
	require.NoError(t, err)
	assert.Equal(t, 82.0, r.Score)
	assert.Empty(t, broken.released)
}
