// AngelaMos | 2026
// service_test.go

package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/plan"
)

type memRepo struct {
	msgs []Message
}

func (m *memRepo) Create(_ context.Context, msgs ...*Message) error {
	for _, msg := range msgs {
		m.msgs = append(m.msgs, *msg)
	}
	return nil
}

func (m *memRepo) Recent(_ context.Context, userID string, limit int) ([]Message, error) {
	var out []Message
	for _, msg := range m.msgs {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memRepo) List(_ context.Context, userID string, _ core.PageParams) ([]Message, int, error) {
	out, _ := m.Recent(context.Background(), userID, len(m.msgs))
	return out, len(out), nil
}

func (m *memRepo) CountSince(_ context.Context, userID, role string, since time.Time) (int, error) {
	n := 0
	for _, msg := range m.msgs {
		if msg.UserID == userID && msg.Role == role && !msg.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) DeleteAll(_ context.Context, userID string) (int64, error) {
	kept := m.msgs[:0]
	var n int64
	for _, msg := range m.msgs {
		if msg.UserID == userID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.msgs = kept
	return n, nil
}

type scriptedCompleter struct {
	reply    string
	err      error
	requests []CompletionRequest
}

func (c *scriptedCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	c.requests = append(c.requests, req)
	return c.reply, c.err
}

type memCounter struct {
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newMemCounter() *memCounter {
	return &memCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (c *memCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	c.ttls[key] = ttl
	return c.counts[key], nil
}

func (c *memCounter) Decr(_ context.Context, key string) error {
	if c.err != nil {
		return c.err
	}
	c.counts[key]--
	return nil
}

type staticTier string

func (s staticTier) GetTier(context.Context, string) (string, error) {
	return string(s), nil
}

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(tier string, history int) (*Service, *memRepo, *scriptedCompleter) {
	repo := &memRepo{}
	completer := &scriptedCompleter{reply: "Post a teaser on Tuesday."}
	svc := NewService(
		repo,
		completer,
		staticTier(tier),
		newMemCounter(),
		history,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, completer
}

func TestSendStoresBothTurns(t *testing.T) {
	svc, repo, completer := newTestService(plan.TierPro, 0)

	ex, err := svc.Send(context.Background(), "u1", "  How do I grow on TikTok?  ")
	require.NoError(t, err)
	assert.Equal(t, "How do I grow on TikTok?", ex.Question.Content)
	assert.Equal(t, "Post a teaser on Tuesday.", ex.Answer.Content)
	assert.Len(t, repo.msgs, 2)

	require.Len(t, completer.requests, 1)
	msgs := completer.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Aura")
	assert.Contains(t, msgs[0].Content, "Pro plan")
}

func TestSendIncludesHistoryWindow(t *testing.T) {
	svc, repo, completer := newTestService(plan.TierPro, 2)
	for i := range 3 {
		repo.msgs = append(repo.msgs, Message{
			UserID:    "u1",
			Role:      RoleUser,
			Content:   "old",
			CreatedAt: fixedNow.Add(-time.Duration(3-i) * time.Hour),
		})
	}

	_, err := svc.Send(context.Background(), "u1", "new question")
	require.NoError(t, err)

	msgs := completer.requests[0].Messages
	assert.Len(t, msgs, 4)
	assert.Equal(t, "new question", msgs[3].Content)
}

func TestSendFreeTierDailyQuota(t *testing.T) {
	svc, _, completer := newTestService(plan.TierFree, 0)

	for range FreeDailyMessages {
		_, err := svc.Send(context.Background(), "u1", "tip please")
		require.NoError(t, err)
	}

	_, err := svc.Send(context.Background(), "u1", "one more")
	assert.ErrorIs(t, err, core.ErrLimitExceeded)
	assert.Len(t, completer.requests, FreeDailyMessages)

	counter := svc.quota.(*memCounter)
	key := quotaKey("u1", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, int64(FreeDailyMessages), counter.counts[key])
	assert.Equal(t, 13*time.Hour, counter.ttls[key])
}

func TestClearDoesNotResetQuota(t *testing.T) {
	svc, repo, completer := newTestService(plan.TierFree, 0)

	for range FreeDailyMessages {
		_, err := svc.Send(context.Background(), "u1", "tip please")
		require.NoError(t, err)
	}

	_, err := svc.Clear(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, repo.msgs)

	_, err = svc.Send(context.Background(), "u1", "fresh start?")
	assert.ErrorIs(t, err, core.ErrLimitExceeded)
	assert.Len(t, completer.requests, FreeDailyMessages)
}

func TestQuotaRefundedWhenCompletionFails(t *testing.T) {
	svc, _, completer := newTestService(plan.TierFree, 0)
	completer.err = core.ErrUpstream

	_, err := svc.Send(context.Background(), "u1", "hello")
	require.ErrorIs(t, err, core.ErrUpstream)

	counter := svc.quota.(*memCounter)
	assert.Equal(t, int64(0), counter.counts[quotaKey("u1", fixedNow)])
}

func TestQuotaFallsBackToHistory(t *testing.T) {
	svc, repo, completer := newTestService(plan.TierFree, 0)
	svc.quota.(*memCounter).err = errors.New("redis down")
	for range FreeDailyMessages {
		repo.msgs = append(repo.msgs, Message{UserID: "u1", Role: RoleUser, CreatedAt: fixedNow.Add(-time.Hour)})
	}

	_, err := svc.Send(context.Background(), "u1", "one more")
	assert.ErrorIs(t, err, core.ErrLimitExceeded)
	assert.Empty(t, completer.requests)
}

func TestPaidTierSkipsQuota(t *testing.T) {
	svc, _, _ := newTestService(plan.TierCreator, 0)

	_, err := svc.Send(context.Background(), "u1", "hi")
	require.NoError(t, err)
	assert.Empty(t, svc.quota.(*memCounter).counts)
}

func TestSendMessageLengthCountsCharacters(t *testing.T) {
	svc, _, _ := newTestService(plan.TierPro, 0)

	_, err := svc.Send(context.Background(), "u1", strings.Repeat("é", MaxMessageLength))
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), "u1", strings.Repeat("é", MaxMessageLength+1))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSendFailureStoresNothing(t *testing.T) {
	svc, repo, completer := newTestService(plan.TierCreator, 0)
	completer.err = core.ErrUpstream

	_, err := svc.Send(context.Background(), "u1", "hello")
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Empty(t, repo.msgs)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	svc, _, _ := newTestService(plan.TierPro, 0)

	_, err := svc.Send(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAnalyzeFileStripsFence(t *testing.T) {
	svc, _, completer := newTestService(plan.TierPro, 0)
	completer.reply = "```json\n{\"kind\":\"track\",\"summary\":\"A demo.\",\"suggestions\":[]}\n```"

	doc, err := svc.AnalyzeFile(context.Background(), FileMeta{
		Name:        "demo.mp3",
		ContentType: "audio/mpeg",
		SizeBytes:   1024,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"track","summary":"A demo.","suggestions":[]}`, string(doc))
	assert.True(t, completer.requests[0].JSON)
}

func TestAnalyzeFileRejectsInvalidJSON(t *testing.T) {
	svc, _, completer := newTestService(plan.TierPro, 0)
	completer.reply = "not json"

	_, err := svc.AnalyzeFile(context.Background(), FileMeta{Name: "x.png"})
	assert.ErrorIs(t, err, core.ErrUpstream)
}

func TestClear(t *testing.T) {
	svc, repo, _ := newTestService(plan.TierPro, 0)
	repo.msgs = []Message{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u1"}}

	n, err := svc.Clear(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, repo.msgs, 1)
}
