// AngelaMos | 2026
// service.go

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/metrics"
	"github.com/auramanager/aura-api/internal/plan"
)

const (
	DefaultHistory = 20
	// FreeDailyMessages caps messages a free account may send per UTC day.
	FreeDailyMessages = 20
	MaxMessageLength  = 4000
)

const persona = `You are Aura, a seasoned artist manager working for an independent musician.
Give concrete, practical advice on releases, promotion, touring, streaming growth and fan engagement.
Be warm but direct. Keep answers short unless asked for detail, and use plain language.
Never invent statistics about the artist; if you need numbers, ask for them.`

const analysisPrompt = `You analyse files an independent musician uploads to their dashboard.
You only see the file's metadata, never its contents.
Reply with a single JSON object with these keys:
"kind" (one of "track", "artwork", "photo", "other"),
"summary" (one sentence),
"suggestions" (array of up to three short strings on how to use the file in promotion).`

var errEmptyReply = errors.New("empty reply")

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type TierLookup interface {
	GetTier(ctx context.Context, userID string) (string, error)
}

// QuotaCounter keeps the daily message count outside chat history, so
// clearing history does not give messages back.
type QuotaCounter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) error
}

type Service struct {
	repo      Repository
	completer Completer
	tiers     TierLookup
	quota     QuotaCounter
	history   int
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	completer Completer,
	tiers TierLookup,
	quota QuotaCounter,
	history int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if history <= 0 {
		history = DefaultHistory
	}

	return &Service{
		repo:      repo,
		completer: completer,
		tiers:     tiers,
		quota:     quota,
		history:   history,
		metrics:   m,
		logger:    logger.With("component", "assistant"),
		now:       time.Now,
	}
}

// Send answers content in the context of the user's recent conversation
// and stores both turns.
func (s *Service) Send(ctx context.Context, userID, content string) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, core.ValidationError("message is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, core.ValidationError(
			fmt.Sprintf("message must be at most %d characters", MaxMessageLength),
		)
	}

	tier, err := s.tiers.GetTier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}
	refund, err := s.reserve(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.Recent(ctx, userID, s.history)
	if err != nil {
		return nil, err
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: systemPrompt(tier)})
	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: content})

	reply, err := s.complete(ctx, CompletionRequest{
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		refund()
		return nil, err
	}

	now := s.now().UTC()
	question := &Message{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: now,
	}
	answer := &Message{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      RoleAssistant,
		Content:   reply,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.repo.Create(ctx, question, answer); err != nil {
		return nil, err
	}

	return &Exchange{Question: question, Answer: answer}, nil
}

func (s *Service) History(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Message, int, error) {
	return s.repo.List(ctx, userID, page)
}

func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("chat history cleared", "user_id", userID, "messages", n)
	return n, nil
}

// PurgeAccount removes the chat history of a deleted account.
func (s *Service) PurgeAccount(ctx context.Context, userID string) error {
	_, err := s.Clear(ctx, userID)
	return err
}

// AnalyzeFile asks the model for a JSON description of an upload. The
// returned document is the model's object, validated as JSON.
func (s *Service) AnalyzeFile(ctx context.Context, meta FileMeta) (json.RawMessage, error) {
	described, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal file metadata: %w", err)
	}

	reply, err := s.complete(ctx, CompletionRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: analysisPrompt},
			{Role: RoleUser, Content: string(described)},
		},
		Temperature: 0.2,
		MaxTokens:   400,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	reply = stripCodeFence(reply)
	if !json.Valid([]byte(reply)) {
		return nil, fmt.Errorf("analyze file: model returned invalid JSON: %w", core.ErrUpstream)
	}

	return json.RawMessage(reply), nil
}

func (s *Service) complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	reply, err := s.completer.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.AssistantCall("error", elapsed)
		s.logger.Warn("assistant completion failed", "error", err, "elapsed", elapsed)
		return "", err
	}

	if reply == "" {
		s.metrics.AssistantCall("empty", elapsed)
		return "", fmt.Errorf("assistant: %w: %w", errEmptyReply, core.ErrUpstream)
	}

	s.metrics.AssistantCall("ok", elapsed)
	return reply, nil
}

// reserve takes one message from a free account's daily allowance. The
// returned func hands it back when no reply was produced. When the counter
// is unreachable the stored messages of the day are counted instead.
func (s *Service) reserve(ctx context.Context, userID, tier string) (func(), error) {
	noop := func() {}
	if tier != plan.TierFree {
		return noop, nil
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	key := quotaKey(userID, dayStart)
	ttl := dayStart.Add(24*time.Hour).Sub(now) + time.Hour

	if s.quota != nil {
		used, err := s.quota.Incr(ctx, key, ttl)
		if err == nil {
			refund := func() {
				if err := s.quota.Decr(ctx, key); err != nil {
					s.logger.Warn("refund assistant quota", "user_id", userID, "error", err)
				}
			}
			if used > FreeDailyMessages {
				refund()
				return nil, quotaExceeded()
			}
			return refund, nil
		}
		s.logger.Warn("assistant quota counter unavailable, counting history",
			"user_id", userID,
			"error", err,
		)
	}

	sent, err := s.repo.CountSince(ctx, userID, RoleUser, dayStart)
	if err != nil {
		return nil, err
	}
	if sent >= FreeDailyMessages {
		return nil, quotaExceeded()
	}

	return noop, nil
}

func quotaKey(userID string, day time.Time) string {
	return "assistant:quota:" + userID + ":" + day.Format("20060102")
}

func quotaExceeded() error {
	return core.LimitExceededError(fmt.Sprintf(
		"the free plan includes %d assistant messages per day; upgrade for unlimited chat",
		FreeDailyMessages,
	))
}

func systemPrompt(tier string) string {
	name := tier
	if p, ok := plan.Lookup(tier); ok {
		name = p.Name
	}
	return persona + "\nThe artist is on the " + name + " plan of Aura Manager."
}

// stripCodeFence removes a ```json fence some models wrap around output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
