package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/and161185/chat-directory/internal/errs"
	"github.com/and161185/chat-directory/internal/model"
	"github.com/and161185/chat-directory/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWordLimit is the number of words kept in a preview.
	DefaultWordLimit = 13
	// DefaultPlaceholder is shown when a pair has no message yet.
	DefaultPlaceholder = "No messages yet"
	// Ellipsis marks a truncated preview.
	Ellipsis = "..."
	// DefaultLookupConcurrency bounds parallel last-message lookups.
	DefaultLookupConcurrency = 8
)

// Truncate keeps the first wordLimit whitespace-separated words of message.
// A message that fits is returned unchanged; otherwise the kept words are
// joined by single spaces and Ellipsis is appended.
func Truncate(message string, wordLimit int) (string, error) {
	if wordLimit <= 0 {
		return "", fmt.Errorf("truncate: word limit %d: %w", wordLimit, errs.ErrInvalidInput)
	}
	words := strings.Fields(message)
	if len(words) <= wordLimit {
		return message, nil
	}
	return strings.Join(words[:wordLimit], " ") + Ellipsis, nil
}

// ConversationService lists a viewer's conversations.
type ConversationService interface {
	// ListFor returns every other user with a preview of the latest message,
	// most recently active first.
	ListFor(ctx context.Context, viewer uuid.UUID) ([]model.ConversationSummary, error)
	// Truncate shortens a message body to wordLimit words.
	Truncate(message string, wordLimit int) (string, error)
}

// ConversationConfig holds product constants of the conversation list.
type ConversationConfig struct {
	WordLimit   int
	Placeholder string
	Concurrency int
}

type ConversationServiceImpl struct {
	dir     DirectoryService
	history repository.MessageHistory
	cfg     ConversationConfig
	log     *zap.Logger
}

// NewConversationService constructs the index; zero config values fall back to defaults.
func NewConversationService(dir DirectoryService, history repository.MessageHistory, cfg ConversationConfig, log *zap.Logger) *ConversationServiceImpl {
	if cfg.WordLimit <= 0 {
		cfg.WordLimit = DefaultWordLimit
	}
	if strings.TrimSpace(cfg.Placeholder) == "" {
		cfg.Placeholder = DefaultPlaceholder
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultLookupConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversationServiceImpl{dir: dir, history: history, cfg: cfg, log: log}
}

// Truncate implements ConversationService.
func (s *ConversationServiceImpl) Truncate(message string, wordLimit int) (string, error) {
	return Truncate(message, wordLimit)
}

// ListFor joins the directory with the message history. Any failed lookup
// fails the whole listing.
func (s *ConversationServiceImpl) ListFor(ctx context.Context, viewer uuid.UUID) ([]model.ConversationSummary, error) {
	if viewer == uuid.Nil {
		return nil, fmt.Errorf("list conversations: empty viewer: %w", errs.ErrInvalidInput)
	}
	users, err := s.dir.ListAllExcept(ctx, viewer)
	if err != nil {
		return nil, err
	}

	out := make([]model.ConversationSummary, len(users))
	keep := make([]bool, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range users {
		if u.ID == viewer {
			continue
		}
		keep[i] = true
		g.Go(func() error {
			m, ok, err := s.history.LastMessage(gctx, viewer, u.ID)
			if err != nil {
				return fmt.Errorf("last message with %s: %w", u.ID, err)
			}
			out[i] = s.summarize(u, m, ok)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.Classify("list conversations", err)
	}

	res := make([]model.ConversationSummary, 0, len(out))
	for i, sum := range out {
		if keep[i] {
			res = append(res, sum)
		}
	}
	SortConversations(res)
	s.log.Debug("conversations listed", zap.String("viewer", viewer.String()), zap.Int("count", len(res)))
	return res, nil
}

func (s *ConversationServiceImpl) summarize(u model.User, m model.LastMessage, ok bool) model.ConversationSummary {
	sum := model.ConversationSummary{Counterpart: u, PreviewText: s.cfg.Placeholder}
	if !ok {
		return sum
	}
	sum.LastMessageAt = m.At
	if strings.TrimSpace(m.Body) == "" {
		return sum
	}
	// the limit is validated at construction, so Truncate cannot fail here
	sum.PreviewText, _ = Truncate(m.Body, s.cfg.WordLimit)
	sum.HasMessage = true
	return sum
}

// SortConversations orders summaries with a known timestamp first, newest
// first; the rest follow. Ties and unknown timestamps fall back to username.
func SortConversations(list []model.ConversationSummary) {
	slices.SortStableFunc(list, func(a, b model.ConversationSummary) int {
		az, bz := a.LastMessageAt.IsZero(), b.LastMessageAt.IsZero()
		switch {
		case az && !bz:
			return 1
		case !az && bz:
			return -1
		case !az && !bz:
			if c := b.LastMessageAt.Compare(a.LastMessageAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Counterpart.Username, b.Counterpart.Username)
	})
}
