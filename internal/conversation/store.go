// Package conversation holds the client-side chat log and the latest hiring profile.
package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/recruitgenie/internal/gateway"
	"github.com/spigell/recruitgenie/internal/logger"
	"github.com/spigell/recruitgenie/internal/recommend"
	"github.com/spigell/recruitgenie/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	InitErrorID   = "error-init"
	InitErrorText = "Could not connect to the backend. Please ensure it is running and try refreshing the page."
	SendErrorText = "I'm having trouble connecting to the server. Please try again later."

	maxLogLength = 120
)

var (
	// ErrBusy is returned when a message is submitted while another call is outstanding.
	ErrBusy = errors.New("a request is already in progress")
	// ErrEmptyMessage is returned for blank submissions.
	ErrEmptyMessage = errors.New("message is empty")
)

// Gateway is the remote side of the conversation.
type Gateway interface {
	FetchHistory(ctx context.Context, sessionID string) ([]gateway.Message, error)
	FetchExtractedData(ctx context.Context, sessionID string) (*gateway.ExtractedData, error)
	SendMessage(ctx context.Context, sessionID, text string) (*gateway.ChatResponse, error)
}

// Store is an append-only log of turns plus the latest extracted profile.
// Entries are never reordered or removed once appended.
type Store struct {
	gateway   Gateway
	sessionID string
	logger    *zap.Logger
	now       func() time.Time
	onChange  func()

	mu        sync.RWMutex
	messages  []gateway.Message
	extracted *gateway.ExtractedData
	loading   bool
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the time source used for local message ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithOnChange registers fn to run after Submit appends a turn. It is called without the lock held,
// so fn may read the Store.
func WithOnChange(fn func()) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

func New(gw Gateway, sessionID string, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		gateway:   gw,
		sessionID: sessionID,
		logger:    logger.WithSession(log, sessionID),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load fetches the stored history and profile. Both requests run concurrently.
// When either request fails the conversation is replaced by a single error message.
// An unreadable profile is not a failure: the history loads without one.
func (s *Store) Load(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	var (
		history   []gateway.Message
		extracted *gateway.ExtractedData
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.gateway.FetchHistory(gctx, s.sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		extracted, err = s.gateway.FetchExtractedData(gctx, s.sessionID)
		if errors.Is(err, gateway.ErrMalformed) {
			// the backend is reachable, so the history is still shown without a profile
			s.logger.Warn("ignoring unreadable profile", zap.Error(err))
			extracted = nil
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("failed to fetch initial data", zap.Error(err))

		s.mu.Lock()
		s.messages = []gateway.Message{{ID: InitErrorID, Role: gateway.RoleModel, Text: InitErrorText}}
		s.extracted = nil
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.messages = append([]gateway.Message(nil), history...)
	s.extracted = extracted
	s.mu.Unlock()

	s.logger.Debug("loaded conversation", zap.Int("messages", len(history)), zap.Bool("has_profile", extracted != nil))
}

// Submit appends the user message right away, then waits for the reply.
// A failed exchange appends an apology instead of the reply; the user message stays.
func (s *Store) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loading = true
	sentAt := s.now().UnixMilli()
	s.messages = append(s.messages, gateway.Message{
		ID:   strconv.FormatInt(sentAt, 10),
		Role: gateway.RoleUser,
		Text: text,
	})
	s.mu.Unlock()
	s.notify()

	resp, err := s.gateway.SendMessage(ctx, s.sessionID, text)

	reply := gateway.Message{ID: strconv.FormatInt(sentAt+1, 10), Role: gateway.RoleModel, Text: SendErrorText}
	if err != nil {
		s.logger.Warn("failed to send message", zap.Error(err))
	} else {
		reply.Text = resp.Response
		s.logger.Debug("got reply", zap.String("preview", utils.TruncateForLog(resp.Response, maxLogLength)))
	}

	s.mu.Lock()
	s.messages = append(s.messages, reply)
	if err == nil {
		s.extracted = resp.ExtractedData
	}
	s.loading = false
	s.mu.Unlock()
	s.notify()

	return nil
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Messages returns a copy of the conversation in append order.
func (s *Store) Messages() []gateway.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]gateway.Message(nil), s.messages...)
}

// LastReply returns the most recent assistant message.
func (s *Store) LastReply() (gateway.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == gateway.RoleModel {
			return s.messages[i], true
		}
	}

	return gateway.Message{}, false
}

// Extracted returns a copy of the latest hiring profile, or nil when there is none.
func (s *Store) Extracted() *gateway.ExtractedData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.extracted.Clone()
}

// Recommendation derives the suggested service from the current profile.
func (s *Store) Recommendation() (recommend.Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return recommend.Recommend(s.extracted)
}

// Loading reports whether a backend call is outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loading
}

func (s *Store) SessionID() string {
	return s.sessionID
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
