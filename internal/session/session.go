// Package session holds the per-browser conversation state and the
// transitions that are allowed to change it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"redisquery-backend/internal/models"
	"redisquery-backend/internal/services"
)

// CustomContext is the example index reported once the context no longer
// comes from the catalog.
const CustomContext = -1

// Generator produces a result for one user turn.
type Generator interface {
	Generate(ctx context.Context, schemaCtx models.SchemaContext, history []models.Message, userInput string) (*models.GenerationResult, error)
}

type Outcome int

const (
	OutcomeCommitted Outcome = iota
	OutcomeRolledBack
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeRolledBack:
		return "rolled back"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Turn is an in-flight send. History is the conversation as it stood before
// the user message was appended.
type Turn struct {
	SessionID  uuid.UUID
	Generation uint64
	Index      int
	Query      string
	Context    models.SchemaContext
	History    []models.Message
}

type Session struct {
	ID uuid.UUID

	// pubMu is held from mutation through delivery so subscribers see
	// snapshots in seq order.
	pubMu sync.Mutex

	mu           sync.Mutex
	seq          uint64
	context      models.SchemaContext
	messages     []models.Message
	input        string
	loading      bool
	err          string
	exampleIndex int
	generation   uint64
	lastActive   time.Time

	notify func(models.ConversationState)
}

func New(exampleIndex int, example models.Example) *Session {
	return &Session{
		ID:           uuid.New(),
		context:      example.Context(),
		input:        example.Query,
		exampleIndex: exampleIndex,
		lastActive:   time.Now(),
	}
}

// Begin starts a turn. Blank queries and sends while another turn is in
// flight are ignored and leave the session untouched.
func (s *Session) Begin(query string) (Turn, bool) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if strings.TrimSpace(query) == "" || s.loading {
		s.mu.Unlock()
		return Turn{}, false
	}

	history := cloneMessages(s.messages)
	sent := services.BuildUserTurn(s.context, history, query)

	s.messages = append(s.messages, models.NewUserMessage(query, sent))
	s.err = ""
	s.input = ""
	s.loading = true
	s.lastActive = time.Now()

	turn := Turn{
		SessionID:  s.ID,
		Generation: s.generation,
		Index:      len(s.messages) - 1,
		Query:      query,
		Context:    s.context,
		History:    history,
	}
	state := s.nextSnapshotLocked()
	s.mu.Unlock()

	s.publish(state)
	return turn, true
}

// Finish commits a successful turn or rolls back a failed one. Turns that
// started before the last reset are discarded.
func (s *Session) Finish(turn Turn, result *models.GenerationResult, genErr error) Outcome {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if turn.Generation != s.generation {
		s.mu.Unlock()
		return OutcomeStale
	}

	if genErr == nil && result == nil {
		genErr = errors.New("Something went wrong")
	}

	var outcome Outcome
	if genErr == nil {
		s.messages = append(s.messages, models.NewModelMessage(*result))
		outcome = OutcomeCommitted
	} else {
		if turn.Index >= 0 && turn.Index < len(s.messages) {
			s.messages = append(s.messages[:turn.Index], s.messages[turn.Index+1:]...)
		}
		s.input = turn.Query
		s.err = genErr.Error()
		if s.err == "" {
			s.err = "Something went wrong"
		}
		outcome = OutcomeRolledBack
	}
	s.loading = false
	s.lastActive = time.Now()
	state := s.nextSnapshotLocked()
	s.mu.Unlock()

	s.publish(state)
	return outcome
}

// Run performs the generation call for a started turn and finishes it.
func (s *Session) Run(ctx context.Context, turn Turn, gen Generator) Outcome {
	result, err := gen.Generate(ctx, turn.Context, turn.History, turn.Query)
	return s.Finish(turn, result, err)
}

// Send is Begin followed by Run. The bool is false when the send was ignored.
func (s *Session) Send(ctx context.Context, query string, gen Generator) (Outcome, bool) {
	turn, ok := s.Begin(query)
	if !ok {
		return 0, false
	}
	return s.Run(ctx, turn, gen), true
}

// Clear empties the transcript. Context and the error banner stay.
func (s *Session) Clear() {
	s.update(func() {
		s.messages = nil
		s.loading = false
		s.generation++
	})
}

// SelectExample replaces the whole context with the example and starts a new
// conversation.
func (s *Session) SelectExample(index int, example models.Example) {
	s.update(func() {
		s.resetLocked(example.Context())
		s.exampleIndex = index
		s.input = example.Query
	})
}

// ReplaceContext swaps in a context that did not come from the catalog, such
// as one produced by schema discovery.
func (s *Session) ReplaceContext(ctx models.SchemaContext) {
	s.update(func() {
		s.resetLocked(ctx)
		s.exampleIndex = CustomContext
	})
}

// UpdateContext edits individual context fields without touching the
// conversation.
func (s *Session) UpdateContext(patch models.ContextPatch) {
	s.update(func() {
		s.context = s.context.Apply(patch)
	})
}

// SetInput stores the draft input. Drafts arriving while a turn is in flight
// are dropped: the input was cleared by the send they raced with.
func (s *Session) SetInput(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading {
		return false
	}
	s.input = text
	s.lastActive = time.Now()
	return true
}

func (s *Session) Snapshot() models.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive), s.loading
}

func (s *Session) resetLocked(ctx models.SchemaContext) {
	s.context = ctx
	s.messages = nil
	s.err = ""
	s.loading = false
	s.generation++
	s.lastActive = time.Now()
}

// update applies fn as one published transition.
func (s *Session) update(fn func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	fn()
	s.lastActive = time.Now()
	state := s.nextSnapshotLocked()
	s.mu.Unlock()

	s.publish(state)
}

func (s *Session) nextSnapshotLocked() models.ConversationState {
	s.seq++
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.ConversationState {
	return models.ConversationState{
		SessionID:    s.ID.String(),
		Seq:          s.seq,
		Context:      s.context,
		Messages:     cloneMessages(s.messages),
		Input:        s.input,
		Loading:      s.loading,
		Error:        s.err,
		ExampleIndex: s.exampleIndex,
		Generation:   s.generation,
	}
}

func (s *Session) publish(state models.ConversationState) {
	if s.notify != nil {
		s.notify(state)
	}
}

func cloneMessages(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		if m.Result != nil {
			r := *m.Result
			m.Result = &r
		}
		out[i] = m
	}
	return out
}
