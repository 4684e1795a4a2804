package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deepnotes/internal/domain"
)

// GuidanceMessage is the reply given when no document is selected.
const GuidanceMessage = "I'd be happy to help you analyze documents! Please upload a PDF, Word document, or email file first, select it as a source, then ask me anything about its content."

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrBusy          = errors.New("a question is already being answered")
)

// State is the lifecycle state of the most recent question.
type State string

const (
	StateIdle      State = "idle"
	StatePending   State = "pending"
	StateAnswered  State = "answered"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Outcome is the terminal result of one question. Failures are data.
type Outcome struct {
	State State
	// Reply is set only when State is StateAnswered.
	Reply domain.Turn
	Err   error
}

// Engine owns the append-only conversation history and the in-flight flag.
type Engine struct {
	mu       sync.Mutex
	answerer domain.Answerer
	log      *zap.Logger
	now      func() time.Time
	turns    []domain.Turn
	state    State
	lastErr  error
	seq      uint64
}

func New(answerer domain.Answerer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{answerer: answerer, log: log.Named("conversation"), now: time.Now, state: StateIdle}
}

// Exchange is a question that has been accepted and awaits its answer.
type Exchange struct {
	engine   *Engine
	seq      uint64
	question string
	selected []string
	// Question is the user turn appended by Begin.
	Question domain.Turn
}

// Begin validates the question, appends the user turn and enters pending.
func (e *Engine) Begin(question string, selected []string) (*Exchange, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePending {
		return nil, ErrBusy
	}
	turn := domain.Turn{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Text:      question,
		CreatedAt: e.now(),
	}
	e.turns = append(e.turns, turn)
	e.state = StatePending
	e.lastErr = nil
	e.seq++
	return &Exchange{
		engine:   e,
		seq:      e.seq,
		question: question,
		selected: append([]string(nil), selected...),
		Question: turn,
	}, nil
}

// Submit asks a question and waits for its outcome.
func (e *Engine) Submit(ctx context.Context, question string, selected []string) (Outcome, error) {
	ex, err := e.Begin(question, selected)
	if err != nil {
		return Outcome{}, err
	}
	return ex.Resolve(ctx), nil
}

// Resolve dispatches the exchange and appends the reply. It must be called
// exactly once per exchange.
func (x *Exchange) Resolve(ctx context.Context) Outcome {
	e := x.engine
	if len(x.selected) == 0 {
		return e.finish(ctx, x.seq, domain.AnswerResponse{Text: GuidanceMessage, Confidence: domain.ConfidenceNone}, nil)
	}

	type reply struct {
		resp domain.AnswerResponse
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := e.answerer.Answer(ctx, domain.AnswerRequest{Question: x.question, DocumentIDs: x.selected})
		done <- reply{resp, err}
	}()
	select {
	case r := <-done:
		return e.finish(ctx, x.seq, normalize(r.resp), r.err)
	case <-ctx.Done():
		return e.finish(ctx, x.seq, domain.AnswerResponse{}, ctx.Err())
	}
}

// finish appends the reply and leaves pending in one critical section, so
// in-flight never reads false while the user turn is unanswered.
func (e *Engine) finish(ctx context.Context, seq uint64, resp domain.AnswerResponse, err error) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seq || e.state != StatePending {
		return Outcome{State: e.state, Err: e.lastErr}
	}
	if err == nil {
		err = ctx.Err()
	}
	switch {
	case err != nil && ctx.Err() != nil:
		e.state = StateCancelled
		e.lastErr = err
		e.log.Info("question cancelled", zap.Error(err))
		return Outcome{State: StateCancelled, Err: err}
	case err != nil:
		e.state = StateFailed
		e.lastErr = err
		e.log.Warn("answering failed", zap.Error(err))
		return Outcome{State: StateFailed, Err: err}
	}
	turn := domain.Turn{
		ID:         uuid.NewString(),
		Role:       domain.RoleAssistant,
		Text:       resp.Text,
		CreatedAt:  e.now(),
		Citations:  resp.Citations,
		Confidence: resp.Confidence,
	}
	e.turns = append(e.turns, turn)
	e.state = StateAnswered
	e.log.Debug("question answered",
		zap.String("confidence", string(turn.Confidence)),
		zap.Int("citations", len(turn.Citations)))
	return Outcome{State: StateAnswered, Reply: turn}
}

// normalize keeps collaborator grades inside high/medium/low.
func normalize(resp domain.AnswerResponse) domain.AnswerResponse {
	switch resp.Confidence {
	case domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow:
	default:
		resp.Confidence = domain.ConfidenceLow
	}
	resp.Citations = append([]domain.Citation(nil), resp.Citations...)
	return resp
}

// History returns a copy of all turns in append order.
func (e *Engine) History() []domain.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

func (e *Engine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StatePending
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError is the failure of the most recent question, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}
