package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	nodex "github.com/MazarSayed/stock-platform/agent/nodes"
	statex "github.com/MazarSayed/stock-platform/agent/state"
	"github.com/MazarSayed/stock-platform/pkg/keylock"
	"github.com/MazarSayed/stock-platform/pkg/metrics"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidThread  = statex.ErrInvalidThread
)

type Config struct {
	// MaxRunSteps bounds graph supersteps per turn. One turn needs
	// supervisor, specialist, supervisor.
	MaxRunSteps int
}

type Orchestrator struct {
	checkpoints statex.Checkpointer
	models      contractx.Registry
	members     []contractx.AgentName

	graphRunner compose.Runnable[*contractx.ConversationState, *contractx.ConversationState]
	locks       *keylock.Locker
	maxRunSteps int

	now func() time.Time
}

// TurnResult is the outcome of one user turn. Agent is empty when no
// specialist answered.
type TurnResult struct {
	Response string
	Agent    contractx.AgentName
	Messages []contractx.Message
}

func New(
	checkpoints statex.Checkpointer,
	models contractx.Registry,
	cfg Config,
) (*Orchestrator, error) {
	if checkpoints == nil {
		return nil, errors.New("checkpointer is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if models.Router() == nil {
		return nil, errors.New("router decider is required")
	}
	for _, name := range contractx.Members {
		if sp, ok := models.Specialist(name); !ok || sp == nil {
			return nil, fmt.Errorf("specialist %s is required", name)
		}
	}

	maxRunSteps := cfg.MaxRunSteps
	if maxRunSteps <= 0 {
		maxRunSteps = 10
	}

	o := &Orchestrator{
		checkpoints: checkpoints,
		models:      models,
		members:     append([]contractx.AgentName(nil), contractx.Members...),
		locks:       keylock.New(),
		maxRunSteps: maxRunSteps,
		now:         time.Now,
	}

	graphRunner, err := o.compileConversationGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Turn is a finished graph run whose checkpoint is not yet written. The
// thread stays locked until Release. Commit writes the new state; Revert
// puts back what the thread held before Commit.
type Turn interface {
	Result() TurnResult
	Commit(ctx context.Context) error
	Revert(ctx context.Context) error
	Release()
}

// HandleMessage runs one turn for threadID and commits it. Turns on the
// same thread are serialized. The checkpoint is written only when the
// whole turn succeeds.
func (o *Orchestrator) HandleMessage(ctx context.Context, threadID string, sessionID string, text string) (TurnResult, error) {
	turn, err := o.Begin(ctx, threadID, sessionID, text)
	if err != nil {
		return TurnResult{}, err
	}
	defer turn.Release()

	if err := turn.Commit(ctx); err != nil {
		log.Error().Err(err).Str("thread_id", threadID).Str("session_id", sessionID).Msg("turn failed")
		return TurnResult{}, err
	}
	return turn.Result(), nil
}

// Begin runs the graph for one turn without touching the checkpoint. The
// caller must Release the returned turn.
func (o *Orchestrator) Begin(ctx context.Context, threadID string, sessionID string, text string) (Turn, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	unlock, err := o.locks.LockContext(ctx, threadID)
	if err != nil {
		return nil, err
	}

	started := o.now()
	turn, err := o.runTurn(ctx, threadID, sessionID, text)
	if err != nil {
		unlock()
		metrics.RecordTurn("", o.now().Sub(started), err)
		log.Error().Err(err).Str("thread_id", threadID).Str("session_id", sessionID).Msg("turn failed")
		return nil, err
	}
	metrics.RecordTurn(string(turn.result.Agent), o.now().Sub(started), nil)

	turn.unlock = unlock
	log.Info().
		Str("thread_id", threadID).
		Str("session_id", sessionID).
		Str("agent", string(turn.result.Agent)).
		Dur("elapsed", o.now().Sub(started)).
		Msg("turn completed")
	return turn, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, threadID string, sessionID string, text string) (*pendingTurn, error) {
	checkpoint, err := o.checkpoints.Load(ctx, threadID)
	hadCheckpoint := true
	if errors.Is(err, statex.ErrCheckpointNotFound) {
		checkpoint = &contractx.ConversationState{}
		hadCheckpoint = false
	} else if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	st := checkpoint.Clone()
	turnStart := len(st.Messages)
	st.Messages = append(st.Messages, contractx.UserMessage(text))
	st.Next = ""
	st.Response = ""

	out, err := o.graphRunner.Invoke(contractx.WithSessionID(ctx, sessionID), st)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: graph returned nil state", contractx.ErrValidation)
	}

	result := TurnResult{
		Response: strings.TrimSpace(out.Response),
		Messages: append([]contractx.Message(nil), out.Messages...),
	}
	if answer, ok := nodex.TurnAnswer(out, turnStart); ok {
		result.Agent = answer.Agent
		if result.Response == "" {
			result.Response = answer.Content
		}
	}

	pt := &pendingTurn{
		checkpoints: o.checkpoints,
		threadID:    threadID,
		next:        out,
		result:      result,
	}
	if hadCheckpoint {
		pt.prev = checkpoint
	}
	return pt, nil
}

type pendingTurn struct {
	checkpoints statex.Checkpointer
	threadID    string
	prev        *contractx.ConversationState
	next        *contractx.ConversationState
	result      TurnResult

	committed bool
	unlock    func()
	once      sync.Once
}

func (t *pendingTurn) Result() TurnResult {
	return t.result
}

func (t *pendingTurn) Commit(ctx context.Context) error {
	if err := t.checkpoints.Save(ctx, t.threadID, t.next); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.committed = true
	return nil
}

// Revert is a no-op before Commit. A thread with no earlier checkpoint is
// deleted.
func (t *pendingTurn) Revert(ctx context.Context) error {
	if !t.committed {
		return nil
	}
	var err error
	if t.prev == nil {
		err = t.checkpoints.Delete(ctx, t.threadID)
	} else {
		err = t.checkpoints.Save(ctx, t.threadID, t.prev)
	}
	if err != nil {
		log.Error().Err(err).Str("thread_id", t.threadID).Msg("revert checkpoint")
		return fmt.Errorf("revert checkpoint: %w", err)
	}
	t.committed = false
	log.Warn().Str("thread_id", t.threadID).Msg("checkpoint reverted")
	return nil
}

func (t *pendingTurn) Release() {
	t.once.Do(func() {
		if t.unlock != nil {
			t.unlock()
		}
	})
}

// History returns the checkpointed messages for a thread.
func (o *Orchestrator) History(ctx context.Context, threadID string) ([]contractx.Message, error) {
	st, err := o.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return st.Messages, nil
}
