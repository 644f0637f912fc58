// Package assistant is the chat use case: guardrails around one
// orchestrator turn, with the visible chat log kept per session.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/agent/agents/orchestrator"
	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	"github.com/MazarSayed/stock-platform/agent/guardrail"
	"github.com/MazarSayed/stock-platform/agent/session"
	"github.com/MazarSayed/stock-platform/pkg/keylock"
)

const (
	AgentGuardrail  = "guardrail"
	AgentSupervisor = string(contractx.AgentSupervisor)

	emptyResponseText   = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
	blockedResponseText = "I apologize, but I cannot provide that response due to security policies."
	emptyAfterSanitize  = "Message is empty after sanitization"
)

// TurnRunner runs a turn and leaves the checkpoint write to the caller.
type TurnRunner interface {
	Begin(ctx context.Context, threadID string, sessionID string, text string) (orchestrator.Turn, error)
}

type SessionStore interface {
	GetThreadID(ctx context.Context, sessionID string) (string, error)
	CreateSession(ctx context.Context, sessionID string, threadID string) (bool, error)
	AppendTurn(ctx context.Context, sessionID string, msgs ...session.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]session.Message, error)
}

type Config struct {
	// TurnTimeout bounds one orchestrator turn. Zero means no bound.
	TurnTimeout time.Duration
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type ChatResponse struct {
	Response  string            `json:"response"`
	SessionID string            `json:"session_id"`
	Agent     string            `json:"agent"`
	Messages  []session.Message `json:"messages"`
}

type Service struct {
	input    *guardrail.InputGuardrails
	output   *guardrail.OutputGuardrails
	turns    TurnRunner
	sessions SessionStore
	locks    *keylock.Locker
	cfg      Config
	newID    func() string
}

func New(
	input *guardrail.InputGuardrails,
	output *guardrail.OutputGuardrails,
	turns TurnRunner,
	sessions SessionStore,
	cfg Config,
) (*Service, error) {
	if turns == nil {
		return nil, errors.New("turn runner is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if input == nil {
		input = guardrail.NewInputGuardrails()
	}
	if output == nil {
		output = guardrail.NewOutputGuardrails()
	}
	return &Service{
		input:    input,
		output:   output,
		turns:    turns,
		sessions: sessions,
		locks:    keylock.New(),
		cfg:      cfg,
		newID:    uuid.NewString,
	}, nil
}

// Chat handles one user message. A rejected input comes back as a normal
// response from the guardrail agent and nothing is stored. When the turn or
// its persistence fails, the chat log and the checkpoint are left as they
// were.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResponse{}, fmt.Errorf("%w: message is required", contractx.ErrValidation)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = s.newID()
	}

	unlock, err := s.locks.LockContext(ctx, sessionID)
	if err != nil {
		return ChatResponse{}, err
	}
	defer unlock()

	verdict := s.input.ValidateInput(req.Message)
	if !verdict.Passed {
		log.Warn().Str("session_id", sessionID).Str("reason", verdict.Reason).Msg("input rejected")
		return s.refusal(ctx, sessionID, verdict.Reason)
	}

	text := req.Message
	if sanitized, ok := verdict.Sanitized(); ok {
		text = sanitized
	}
	if strings.TrimSpace(text) == "" {
		log.Warn().Str("session_id", sessionID).Msg("input empty after sanitization")
		return s.refusal(ctx, sessionID, emptyAfterSanitize)
	}

	threadID, isNew, err := s.threadFor(ctx, sessionID)
	if err != nil {
		return ChatResponse{}, err
	}

	turnCtx := ctx
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	turn, err := s.turns.Begin(turnCtx, threadID, sessionID, text)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("run turn: %w", err)
	}
	defer turn.Release()

	result := turn.Result()
	agent := string(result.Agent)
	if agent == "" {
		agent = AgentSupervisor
	}
	response := s.finalize(sessionID, strings.TrimSpace(result.Response))

	if err := turn.Commit(ctx); err != nil {
		return ChatResponse{}, err
	}
	if err := s.persist(ctx, sessionID, threadID, isNew, text, response, agent); err != nil {
		if rerr := turn.Revert(ctx); rerr != nil {
			return ChatResponse{}, errors.Join(err, rerr)
		}
		return ChatResponse{}, err
	}

	messages, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return ChatResponse{}, err
	}

	return ChatResponse{
		Response:  response,
		SessionID: sessionID,
		Agent:     agent,
		Messages:  messages,
	}, nil
}

// persist stores the session mapping for a new session and the two lines
// of the turn.
func (s *Service) persist(ctx context.Context, sessionID, threadID string, isNew bool, text, response, agent string) error {
	if isNew {
		created, err := s.sessions.CreateSession(ctx, sessionID, threadID)
		if err != nil {
			return err
		}
		if created {
			log.Info().Str("session_id", sessionID).Str("thread_id", threadID).Msg("session created")
		}
	}
	return s.sessions.AppendTurn(ctx, sessionID,
		session.Message{Role: string(contractx.RoleUser), Content: text},
		session.Message{Role: string(contractx.RoleAssistant), Content: response, Agent: agent},
	)
}

// History returns the stored chat log of a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]session.Message, error) {
	if _, err := s.sessions.GetThreadID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.sessions.ListMessages(ctx, sessionID)
}

// threadFor returns the session's thread id, minting one for a session
// that is not stored yet.
func (s *Service) threadFor(ctx context.Context, sessionID string) (string, bool, error) {
	threadID, err := s.sessions.GetThreadID(ctx, sessionID)
	if errors.Is(err, contractx.ErrSessionNotFound) {
		return s.newID(), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return threadID, false, nil
}

// finalize applies the output policy. Blocking wins over sanitizing.
func (s *Service) finalize(sessionID string, response string) string {
	if response == "" {
		response = emptyResponseText
	}

	verdict := s.output.ValidateOutput(response)
	if verdict.Blocked {
		log.Warn().Str("session_id", sessionID).Str("reason", verdict.Reason).Msg("output blocked")
		return blockedResponseText
	}
	if sanitized, ok := verdict.Sanitized(); ok {
		log.Info().Str("session_id", sessionID).Msg("output sanitized")
		return sanitized
	}
	return response
}

func (s *Service) refusal(ctx context.Context, sessionID string, reason string) (ChatResponse, error) {
	messages, err := s.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{
		Response:  "Input validation failed: " + reason,
		SessionID: sessionID,
		Agent:     AgentGuardrail,
		Messages:  messages,
	}, nil
}
