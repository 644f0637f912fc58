package contract

import "strings"

// AgentName identifies a specialist node in the orchestration graph.
type AgentName string

const (
	AgentFAQ            AgentName = "faq_agent"
	AgentTask           AgentName = "task_agent"
	AgentMarketInsights AgentName = "market_insights_agent"

	// AgentSupervisor is only used for model configuration and persisted
	// messages that no specialist authored.
	AgentSupervisor AgentName = "supervisor"
)

// Members is the ordered specialist set. The first entry is the fallback
// route when the decision function returns something unusable.
var Members = []AgentName{AgentFAQ, AgentTask, AgentMarketInsights}

// IsMember reports whether name is one of the routable specialists.
func IsMember(name AgentName) bool {
	for _, m := range Members {
		if m == name {
			return true
		}
	}
	return false
}

// Route is the supervisor's decision for the current step.
type Route string

// RouteFinish terminates the turn.
const RouteFinish Route = "FINISH"

func (r Route) Agent() (AgentName, bool) {
	name := AgentName(r)
	return name, IsMember(name)
}

// Provenance records who authored a message.
type Provenance int

const (
	ProvenanceUser Provenance = iota
	ProvenanceSpecialist
	ProvenanceSystem
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceUser:
		return "user"
	case ProvenanceSpecialist:
		return "specialist"
	case ProvenanceSystem:
		return "system"
	default:
		return "unknown"
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history. Agent is set only when
// Provenance is ProvenanceSpecialist.
type Message struct {
	Role       Role       `json:"role"`
	Provenance Provenance `json:"provenance"`
	Agent      AgentName  `json:"agent,omitempty"`
	Content    string     `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Provenance: ProvenanceUser, Content: content}
}

func SpecialistMessage(agent AgentName, content string) Message {
	return Message{Role: RoleAssistant, Provenance: ProvenanceSpecialist, Agent: agent, Content: content}
}

// IsSpecialistAnswer reports whether m is a non-empty answer produced by a
// specialist.
func (m Message) IsSpecialistAnswer() bool {
	return m.Provenance == ProvenanceSpecialist && strings.TrimSpace(m.Content) != ""
}

// ConversationState is threaded through one invocation of the graph and
// checkpointed per thread.
type ConversationState struct {
	Messages []Message `json:"messages"`
	Next     Route     `json:"next,omitempty"`
	Response string    `json:"response,omitempty"`
}

// Clone returns a deep copy so a failed turn never mutates the checkpoint.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return &ConversationState{}
	}
	return &ConversationState{
		Messages: append([]Message(nil), s.Messages...),
		Next:     s.Next,
		Response: s.Response,
	}
}

// Last returns the most recent message.
func (s *ConversationState) Last() (Message, bool) {
	if s == nil || len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastSpecialistAnswer scans backward for the most recent specialist answer.
func (s *ConversationState) LastSpecialistAnswer() (Message, bool) {
	if s == nil {
		return Message{}, false
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].IsSpecialistAnswer() {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}
