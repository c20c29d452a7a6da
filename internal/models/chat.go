package models

import "encoding/json"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// GenerationResult is the structured answer returned by the model.
type GenerationResult struct {
	Command     string `json:"command"`
	Explanation string `json:"explanation"`
}

// Message represents a single turn in a conversation. Model messages carry
// their parsed result; a nil Result means the answer is still pending.
type Message struct {
	Role    Role              `json:"role"`
	Content string            `json:"content"`
	Result  *GenerationResult `json:"result,omitempty"`

	// Sent is the exact text forwarded to the model for a user turn. It differs
	// from Content only on the first turn, which carries the context block.
	Sent string `json:"-"`
}

func NewUserMessage(content, sent string) Message {
	return Message{Role: RoleUser, Content: content, Sent: sent}
}

func NewModelMessage(result GenerationResult) Message {
	data, _ := json.Marshal(result)
	r := result
	return Message{Role: RoleModel, Content: string(data), Result: &r}
}

// PromptText is the text replayed to the model as history.
func (m Message) PromptText() string {
	if m.Sent != "" {
		return m.Sent
	}
	return m.Content
}

func (m Message) Pending() bool {
	return m.Role == RoleModel && m.Result == nil
}

// ConversationState is a read-only snapshot of one session.
type ConversationState struct {
	SessionID    string        `json:"session_id"`
	Seq          uint64        `json:"seq"`
	Context      SchemaContext `json:"context"`
	Messages     []Message     `json:"messages"`
	Input        string        `json:"input"`
	Loading      bool          `json:"loading"`
	Error        string        `json:"error,omitempty"`
	ExampleIndex int           `json:"example_index"`
	Generation   uint64        `json:"generation"`
}

// SendRequest is the payload sent to the messages endpoint.
type SendRequest struct {
	Query string `json:"query"`
}

// SendResponse reports whether a send started a turn.
type SendResponse struct {
	Accepted bool              `json:"accepted"`
	State    ConversationState `json:"state"`
}

type InputRequest struct {
	Input string `json:"input"`
}

type SessionCreated struct {
	Token string            `json:"token"`
	State ConversationState `json:"state"`
}
