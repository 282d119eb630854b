package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultTitle is replaced by a title derived from the first user message.
	DefaultTitle = "New Conversation"
)

// Conversation is a chat thread bound to a single agent.
type Conversation struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"not null;default:'New Conversation'" json:"title"`
	AgentID     string    `gorm:"column:agent_id;not null;default:'general';index" json:"agentId"`
	PhoneNumber string    `gorm:"column:phone_number;index" json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"createdAt"`
	Messages    []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages"`
}

// Message is a single chat turn. Metadata is an open JSON document; commerce
// state (last search results, tool traces, rate-limit tags) lives there.
type Message struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string         `gorm:"column:conversation_id;size:36;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	Role           string         `gorm:"not null" json:"role"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_messages_conversation_created,priority:2;index" json:"createdAt"`
}

// Meta decodes the metadata document. An empty document yields an empty Meta.
func (m *Message) Meta() (Meta, error) {
	var meta Meta
	if len(m.Metadata) == 0 {
		return meta, nil
	}
	err := json.Unmarshal(m.Metadata, &meta)
	return meta, err
}

// SetMeta encodes meta into the metadata document.
func (m *Message) SetMeta(meta Meta) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	m.Metadata = datatypes.JSON(b)
	return nil
}

// Metadata keys that are queried by the store.
const (
	MetaKeyLastSearchResults = "lastSearchResults"
	MetaKeyToolTrace         = "toolTrace"
	MetaKeyIPHash            = "ipHash"
)

// Meta is the typed view of the message metadata document.
type Meta struct {
	AgentID           string                 `json:"agentId,omitempty"`
	Model             string                 `json:"model,omitempty"`
	Kind              string                 `json:"kind,omitempty"`
	RequestID         string                 `json:"requestId,omitempty"`
	IPHash            string                 `json:"ipHash,omitempty"`
	Command           *CommandMeta           `json:"command,omitempty"`
	LastSearchResults []NormalizedSearchItem `json:"lastSearchResults,omitempty"`
	ToolTrace         []ToolTraceEntry       `json:"toolTrace,omitempty"`
	Usage             *Usage                 `json:"usage,omitempty"`
}

// CommandMeta records the interpreted command that produced a reply.
type CommandMeta struct {
	Type       string `json:"type"`
	Query      string `json:"query,omitempty"`
	ItemNumber int    `json:"itemNumber,omitempty"`
	Qty        int    `json:"qty,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
