// Package store persists conversations and messages in SQLite through gorm.
// Message metadata is a JSON column; commerce state is found by querying
// keys inside it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/worldofchami/ucpchat/pkg/models"
)

var ErrNotFound = errors.New("not found")

// Store stores conversations and their messages.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for created_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return s.now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Store) CreateConversation(ctx context.Context, title, agentID string) (*models.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = models.DefaultTitle
	}
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		AgentID:   agentID,
		CreatedAt: s.timestamp(),
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns the conversation without its messages.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// GetConversationWithMessages returns the conversation and its messages,
// oldest first.
func (s *Store) GetConversationWithMessages(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("id = ?", id).
		Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns every conversation, newest first, each with its
// messages oldest first.
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Order("created_at DESC, rowid DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// ConversationForPhone returns the newest conversation bound to phone,
// creating one for agentID when none exists.
func (s *Store) ConversationForPhone(ctx context.Context, phone, agentID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		Order("created_at DESC").
		Take(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find conversation for phone: %w", err)
	}

	conv = models.Conversation{
		ID:          uuid.NewString(),
		Title:       models.DefaultTitle,
		AgentID:     agentID,
		PhoneNumber: phone,
		CreatedAt:   s.timestamp(),
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("failed to update title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation; its messages cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Conversation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllConversations removes every conversation and message.
func (s *Store) DeleteAllConversations(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Conversation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete conversations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AddMessage inserts msg, assigning its id and timestamp when unset.
func (s *Store) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.timestamp()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := orderedMessages(s.db.WithContext(ctx)).
		Where("conversation_id = ?", conversationID).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return msgs, nil
}

// LatestAssistantMessageWithKey returns the newest assistant message of the
// conversation whose metadata has key.
func (s *Store) LatestAssistantMessageWithKey(ctx context.Context, conversationID, key string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND role = ?", conversationID, models.RoleAssistant).
		Where(datatypes.JSONQuery("metadata").HasKey(key)).
		Order("created_at DESC, rowid DESC").
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest message: %w", err)
	}
	return &msg, nil
}

// CountFilter selects assistant messages for rate-limit windows. Empty
// fields do not filter.
type CountFilter struct {
	Since          time.Time
	ConversationID string
	IPHash         string
	WithToolTrace  bool
}

func (s *Store) CountAssistantMessages(ctx context.Context, f CountFilter) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("role = ?", models.RoleAssistant)
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	if f.ConversationID != "" {
		q = q.Where("conversation_id = ?", f.ConversationID)
	}
	if f.IPHash != "" {
		q = q.Where(datatypes.JSONQuery("metadata").Equals(f.IPHash, models.MetaKeyIPHash))
	}
	if f.WithToolTrace {
		q = q.Where(datatypes.JSONQuery("metadata").HasKey(models.MetaKeyToolTrace))
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, rowid ASC")
}
