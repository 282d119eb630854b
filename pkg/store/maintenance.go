package store

import (
	"context"
	"fmt"
	"time"

	"github.com/worldofchami/ucpchat/pkg/models"
)

// PruneOlderThan deletes conversations created before cutoff.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.Conversation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PruneExcess keeps the newest keep conversations and deletes the rest.
func (s *Store) PruneExcess(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	trim := `
		DELETE FROM conversations WHERE id NOT IN (
			SELECT id FROM conversations
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)`
	res := s.db.WithContext(ctx).Exec(trim, keep)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to trim conversations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Stats summarizes the database contents.
type Stats struct {
	Conversations      int64      `json:"conversations"`
	Messages           int64      `json:"messages"`
	OldestConversation *time.Time `json:"oldestConversation,omitempty"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Conversation{}).Count(&st.Conversations).Error; err != nil {
		return st, fmt.Errorf("failed to count conversations: %w", err)
	}
	if err := db.Model(&models.Message{}).Count(&st.Messages).Error; err != nil {
		return st, fmt.Errorf("failed to count messages: %w", err)
	}
	if st.Conversations == 0 {
		return st, nil
	}

	var oldest models.Conversation
	if err := db.Select("created_at").Order("created_at ASC").Take(&oldest).Error; err != nil {
		return st, fmt.Errorf("failed to find oldest conversation: %w", err)
	}
	t := oldest.CreatedAt
	st.OldestConversation = &t
	return st, nil
}
