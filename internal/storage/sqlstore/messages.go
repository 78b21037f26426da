package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mentormatch/backend/internal/model/chat"
)

type messageRecord struct {
	ID        string          `gorm:"primaryKey;size:36"`
	Sender    string          `gorm:"size:64;not null;index:idx_messages_pair,priority:1"`
	Receiver  string          `gorm:"size:64;not null;index:idx_messages_pair,priority:2"`
	Content   string          `gorm:"type:text"`
	Type      string          `gorm:"size:16;not null"`
	FileData  string          `gorm:"type:text"`
	FileName  string          `gorm:"size:255"`
	FileMime  string          `gorm:"size:127"`
	ReplyToID string          `gorm:"size:36;index"`
	Reactions []chat.Reaction `gorm:"type:text;serializer:json"`
	IsRead    bool            `gorm:"column:is_read;not null"`
	CreatedAt time.Time       `gorm:"not null;index"`
}

func (messageRecord) TableName() string { return "messages" }

func newMessageRecord(m chat.Message) messageRecord {
	return messageRecord{
		ID:        m.ID,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Content:   m.Content,
		Type:      string(m.Type),
		FileData:  m.FileData,
		FileName:  m.FileName,
		FileMime:  m.FileMime,
		ReplyToID: m.ReplyToID,
		Reactions: m.Reactions,
		IsRead:    m.Read,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func (r messageRecord) toMessage() chat.Message {
	reactions := r.Reactions
	if reactions == nil {
		reactions = []chat.Reaction{}
	}
	return chat.Message{
		ID:        r.ID,
		Sender:    r.Sender,
		Receiver:  r.Receiver,
		Content:   r.Content,
		Type:      chat.MessageType(r.Type),
		FileData:  r.FileData,
		FileName:  r.FileName,
		FileMime:  r.FileMime,
		ReplyToID: r.ReplyToID,
		Reactions: reactions,
		Read:      r.IsRead,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// MessageStore implements chat.Store on top of gorm.
type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(ctx context.Context, msg chat.Message) error {
	record := newMessageRecord(msg)
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *MessageStore) Get(ctx context.Context, id string) (chat.Message, error) {
	var record messageRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	return record.toMessage(), nil
}

func (s *MessageStore) Conversation(ctx context.Context, a, b string) ([]chat.Message, error) {
	var records []messageRecord
	err := s.db.WithContext(ctx).
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", a, b, b, a).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, record.toMessage())
	}
	return messages, nil
}

// UpdateReactions runs the read-modify-write in one transaction with the row locked.
func (s *MessageStore) UpdateReactions(ctx context.Context, id string, fn func([]chat.Reaction) []chat.Reaction) ([]chat.Reaction, error) {
	var updated []chat.Reaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record messageRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		record.Reactions = fn(record.Reactions)
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		updated = record.Reactions
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = []chat.Reaction{}
	}
	return updated, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&messageRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return chat.ErrMessageNotFound
	}
	return nil
}

func (s *MessageStore) MarkRead(ctx context.Context, sender, receiver string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("sender = ? AND receiver = ? AND is_read = ?", sender, receiver, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (s *MessageStore) Peers(ctx context.Context, userID string) ([]string, error) {
	var sentTo, receivedFrom []string
	db := s.db.WithContext(ctx)
	if err := db.Model(&messageRecord{}).Where("sender = ?", userID).Distinct().Pluck("receiver", &sentTo).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&messageRecord{}).Where("receiver = ?", userID).Distinct().Pluck("sender", &receivedFrom).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(sentTo)+len(receivedFrom))
	peers := make([]string, 0, len(sentTo)+len(receivedFrom))
	for _, id := range append(sentTo, receivedFrom...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		peers = append(peers, id)
	}
	return peers, nil
}
