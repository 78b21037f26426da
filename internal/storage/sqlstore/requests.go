package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mentormatch/backend/internal/model/request"
)

type requestRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Sender    string `gorm:"size:64;not null;index"`
	Receiver  string `gorm:"size:64;not null;index"`
	PairKey   string `gorm:"size:129;not null;uniqueIndex"`
	Status    string `gorm:"size:16;not null"`
	Message   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (requestRecord) TableName() string { return "connection_requests" }

func (r requestRecord) toRequest() request.Request {
	return request.Request{
		ID:        r.ID,
		Sender:    r.Sender,
		Receiver:  r.Receiver,
		Status:    request.Status(r.Status),
		Message:   r.Message,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// RequestStore implements request.Store on top of gorm. The unique pair key
// enforces one request per pair of users.
type RequestStore struct {
	db *gorm.DB
}

func NewRequestStore(db *gorm.DB) *RequestStore {
	return &RequestStore{db: db}
}

func (s *RequestStore) Create(ctx context.Context, r request.Request) error {
	record := requestRecord{
		ID:        r.ID,
		Sender:    r.Sender,
		Receiver:  r.Receiver,
		PairKey:   request.PairKey(r.Sender, r.Receiver),
		Status:    string(r.Status),
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return request.ErrExists
	}
	return err
}

func (s *RequestStore) Get(ctx context.Context, id string) (request.Request, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *RequestStore) FindPair(ctx context.Context, a, b string) (request.Request, error) {
	return s.findOne(ctx, "pair_key = ?", request.PairKey(a, b))
}

func (s *RequestStore) ListFor(ctx context.Context, userID string) ([]request.Request, error) {
	var records []requestRecord
	err := s.db.WithContext(ctx).
		Where("sender = ? OR receiver = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]request.Request, 0, len(records))
	for _, record := range records {
		out = append(out, record.toRequest())
	}
	return out, nil
}

func (s *RequestStore) UpdateStatus(ctx context.Context, id string, status request.Status, at time.Time) (request.Request, error) {
	result := s.db.WithContext(ctx).Model(&requestRecord{}).Where("id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": at})
	if result.Error != nil {
		return request.Request{}, result.Error
	}
	if result.RowsAffected == 0 {
		return request.Request{}, request.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *RequestStore) findOne(ctx context.Context, query string, arg string) (request.Request, error) {
	var record requestRecord
	err := s.db.WithContext(ctx).Where(query, arg).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return request.Request{}, request.ErrNotFound
	}
	if err != nil {
		return request.Request{}, err
	}
	return record.toRequest(), nil
}
