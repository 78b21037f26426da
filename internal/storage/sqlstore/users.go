package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mentormatch/backend/internal/model/user"
)

type userRecord struct {
	ID           string   `gorm:"primaryKey;size:36"`
	Name         string   `gorm:"size:255;not null"`
	Email        string   `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         string   `gorm:"size:16;not null;index"`
	Skills       []string `gorm:"type:text;serializer:json"`
	Interests    []string `gorm:"type:text;serializer:json"`
	Bio          string   `gorm:"type:text"`
	Title        string   `gorm:"size:255"`
	Company      string   `gorm:"size:255"`
	Availability string   `gorm:"size:255"`
	Experience   string   `gorm:"size:255"`
	Avatar       string   `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

func newUserRecord(u user.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Name:         u.Name,
		Email:        user.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Skills:       u.Skills,
		Interests:    u.Interests,
		Bio:          u.Bio,
		Title:        u.Title,
		Company:      u.Company,
		Availability: u.Availability,
		Experience:   u.Experience,
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRecord) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         user.Role(r.Role),
		Skills:       r.Skills,
		Interests:    r.Interests,
		Bio:          r.Bio,
		Title:        r.Title,
		Company:      r.Company,
		Availability: r.Availability,
		Experience:   r.Experience,
		Avatar:       r.Avatar,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

// UserStore implements user.Store on top of gorm.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u user.User) error {
	record := newUserRecord(u)
	err := s.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return user.ErrEmailTaken
	}
	return err
}

func (s *UserStore) FindByID(ctx context.Context, id string) (user.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return s.findOne(ctx, "email = ?", user.NormalizeEmail(email))
}

func (s *UserStore) ListByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	var records []userRecord
	err := s.db.WithContext(ctx).Where("role = ?", string(role)).Order("created_at ASC, id ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(records))
	for _, record := range records {
		users = append(users, record.toUser())
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, u user.User) error {
	record := newUserRecord(u)
	result := s.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", u.ID).
		Select("Name", "Skills", "Interests", "Bio", "Title", "Company", "Availability", "Experience", "Avatar", "UpdatedAt").
		Updates(&record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, query string, arg string) (user.User, error) {
	var record userRecord
	err := s.db.WithContext(ctx).Where(query, arg).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return record.toUser(), nil
}
