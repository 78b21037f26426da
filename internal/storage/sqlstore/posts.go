package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mentormatch/backend/internal/model/post"
)

type postRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Author    string    `gorm:"size:64;not null;index"`
	Title     string    `gorm:"size:255;not null"`
	Content   string    `gorm:"type:text;not null"`
	Category  string    `gorm:"size:16;not null;index"`
	Tags      []string  `gorm:"type:text;serializer:json"`
	Likes     []string  `gorm:"type:text;serializer:json"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (postRecord) TableName() string { return "posts" }

type commentRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	PostID    string    `gorm:"size:36;not null;index"`
	Author    string    `gorm:"size:64;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (commentRecord) TableName() string { return "post_comments" }

func (r commentRecord) toComment() post.Comment {
	return post.Comment{ID: r.ID, Author: r.Author, Content: r.Content, CreatedAt: r.CreatedAt.UTC()}
}

func (r postRecord) toPost(comments []post.Comment) post.Post {
	if comments == nil {
		comments = []post.Comment{}
	}
	return post.Post{
		ID:        r.ID,
		Author:    r.Author,
		Title:     r.Title,
		Content:   r.Content,
		Category:  post.Category(r.Category),
		Tags:      nonNilStrings(r.Tags),
		Likes:     nonNilStrings(r.Likes),
		Comments:  comments,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// PostStore implements post.Store on top of gorm. Comments live in their own table.
type PostStore struct {
	db *gorm.DB
}

func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

func (s *PostStore) Create(ctx context.Context, p post.Post) error {
	record := postRecord{
		ID:        p.ID,
		Author:    p.Author,
		Title:     p.Title,
		Content:   p.Content,
		Category:  string(p.Category),
		Tags:      p.Tags,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *PostStore) Get(ctx context.Context, id string) (post.Post, error) {
	db := s.db.WithContext(ctx)
	var record postRecord
	err := db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return post.Post{}, post.ErrNotFound
	}
	if err != nil {
		return post.Post{}, err
	}

	comments, err := s.comments(db, id)
	if err != nil {
		return post.Post{}, err
	}
	return record.toPost(comments[id]), nil
}

func (s *PostStore) List(ctx context.Context) ([]post.Post, error) {
	db := s.db.WithContext(ctx)
	var records []postRecord
	if err := db.Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []post.Post{}, nil
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	comments, err := s.comments(db, ids...)
	if err != nil {
		return nil, err
	}

	out := make([]post.Post, 0, len(records))
	for _, record := range records {
		out = append(out, record.toPost(comments[record.ID]))
	}
	return out, nil
}

func (s *PostStore) AddComment(ctx context.Context, postID string, c post.Comment) ([]post.Comment, error) {
	var comments []post.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&postRecord{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return post.ErrNotFound
		}

		record := commentRecord{ID: c.ID, PostID: postID, Author: c.Author, Content: c.Content, CreatedAt: c.CreatedAt.UTC()}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		byPost, err := s.comments(tx, postID)
		if err != nil {
			return err
		}
		comments = byPost[postID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// UpdateLikes runs the read-modify-write in one transaction with the row locked.
func (s *PostStore) UpdateLikes(ctx context.Context, postID string, fn func([]string) []string) ([]string, error) {
	var updated []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record postRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", postID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return post.ErrNotFound
		}
		if err != nil {
			return err
		}

		record.Likes = fn(record.Likes)
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		updated = record.Likes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nonNilStrings(updated), nil
}

// comments loads the comments of the given posts, newest first.
func (s *PostStore) comments(db *gorm.DB, postIDs ...string) (map[string][]post.Comment, error) {
	var records []commentRecord
	if err := db.Where("post_id IN ?", postIDs).Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]post.Comment, len(postIDs))
	for _, record := range records {
		out[record.PostID] = append(out[record.PostID], record.toComment())
	}
	return out, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
