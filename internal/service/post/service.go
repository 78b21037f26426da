package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/model/post"
	"github.com/mentormatch/backend/internal/model/user"
)

const (
	maxTitleRunes   = 200
	maxContentRunes = 20000
	maxCommentRunes = 2000
	maxTags         = 10
)

var ErrInvalidInput = errors.New("invalid input")

// Directory resolves post and comment authors.
type Directory interface {
	Summaries(ctx context.Context, ids ...string) (map[string]user.Summary, error)
}

// Draft is the input for a new post.
type Draft struct {
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Category post.Category `json:"category"`
	Tags     []string      `json:"tags"`
}

type CommentView struct {
	ID        string       `json:"id"`
	Author    user.Summary `json:"author"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
}

// View is a post with its author and commenters expanded.
type View struct {
	ID        string        `json:"id"`
	Author    user.Summary  `json:"author"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Category  post.Category `json:"category"`
	Tags      []string      `json:"tags"`
	Likes     []string      `json:"likes"`
	Comments  []CommentView `json:"comments"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Service 社区论坛：发帖、评论与点赞。
type Service struct {
	store post.Store
	users Directory
	now   func() time.Time
	log   *zap.Logger
}

func NewService(store post.Store, users Directory, log *zap.Logger) *Service {
	return &Service{
		store: store,
		users: users,
		now:   time.Now,
		log:   logger.OrNop(log),
	}
}

func (s *Service) Create(ctx context.Context, author string, d Draft) (View, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	if d.Category == "" {
		d.Category = post.CategoryGeneral
	}
	tags := user.CleanTags(d.Tags)
	switch {
	case d.Title == "" || d.Content == "":
		return View{}, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	case utf8.RuneCountInString(d.Title) > maxTitleRunes:
		return View{}, fmt.Errorf("%w: title is limited to %d characters", ErrInvalidInput, maxTitleRunes)
	case utf8.RuneCountInString(d.Content) > maxContentRunes:
		return View{}, fmt.Errorf("%w: content is limited to %d characters", ErrInvalidInput, maxContentRunes)
	case !d.Category.Valid():
		return View{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, d.Category)
	case len(tags) > maxTags:
		return View{}, fmt.Errorf("%w: at most %d tags", ErrInvalidInput, maxTags)
	}

	now := s.now().UTC()
	p := post.Post{
		ID:        uuid.NewString(),
		Author:    author,
		Title:     d.Title,
		Content:   d.Content,
		Category:  d.Category,
		Tags:      tags,
		Likes:     []string{},
		Comments:  []post.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return View{}, err
	}

	s.log.Info("post_created", zap.String("post_id", p.ID), zap.String("author", author), zap.String("category", string(p.Category)))
	views, err := s.expand(ctx, p)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// List returns every post, newest first.
func (s *Service) List(ctx context.Context) ([]View, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, items...)
}

func (s *Service) Get(ctx context.Context, id string) (View, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	views, err := s.expand(ctx, p)
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// Comment prepends a comment and returns the post's comments, newest first.
func (s *Service) Comment(ctx context.Context, postID, author, content string) ([]CommentView, error) {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	case utf8.RuneCountInString(content) > maxCommentRunes:
		return nil, fmt.Errorf("%w: comment is limited to %d characters", ErrInvalidInput, maxCommentRunes)
	}

	comments, err := s.store.AddComment(ctx, postID, post.Comment{
		ID:        uuid.NewString(),
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.Author)
	}
	people, err := s.users.Summaries(ctx, ids...)
	if err != nil {
		return nil, err
	}
	return commentViews(comments, people), nil
}

// Like toggles userID's like and returns the resulting likes.
func (s *Service) Like(ctx context.Context, postID, userID string) ([]string, error) {
	return s.store.UpdateLikes(ctx, postID, func(likes []string) []string {
		return post.ToggleLike(likes, userID)
	})
}

func (s *Service) expand(ctx context.Context, items ...post.Post) ([]View, error) {
	var ids []string
	for _, p := range items {
		ids = append(ids, p.Author)
		for _, c := range p.Comments {
			ids = append(ids, c.Author)
		}
	}
	people, err := s.users.Summaries(ctx, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(items))
	for _, p := range items {
		views = append(views, View{
			ID:        p.ID,
			Author:    people[p.Author],
			Title:     p.Title,
			Content:   p.Content,
			Category:  p.Category,
			Tags:      nonNil(p.Tags),
			Likes:     nonNil(p.Likes),
			Comments:  commentViews(p.Comments, people),
			CreatedAt: p.CreatedAt,
		})
	}
	return views, nil
}

func commentViews(comments []post.Comment, people map[string]user.Summary) []CommentView {
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentView{
			ID:        c.ID,
			Author:    people[c.Author],
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
