package post

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("post not found")

type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryCareer    Category = "career"
	CategoryTechnical Category = "technical"
	CategoryResources Category = "resources"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryCareer, CategoryTechnical, CategoryResources:
		return true
	}
	return false
}

// Post is a forum thread. Likes holds user ids; Comments are newest first.
type Post struct {
	ID        string
	Author    string
	Title     string
	Content   string
	Category  Category
	Tags      []string
	Likes     []string
	Comments  []Comment
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID        string
	Author    string
	Content   string
	CreatedAt time.Time
}

// Clone returns a copy that shares no slices with p.
func (p Post) Clone() Post {
	p.Tags = append([]string{}, p.Tags...)
	p.Likes = append([]string{}, p.Likes...)
	p.Comments = append([]Comment{}, p.Comments...)
	return p
}

// ToggleLike adds userID to likes, or removes it when already present.
func ToggleLike(likes []string, userID string) []string {
	out := make([]string, 0, len(likes)+1)
	liked := false
	for _, id := range likes {
		if id == userID {
			liked = true
			continue
		}
		out = append(out, id)
	}
	if !liked {
		out = append(out, userID)
	}
	return out
}
