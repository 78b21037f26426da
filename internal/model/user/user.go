package user

import (
	"strings"
	"time"
)

// Role distinguishes the two sides of a mentorship.
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMentor || r == RoleMentee
}

// Counterpart returns the role a user of role r is matched with.
func (r Role) Counterpart() Role {
	if r == RoleMentor {
		return RoleMentee
	}
	return RoleMentor
}

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Skills       []string
	Interests    []string
	Bio          string
	Title        string
	Company      string
	Availability string
	Experience   string
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of a user returned by the API.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	Skills       []string  `json:"skills"`
	Interests    []string  `json:"interests"`
	Bio          string    `json:"bio,omitempty"`
	Title        string    `json:"title,omitempty"`
	Company      string    `json:"company,omitempty"`
	Availability string    `json:"availability,omitempty"`
	Experience   string    `json:"experience,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public projects u without credentials. The email is only kept for the owner.
func (u User) Public(includeEmail bool) Profile {
	p := Profile{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		Skills:       nonNil(u.Skills),
		Interests:    nonNil(u.Interests),
		Bio:          u.Bio,
		Title:        u.Title,
		Company:      u.Company,
		Availability: u.Availability,
		Experience:   u.Experience,
		Avatar:       u.Avatar,
		CreatedAt:    u.CreatedAt,
	}
	if includeEmail {
		p.Email = u.Email
	}
	return p
}

// Summary is the short user view embedded in requests, sessions and posts.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: u.Role}
}

// ProfileUpdate carries the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	Name         *string   `json:"name"`
	Skills       *[]string `json:"skills"`
	Interests    *[]string `json:"interests"`
	Bio          *string   `json:"bio"`
	Title        *string   `json:"title"`
	Company      *string   `json:"company"`
	Availability *string   `json:"availability"`
	Experience   *string   `json:"experience"`
	Avatar       *string   `json:"avatar"`
}

// Apply copies the non-nil fields of p onto u.
func (p ProfileUpdate) Apply(u *User) {
	setString(&u.Name, p.Name)
	setString(&u.Bio, p.Bio)
	setString(&u.Title, p.Title)
	setString(&u.Company, p.Company)
	setString(&u.Availability, p.Availability)
	setString(&u.Experience, p.Experience)
	setString(&u.Avatar, p.Avatar)
	if p.Skills != nil {
		u.Skills = CleanTags(*p.Skills)
	}
	if p.Interests != nil {
		u.Interests = CleanTags(*p.Interests)
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CleanTags trims entries and drops empty ones.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
