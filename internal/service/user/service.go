package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentormatch/backend/internal/analysis/match"
	"github.com/mentormatch/backend/internal/logger"
	"github.com/mentormatch/backend/internal/model/user"
)

const minPasswordLength = 6

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenIssuer signs API tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, role string) (string, time.Time, error)
}

// Registration 是注册请求的输入。
type Registration struct {
	Name      string
	Email     string
	Password  string
	Role      user.Role
	Skills    []string
	Interests []string
}

// Session is returned by Register and Login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      user.Profile `json:"user"`
}

// Service handles accounts, profiles and matching.
type Service struct {
	store      user.Store
	tokens     TokenIssuer
	log        *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// NewService wires the user service.
func NewService(store user.Store, tokens TokenIssuer, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		log:        logger.OrNop(log),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, reg Registration) (Session, error) {
	email := user.NormalizeEmail(reg.Email)
	name := strings.TrimSpace(reg.Name)
	switch {
	case name == "":
		return Session{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !validEmail(email):
		return Session{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	case len(reg.Password) < minPasswordLength:
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	case !reg.Role.Valid():
		return Session{}, fmt.Errorf("%w: role must be mentor or mentee", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         reg.Role,
		Skills:       user.CleanTags(reg.Skills),
		Interests:    user.CleanTags(reg.Interests),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return Session{}, err
	}

	s.log.Info("user_registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return s.session(u)
}

// Login verifies the credentials and signs the caller in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.FindByID(ctx, id)
}

// Summaries resolves ids to short views. Unknown ids map to a Summary that
// only carries the id, so accounts removed later still render.
func (s *Service) Summaries(ctx context.Context, ids ...string) (map[string]user.Summary, error) {
	out := make(map[string]user.Summary, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok || id == "" {
			continue
		}
		u, err := s.store.FindByID(ctx, id)
		switch {
		case errors.Is(err, user.ErrNotFound):
			out[id] = user.Summary{ID: id}
		case err != nil:
			return nil, fmt.Errorf("load user %s: %w", id, err)
		default:
			out[id] = u.Summary()
		}
	}
	return out, nil
}

// Exists reports whether a user id is registered.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.FindByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UpdateProfile applies the editable fields of update.
func (s *Service) UpdateProfile(ctx context.Context, id string, update user.ProfileUpdate) (user.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	update.Apply(&u)
	if u.Name == "" {
		return user.User{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// Matches ranks users of the counterpart role by tag similarity.
func (s *Service) Matches(ctx context.Context, id string) ([]match.Result, error) {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.ListByRole(ctx, current.Role.Counterpart())
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return match.Rank(current, candidates), nil
}

func (s *Service) session(u user.User) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: u.Public(true)}, nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
