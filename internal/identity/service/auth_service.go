package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"mqtt-monitor/backend/internal/security"
	userdomain "mqtt-monitor/backend/internal/user/domain"
)

// Sentinel errors for auth service; handlers map them to responses.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidUsername    = errors.New("username is required and must not contain whitespace")
	ErrUserNotFound       = errors.New("user not found")
)

const minPasswordLen = 8

// AuthResult holds the outcome of Login: the signed session token and the authenticated user.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Update(ctx context.Context, u *userdomain.User) error
}

// AuthService implements password login and user creation.
type AuthService struct {
	userRepo UserRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	clock    clockwork.Clock
}

// NewAuthService returns an AuthService with the given dependencies. tokens may be nil for
// callers that only create users (cmd/createadmin, cmd/seed); Login then fails.
func NewAuthService(userRepo UserRepo, hasher *security.Hasher, tokens *security.TokenProvider, clock clockwork.Clock) *AuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		clock:    clock,
	}
}

// Login authenticates with username and password and returns a signed session token.
// Unknown, inactive and wrong-password users all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.tokens == nil {
		return nil, errors.New("auth service has no token provider")
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		s.hasher.CompareDummy([]byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CreateUser creates an active user with the given role. Returns ErrUsernameTaken when the username exists.
func (s *AuthService) CreateUser(ctx context.Context, username, email, password string, role userdomain.Role) (*userdomain.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: hashed,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResetPassword replaces the password of username. Returns ErrUserNotFound when no such user exists.
func (s *AuthService) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	user.UpdatedAt = s.clock.Now().UTC()
	return s.userRepo.Update(ctx, user)
}

// GetUser returns the user for id, or nil if not found.
func (s *AuthService) GetUser(ctx context.Context, id string) (*userdomain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func validateUsername(username string) error {
	if username == "" || strings.ContainsAny(username, " \t\r\n") {
		return ErrInvalidUsername
	}
	return nil
}
