package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"demand-foresight/internal/model"
	"demand-foresight/internal/pkg/jwtutil"
)

const minPasswordLength = 8

type AuthService struct {
	users         UserStore
	jwtSecret     string
	jwtExpiration time.Duration
	frontendURL   string
	logger        *zap.Logger
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type CreateUserInput struct {
	Username string
	Password string
	Role     model.Role
}

type LoginLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewAuthService(users UserStore, jwtSecret string, jwtExpiration time.Duration, frontendURL string, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		logger:        logger,
	}
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, upstream("load user", err)
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(user)
}

// Validate resolves a token to its caller.
func (s *AuthService) Validate(raw string) (*jwtutil.Claims, error) {
	return jwtutil.ParseToken(s.jwtSecret, raw)
}

func (s *AuthService) Me(ctx context.Context, actor Actor) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, actor.Username)
	if err != nil {
		return nil, upstream("load user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) CreateUser(ctx context.Context, actor Actor, input CreateUserInput) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.createUser(ctx, input)
}

func (s *AuthService) createUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	role := input.Role
	if role == "" {
		role = model.RoleMember
	}
	if username == "" || len(password) < minPasswordLength || !role.Valid() {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, upstream("load user", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrUsernameExists, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	user := &model.User{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, upstream("create user", err)
	}
	return user, nil
}

// DeleteUser removes the account and every grant it holds. Documents the
// user uploaded stay in place.
func (s *AuthService) DeleteUser(ctx context.Context, actor Actor, username string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if username == actor.Username {
		return fmt.Errorf("%w: cannot delete yourself", ErrInvalidInput)
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return upstream("load user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.users.DeleteByUsername(ctx, username); err != nil {
		return upstream("delete user", err)
	}
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor Actor) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, upstream("list users", err)
	}
	return users, nil
}

// IssueLoginLink mints a token for username and embeds it in a frontend URL.
func (s *AuthService) IssueLoginLink(ctx context.Context, actor Actor, username string) (*LoginLink, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, upstream("load user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginLink{
		URL:       s.frontendURL + "/?token=" + url.QueryEscape(res.Token),
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// EnsureAdmin creates the configured admin account when no admin exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil
	}
	n, err := s.users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return upstream("count admins", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.createUser(ctx, CreateUserInput{Username: username, Password: password, Role: model.RoleAdmin}); err != nil {
		return fmt.Errorf("bootstrap admin failed: %w", err)
	}
	s.logger.Info("bootstrap admin created", zap.String("username", username))
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: time.Now().Add(s.jwtExpiration), User: user}, nil
}
