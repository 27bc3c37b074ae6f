package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/ReadingRoom/internal/model"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
	"github.com/Gopher0727/ReadingRoom/internal/utils"
	"github.com/Gopher0727/ReadingRoom/middleware/jwt"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// RegisterResponse echoes the created account
type RegisterResponse struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*jwt.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
	ListMembers(ctx context.Context) ([]UserResponse, error)
}

// AuthService implements the IAuthService interface
type AuthService struct {
	userRepo     repository.IUserRepository
	tokenManager *jwt.TokenManager
	log          *logger.Logger
}

// NewAuthService creates a new IAuthService instance
func NewAuthService(userRepo repository.IUserRepository, tokenManager *jwt.TokenManager, log *logger.Logger) IAuthService {
	return &AuthService{
		userRepo:     userRepo,
		tokenManager: tokenManager,
		log:          log,
	}
}

func (r *RegisterRequest) validate() error {
	errs := fieldErrors{}
	errs.require("username", r.Username)
	errs.require("email", r.Email)
	errs.require("password", r.Password)
	errs.require("role", string(r.Role))

	if _, missing := errs["username"]; !missing && !utils.ValidateUserName(r.Username) {
		errs["username"] = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	if _, missing := errs["email"]; !missing && !utils.ValidateEmail(r.Email) {
		errs["email"] = "Enter a valid email address."
	}
	if _, missing := errs["password"]; !missing && !utils.ValidatePassword(r.Password) {
		errs["password"] = "This password must contain at least 8 characters and cannot be entirely numeric."
	}
	if _, missing := errs["role"]; !missing && !r.Role.Valid() {
		errs["role"] = fmt.Sprintf("%q is not a valid choice.", r.Role)
	}
	return errs.err()
}

// Register creates an account with the requested role
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.validate(); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashed,
		Role:         req.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.InfoContext(ctx, "user registered",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return &RegisterResponse{Username: user.Username, Email: user.Email, Role: user.Role}, nil
}

// Login verifies credentials and issues an access/refresh token pair
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*jwt.TokenPair, error) {
	errs := fieldErrors{}
	errs.require("username", req.Username)
	errs.require("password", req.Password)
	if err := errs.err(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokenManager.GenerateTokenPair(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token carrying the
// user's current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", &ValidationError{Fields: map[string]string{"refresh": "This field is required."}}
	}
	claims, err := s.tokenManager.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}
	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return "", err
	}
	access, err := s.tokenManager.GenerateAccessToken(user.ID, user.Username, string(user.Role))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return access, nil
}

// Authenticate validates an access token and reloads its user, so deleted
// accounts and role changes apply immediately.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.tokenManager.ParseAccessToken(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.loadUser(ctx, claims.UserID)
}

func (s *AuthService) loadUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListMembers lists every account with the member role
func (s *AuthService) ListMembers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.userRepo.ListByRole(ctx, model.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserResponse{ID: u.ID, Username: u.Username, Role: u.Role})
	}
	return out, nil
}
