package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// UserStore abstracts account persistence for the service.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, namaLengkap, email, noHP, passwordHash string) (int64, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   UserStore
	tokens *TokenManager
}

// NewService constructs a new Service.
func NewService(repo UserStore, tokens *TokenManager) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return shared.Infraf("hash password: %v", err)
	}
	if _, err := s.repo.Create(ctx, req.NamaLengkap, req.Email, req.NoHP, string(hashed)); err != nil {
		if db.IsUniqueViolation(err) {
			return shared.Conflictf("Email sudah terdaftar")
		}
		return shared.Infraf("create user: %v", err)
	}
	return nil
}

// Login validates credentials and issues a signed token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, shared.Infraf("find user: %v", err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, shared.Infraf("issue token: %v", err)
	}
	return &LoginResponse{Token: token, NamaLengkap: user.NamaLengkap, Email: user.Email}, nil
}
