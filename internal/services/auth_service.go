package services

import (
	"context"
	"errors"

	"github.com/omar4917/real-estate-project/internal/auth"
	"github.com/omar4917/real-estate-project/internal/domain"
	"github.com/omar4917/real-estate-project/internal/repos"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCreds = errors.New("invalid email or password")
	ErrBadToken = errors.New("invalid or expired token")
)

type AuthService struct {
	Users  *repos.UserRepo
	Tokens *auth.Signer
}

func NewAuthService(users *repos.UserRepo, tokens *auth.Signer) *AuthService {
	return &AuthService{Users: users, Tokens: tokens}
}

// Login checks the password and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return "", nil, ErrBadCreds
	}
	tok, err := s.Tokens.CreateAccessToken(u.ID, u.Role, u.Email)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}

// CurrentUser resolves a bearer token to a stored user.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	c, err := s.Tokens.ParseValidate(token)
	if err != nil {
		return nil, ErrBadToken
	}
	u, err := s.Users.ByID(ctx, c.Subject)
	if err != nil {
		return nil, ErrBadToken
	}
	return u, nil
}
