// Package services holds the application layer: input validation,
// authorization checks and orchestration between repositories, the
// workflow engine and the hubs.
package services

import (
	"context"
	"fmt"

	"blog-lab/auth"
	"blog-lab/domain"
	"blog-lab/errors"
	"blog-lab/repositories"
)

type IAuthService interface {
	Register(ctx context.Context, email, username, password string) (Token, error)
	Login(ctx context.Context, email, password string) (Token, error)
}

type Token string

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register validates the input before any expensive cryptographic work,
// hashes the password and issues the first session token. New accounts
// always start with the regular user role; elevation is an operator
// action.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	}
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(ctx, email, username, hashedPassword, domain.RoleUser)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the email is taken.
	}

	token, err := s.tokens.GenerateToken(userID, domain.RoleUser)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Login answers with a generic credentials error on any failure to avoid
// user enumeration.
func (s *AuthService) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}
	if !user.Active {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
