package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"fmt"
)

type IAuthService interface {
	Login(email, password string) (Account, error)
	Register(email, password string) (Account, error)
}

type Token string

// Account is what a client needs to open a chat session.
type Account struct {
	UserID string
	Token  Token
}

type AuthService struct {
	userRepository storage.IUserRepository
	tokens         *auth.Tokens
}

func NewAuthService(repo storage.IUserRepository, tokens *auth.Tokens) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(email, password string) (Account, error) {
	// 1. Validate business rules before any expensive cryptographic operation
	// Wraps errors.ErrInvalidEmail or errors.ErrInvalidPassword
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return Account{}, err
	}

	// 2. Hash in the service layer so the repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist, propagating ErrUserAlreadyExists
	userID, err := s.userRepository.CreateUser(email, hashedPassword)
	if err != nil {
		return Account{}, err
	}

	return s.issue(userID, []string{"user"})
}

func (s *AuthService) Login(email, password string) (Account, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration
		return Account{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Account{}, errors.ErrInvalidCredentials
	}

	return s.issue(user.ID, user.Roles)
}

func (s *AuthService) issue(userID string, roles []string) (Account, error) {
	token, err := s.tokens.GenerateToken(userID, roles)
	if err != nil {
		return Account{}, errors.ErrTokenGeneration
	}
	return Account{UserID: userID, Token: Token(token)}, nil
}
