package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onetee-be/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Signup(ctx context.Context, input SignupInput) (*User, error)
	Login(ctx context.Context, login, password string) (*User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
}

type service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) Service {
	return &service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *service) Signup(ctx context.Context, input SignupInput) (*User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Signup"),
	)

	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		input.DisplayName = input.Username
	}

	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUser, err)
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return nil, err
	}

	u, err := s.repo.Create(ctx, &User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashed,
		DisplayName:  input.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	log.Info("user signed up", zap.String("user_id", u.ID.String()))
	return u, nil
}

func (s *service) Login(ctx context.Context, login, password string) (*User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Login"),
	)

	u, err := s.repo.FindByLogin(ctx, strings.ToLower(strings.TrimSpace(login)))
	if errors.Is(err, ErrUserNotFound) {
		log.Info("login for unknown user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		log.Error("failed to look up user", zap.Error(err))
		return nil, err
	}

	if !CheckPasswordHash(password, u.PasswordHash) {
		log.Info("password mismatch", zap.String("user_id", u.ID.String()))
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
