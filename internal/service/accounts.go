package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

const minPasswordLength = 6

// RegisterInput содержит данные регистрации.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// RegisterUser регистрирует нового пользователя. Адреса из списка администраторов
// получают роль admin.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := validation.NormalizeEmail(in.Email)

	var c validation.Checker
	c.Require("email", email)
	c.Require("name", in.Name)
	c.Check("password", len(in.Password) >= minPasswordLength)
	if err := c.Err(); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         in.Name,
		Phone:        in.Phone,
		PasswordHash: hashed,
		Role:         model.RoleUser,
	}
	if s.isAdminEmail(email) {
		u.Role = model.RoleAdmin
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// AuthenticateUser проверяет почту и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
