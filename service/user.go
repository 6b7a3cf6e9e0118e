package service

import (
	"audio-service/apperror"
	"audio-service/entities"
	"audio-service/repository"
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	RegisterUser(ctx context.Context, username, email, password string) (*entities.User, error)
}

type userService struct {
	repo repository.AudioRepository
}

func (s *userService) RegisterUser(ctx context.Context, username, email, password string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || len(username) > 50 {
		return nil, apperror.InvalidRequest("Username must be between 1 and 50 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.InvalidRequest("Email is not valid")
	}
	if password == "" {
		return nil, apperror.InvalidRequest("Password is required")
	}

	var user *entities.User
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.UserExistsByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if exists {
			return apperror.Conflict("Username is already taken")
		}
		exists, err = s.repo.UserExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return apperror.Conflict("Email is already registered")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash credential: %w", err)
		}
		user = &entities.User{Username: username, Email: email, Credential: string(hash)}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, nil
}

func NewUserService(repo repository.AudioRepository) UserService {
	return &userService{repo: repo}
}
