// Package user 用户目录：注册、登录、查询。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"shop/internal/model"
	"shop/internal/observability"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	tokens  *Tokens
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewService(db *gorm.DB, tokens *Tokens, log *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{db: db, tokens: tokens, log: log, metrics: metrics}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	// IsAdmin 只给 cmd/seed 用，HTTP 注册不会设置。
	IsAdmin bool `json:"-"`
}

func (in RegisterInput) validate() error {
	if len(strings.TrimSpace(in.Username)) < 3 {
		return fmt.Errorf("%w: username must be at least 3 characters", model.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: invalid email address", model.ErrInvalidInput)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", model.ErrInvalidInput)
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hashed),
		FullName:     in.FullName,
		IsAdmin:      in.IsAdmin,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, model.ErrUserExists
		}
		return nil, model.StorageError("create user", err)
	}

	s.metrics.UserRegistrations.Inc()
	s.log.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(u.ID)), slog.String("username", u.Username))
	return u, nil
}

// Login 校验用户名密码，成功时返回用户和 token。
// 用户不存在与密码错误返回同一个错误。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", model.StorageError("load user", err)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.metrics.UserLogins.WithLabelValues("failure").Inc()
		s.log.WarnContext(ctx, "login failed", slog.String("username", username))
		return nil, "", model.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return nil, "", err
	}
	s.metrics.UserLogins.WithLabelValues("success").Inc()
	s.log.InfoContext(ctx, "user logged in", slog.Uint64("user_id", uint64(u.ID)))
	return &u, token, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, model.StorageError("load user", err)
	}
	return &u, nil
}

func (s *Service) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, model.StorageError("list users", err)
	}
	return users, nil
}
