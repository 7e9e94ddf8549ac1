// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

// UserFinder はログイン時のユーザー検索インターフェース。
type UserFinder interface {
	// FindByEmail は見つからない場合にnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// PasswordVerifier は平文パスワードとハッシュの一致を検証する。
type PasswordVerifier interface {
	Matches(plain, hash string) bool
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       UserFinder
	sessionRepo repository.SessionRepository
	verifier    PasswordVerifier
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users UserFinder,
	sessionRepo repository.SessionRepository,
	verifier PasswordVerifier,
	config ServiceConfig,
) *Service {
	return &Service{
		users:       users,
		sessionRepo: sessionRepo,
		verifier:    verifier,
		config:      config,
		now:         time.Now,
	}
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザーが存在しない、無効化されている、パスワードが一致しない場合は
// いずれも同じINVALID_CREDENTIALSエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil || !u.Active || !s.verifier.Matches(password, u.Password) {
		slog.Warn("login failed", slog.Bool("user_exists", u != nil))
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.Int64("user_id", u.ID))
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID int64) (*model.Session, error) {
	now := s.now()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}
