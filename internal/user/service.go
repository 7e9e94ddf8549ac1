// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

// ErrAlreadyRegistered は登録済みのメールアドレスで登録しようとした場合のエラー。
var ErrAlreadyRegistered = errors.New("user: email already registered")

// PasswordHasher はパスワードのハッシュ化インターフェース。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Service はユーザー管理のサービス層。
// 登録、退会、パスワード変更のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
}

// NewService はServiceの新しいインスタンスを生成する。
// sessionRepoがnilの場合、退会時のセッション削除を行わない。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
	}
}

// FindAll は全ユーザーを返す。
func (s *Service) FindAll(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// FindByID は指定IDのユーザーを返す。見つからない場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return u, nil
}

// FindByEmail はメールアドレスでユーザーを返す。見つからない場合はnilを返す。
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return u, nil
}

// Register はユーザーが存在しない場合のみ作成する。
// パスワードはハッシュ化して保存する。
// 登録済みの場合はErrAlreadyRegisteredを返す。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:    email,
		Password: hash,
		Active:   true,
	}
	// 存在確認と作成の間に別リクエストが登録した場合は一意制約で検出する
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.Int64("user_id", u.ID),
	)
	return u, nil
}

// DeleteByID はユーザーを削除する。
// 削除順序: sessions → user（+ CASCADE: books）
func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	slog.Info("退会処理を開始します",
		slog.Int64("user_id", id),
	)

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, id); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.Int64("user_id", id),
	)
	return nil
}

// ChangePassword は新しいパスワードをハッシュ化して保存する。
// 成功時はuser.Passwordも新しいハッシュに更新される。
func (s *Service) ChangePassword(ctx context.Context, u *model.User, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}
	u.Password = hash

	slog.Info("パスワードを変更しました",
		slog.Int64("user_id", u.ID),
	)
	return nil
}
