// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/bookshelf/internal/model"
)

// ErrDuplicateEmail は既に登録済みのメールアドレスでユーザーを作成しようとした場合のエラー。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// ErrConstraint は本の保存がDBの制約違反で失敗した場合のエラー。
var ErrConstraint = errors.New("repository: constraint violation")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindAll は全ユーザーをID昇順で取得する。
	FindAll(ctx context.Context) ([]*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePassword はユーザーのパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するbooksはCASCADE削除される。
	DeleteByID(ctx context.Context, id int64) error
}

// BookRepository は本データの永続化インターフェース。
type BookRepository interface {
	// FindAll はユーザーの全ての本をID昇順で取得する。
	FindAll(ctx context.Context, userID int64) ([]*model.Book, error)

	// FindByID は指定IDの本を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Book, error)

	// FindByShelf はユーザーの指定本棚にある本を取得する。
	// title、authorが空でない場合は部分一致（大文字小文字を区別しない）で絞り込む。
	// authorは姓・名のいずれかに一致すればよい。
	FindByShelf(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error)

	// Create は本を作成し、採番されたIDとタイムスタンプをbookに設定する。
	// DBの制約違反の場合はErrConstraintを返す。
	Create(ctx context.Context, book *model.Book) error

	// Update は本の全項目を上書き更新する。
	// DBの制約違反の場合はErrConstraintを返す。
	Update(ctx context.Context, book *model.Book) error

	// Delete は指定IDの本を削除する。
	Delete(ctx context.Context, id int64) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
}
