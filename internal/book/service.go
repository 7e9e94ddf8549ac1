package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
	"github.com/hitoshi/bookshelf/internal/security"
)

// Service は本の管理のサービス層。
// 本は常に所有ユーザーの範囲で扱い、他ユーザーの本は存在しないものとして扱う。
type Service struct {
	repo      repository.BookRepository
	sanitizer security.ContentSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.BookRepository, sanitizer security.ContentSanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer}
}

// FindAll はユーザーの全ての本を返す。本がない場合は空スライスを返す。
func (s *Service) FindAll(ctx context.Context, userID int64) ([]*model.Book, error) {
	books, err := s.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("本の一覧取得に失敗しました: %w", err)
	}
	if books == nil {
		books = []*model.Book{}
	}
	return books, nil
}

// FindByID はユーザーが所有する指定IDの本を返す。
// 存在しない場合、または他ユーザーの本の場合はnilを返す。
func (s *Service) FindByID(ctx context.Context, userID, id int64) (*model.Book, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("本の取得に失敗しました: %w", err)
	}
	if b == nil || b.UserID != userID {
		return nil, nil
	}
	return b, nil
}

// FindByShelf はユーザーの指定本棚にある本を返す。
// title、authorが空でない場合は部分一致で絞り込む。
func (s *Service) FindByShelf(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error) {
	books, err := s.repo.FindByShelf(ctx, userID, shelf, title, author)
	if err != nil {
		return nil, fmt.Errorf("本棚の本の取得に失敗しました: %w", err)
	}
	if books == nil {
		books = []*model.Book{}
	}
	return books, nil
}

// Save は本を保存して保存後の本を返す。
// 制約違反で保存できなかった場合はnilを返す。
func (s *Service) Save(ctx context.Context, b *model.Book) (*model.Book, error) {
	s.sanitize(b)

	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConstraint) {
			slog.Warn("本の保存が制約違反で拒否されました",
				slog.Int64("user_id", b.UserID),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("本の保存に失敗しました: %w", err)
	}
	return b, nil
}

// Update はパッチを適用して保存し、更新後の本を返す。
// bは変更しない。制約違反で保存できなかった場合はnilを返す。
func (s *Service) Update(ctx context.Context, b *model.Book, p Patch) (*model.Book, error) {
	updated := *b
	ApplyPatch(&updated, p)
	s.sanitize(&updated)

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrConstraint) {
			slog.Warn("本の更新が制約違反で拒否されました",
				slog.Int64("book_id", b.ID),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("本の更新に失敗しました: %w", err)
	}
	return &updated, nil
}

// Delete は本を削除する。
func (s *Service) Delete(ctx context.Context, b *model.Book) error {
	if err := s.repo.Delete(ctx, b.ID); err != nil {
		return fmt.Errorf("本の削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) sanitize(b *model.Book) {
	if s.sanitizer == nil {
		return
	}
	b.Title = s.sanitizer.SanitizeText(b.Title)
	b.AuthorFirstName = s.sanitizer.SanitizeText(b.AuthorFirstName)
	b.AuthorLastName = s.sanitizer.SanitizeText(b.AuthorLastName)
	b.Genre = s.sanitizer.SanitizeText(b.Genre)
	b.Format = s.sanitizer.SanitizeText(b.Format)
	b.ISBN = s.sanitizer.SanitizeText(b.ISBN)
	b.Review = s.sanitizer.SanitizeReview(b.Review)
}
