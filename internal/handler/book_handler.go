package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookshelf/internal/book"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/validator"
)

// BookStore は本ハンドラーが必要とするサービスインターフェース。
// 検索系はすべてログイン中のユーザーが所有する本のみを対象とする。
type BookStore interface {
	FindAll(ctx context.Context, userID int64) ([]*model.Book, error)
	// FindByID は見つからない場合、または他ユーザーの本の場合にnilを返す。
	FindByID(ctx context.Context, userID, id int64) (*model.Book, error)
	FindByShelf(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error)
	// Save は保存できなかった場合にnilを返す。
	Save(ctx context.Context, b *model.Book) (*model.Book, error)
	// Update は保存できなかった場合にnilを返す。
	Update(ctx context.Context, b *model.Book, p book.Patch) (*model.Book, error)
	Delete(ctx context.Context, b *model.Book) error
}

// BookHandler は本管理のHTTPハンドラー。
type BookHandler struct {
	books BookStore
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(books BookStore) *BookHandler {
	return &BookHandler{books: books}
}

// ListBooks はログイン中のユーザーの全ての本を返す。
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	books, err := h.books.FindAll(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilBooks(books))
}

// GetBook は指定IDの本を返す。
// GET /api/book/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// AddBook は本を追加する。
// POST /api/book
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var dto book.Dto
	if err := decodeJSON(r, &dto); err != nil {
		handleServiceError(w, err)
		return
	}

	v := validator.New()
	dto.Validate(v)
	if !v.Valid() {
		handleServiceError(w, model.NewValidationError(v.Errors))
		return
	}

	saved, err := h.books.Save(r.Context(), book.FromDto(dto, userID))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if saved == nil {
		handleServiceError(w, model.NewBookNotSavedError())
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// UpdateBook はパッチで指定されたフィールドのみを更新する。
// PATCH /api/book/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var patch book.Patch
	if err := decodeJSON(r, &patch); err != nil {
		handleServiceError(w, err)
		return
	}

	v := validator.New()
	patch.Validate(v)
	if !v.Valid() {
		handleServiceError(w, model.NewValidationError(v.Errors))
		return
	}

	updated, err := h.books.Update(r.Context(), b, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if updated == nil {
		handleServiceError(w, model.NewBookNotSavedError())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteBook は本を削除する。
// DELETE /api/book/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.books.Delete(r.Context(), b); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListShelves は定義済みの本棚を返す。
// GET /api/shelves
func (h *BookHandler) ListShelves(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.PredefinedShelves())
}

// FindByShelf は本棚の本を返す。titleとauthorで部分一致の絞り込みができる。
// GET /api/books/shelf/{shelf}?title=...&author=...
func (h *BookHandler) FindByShelf(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "shelf")
	shelf, valid := model.ParseShelf(name)
	if !valid {
		handleServiceError(w, model.NewInvalidShelfError(name))
		return
	}

	q := r.URL.Query()
	books, err := h.books.FindByShelf(r.Context(), userID, shelf, q.Get("title"), q.Get("author"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilBooks(books))
}

// lookup はパスパラメータのIDでログイン中のユーザーの本を取得する。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func (h *BookHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Book, bool) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return nil, false
	}

	id, err := readIDParam(r)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}

	b, err := h.books.FindByID(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if b == nil {
		handleServiceError(w, model.NewBookNotFoundError(id))
		return nil, false
	}
	return b, true
}

func nonNilBooks(books []*model.Book) []*model.Book {
	if books == nil {
		return []*model.Book{}
	}
	return books
}
