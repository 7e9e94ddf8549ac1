package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bookshelf/internal/book"
	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/notification"
)

// --- モック定義 ---

type mockUserStore struct {
	findAllFn        func(ctx context.Context) ([]*model.User, error)
	findByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	registerFn       func(ctx context.Context, email, password string) (*model.User, error)
	deleteByIDFn     func(ctx context.Context, id int64) error
	changePasswordFn func(ctx context.Context, u *model.User, newPassword string) error
}

func (m *mockUserStore) FindAll(ctx context.Context) ([]*model.User, error) {
	if m.findAllFn != nil {
		return m.findAllFn(ctx)
	}
	return nil, nil
}

func (m *mockUserStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserStore) Register(ctx context.Context, email, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return &model.User{ID: 1, Email: email}, nil
}

func (m *mockUserStore) DeleteByID(ctx context.Context, id int64) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockUserStore) ChangePassword(ctx context.Context, u *model.User, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, u, newPassword)
	}
	return nil
}

// plainVerifier は "hash:" + 平文 をハッシュとみなす検証器。
type plainVerifier struct{}

func (plainVerifier) Matches(plain, hash string) bool {
	return hash == "hash:"+plain
}

type dispatchCall struct {
	address string
	tmpl    notification.Template
}

type mockNotifier struct {
	calls []dispatchCall
	err   error
}

func (m *mockNotifier) Dispatch(ctx context.Context, address string, tmpl notification.Template) error {
	m.calls = append(m.calls, dispatchCall{address: address, tmpl: tmpl})
	return m.err
}

type mockRegistrationRecorder struct {
	outcomes []string
}

func (m *mockRegistrationRecorder) RecordRegistration(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

type mockBookStore struct {
	findAllFn     func(ctx context.Context, userID int64) ([]*model.Book, error)
	findByIDFn    func(ctx context.Context, userID, id int64) (*model.Book, error)
	findByShelfFn func(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error)
	saveFn        func(ctx context.Context, b *model.Book) (*model.Book, error)
	updateFn      func(ctx context.Context, b *model.Book, p book.Patch) (*model.Book, error)
	deleteFn      func(ctx context.Context, b *model.Book) error
}

func (m *mockBookStore) FindAll(ctx context.Context, userID int64) ([]*model.Book, error) {
	if m.findAllFn != nil {
		return m.findAllFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBookStore) FindByID(ctx context.Context, userID, id int64) (*model.Book, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockBookStore) FindByShelf(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error) {
	if m.findByShelfFn != nil {
		return m.findByShelfFn(ctx, userID, shelf, title, author)
	}
	return nil, nil
}

func (m *mockBookStore) Save(ctx context.Context, b *model.Book) (*model.Book, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, b)
	}
	return b, nil
}

func (m *mockBookStore) Update(ctx context.Context, b *model.Book, p book.Patch) (*model.Book, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, b, p)
	}
	updated := *b
	book.ApplyPatch(&updated, p)
	return &updated, nil
}

func (m *mockBookStore) Delete(ctx context.Context, b *model.Book) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, b)
	}
	return nil
}

type mockAuthService struct {
	loginFn  func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

// --- compile-time interface checks ---
var _ UserStore = (*mockUserStore)(nil)
var _ CredentialVerifier = plainVerifier{}
var _ NotificationDispatcher = (*mockNotifier)(nil)
var _ BookStore = (*mockBookStore)(nil)
var _ AuthService = (*mockAuthService)(nil)

// --- ヘルパー ---

// withUserID はセッションミドルウェア通過後と同じくユーザーIDを注入する。
func withUserID(r *http.Request, userID int64) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withURLParam はchiのURLパラメータを注入する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorBody はエラーレスポンスのボディをデコードする。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// assertError はステータスコードとエラーメッセージを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d", w.Code, status)
	}
	if body := decodeErrorBody(t, w); body.Message != message {
		t.Errorf("message = %q, want %q", body.Message, message)
	}
}
