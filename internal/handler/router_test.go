package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/book"
	"github.com/hitoshi/bookshelf/internal/credential"
	"github.com/hitoshi/bookshelf/internal/metrics"
	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
	"github.com/hitoshi/bookshelf/internal/security"
	"github.com/hitoshi/bookshelf/internal/user"
)

// --- インメモリリポジトリ ---

type memoryStore struct {
	mu         sync.Mutex
	users      map[int64]*model.User
	books      map[int64]*model.Book
	sessions   map[string]*model.Session
	nextUserID int64
	nextBookID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    make(map[int64]*model.User),
		books:    make(map[int64]*model.Book),
		sessions: make(map[string]*model.Session),
	}
}

type memoryUserRepo struct{ s *memoryStore }

func (r memoryUserRepo) FindAll(ctx context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r memoryUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (r memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r memoryUserRepo) Create(ctx context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.s.nextUserID++
	u.ID = r.s.nextUserID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	r.s.users[u.ID] = &copied
	return nil
}

func (r memoryUserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.Password = hash
	}
	return nil
}

func (r memoryUserRepo) DeleteByID(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	for bookID, b := range r.s.books {
		if b.UserID == id {
			delete(r.s.books, bookID)
		}
	}
	return nil
}

type memoryBookRepo struct{ s *memoryStore }

func (r memoryBookRepo) list(match func(*model.Book) bool) []*model.Book {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	books := []*model.Book{}
	for _, b := range r.s.books {
		if match(b) {
			copied := *b
			books = append(books, &copied)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}

func (r memoryBookRepo) FindAll(ctx context.Context, userID int64) ([]*model.Book, error) {
	return r.list(func(b *model.Book) bool { return b.UserID == userID }), nil
}

func (r memoryBookRepo) FindByID(ctx context.Context, id int64) (*model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.books[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (r memoryBookRepo) FindByShelf(ctx context.Context, userID int64, shelf model.Shelf, title, author string) ([]*model.Book, error) {
	contains := func(s, sub string) bool {
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	}
	return r.list(func(b *model.Book) bool {
		return b.UserID == userID && b.PredefinedShelf == shelf &&
			(title == "" || contains(b.Title, title)) &&
			(author == "" || contains(b.AuthorFirstName, author) || contains(b.AuthorLastName, author))
	}), nil
}

func (r memoryBookRepo) Create(ctx context.Context, b *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[b.UserID]; !ok {
		return repository.ErrConstraint
	}
	r.s.nextBookID++
	b.ID = r.s.nextBookID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	copied := *b
	r.s.books[b.ID] = &copied
	return nil
}

func (r memoryBookRepo) Update(ctx context.Context, b *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.UpdatedAt = time.Now()
	copied := *b
	r.s.books[b.ID] = &copied
	return nil
}

func (r memoryBookRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.books, id)
	return nil
}

type memorySessionRepo struct{ s *memoryStore }

func (r memorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := *session
	r.s.sessions[session.ID] = &copied
	return nil
}

func (r memorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if session, ok := r.s.sessions[id]; ok && !session.Expired(time.Now()) {
		copied := *session
		return &copied, nil
	}
	return nil, nil
}

func (r memorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r memorySessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, session := range r.s.sessions {
		if session.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

var _ repository.UserRepository = memoryUserRepo{}
var _ repository.BookRepository = memoryBookRepo{}
var _ repository.SessionRepository = memorySessionRepo{}

type fakeHealthChecker struct{ err error }

func (f fakeHealthChecker) PingContext(ctx context.Context) error { return f.err }

// --- テスト用クライアント ---

// testClient はCookieを保持してルーターにリクエストを送る。
type testClient struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]string
}

func (c *testClient) do(method, target, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Origin", "http://localhost:3000")
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if token, ok := c.cookies["csrf_token"]; ok {
		req.Header.Set("X-CSRF-Token", token)
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie.Value
	}
	return w
}

func (c *testClient) expect(method, target, body string, status int) *httptest.ResponseRecorder {
	c.t.Helper()
	w := c.do(method, target, body)
	if w.Code != status {
		c.t.Fatalf("%s %s: status = %d, want %d (body: %s)", method, target, w.Code, status, w.Body.String())
	}
	return w
}

type testServer struct {
	client   *testClient
	notifier *mockNotifier
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, health HealthChecker) *testServer {
	t.Helper()

	store := newMemoryStore()
	userRepo := memoryUserRepo{store}
	sessionRepo := memorySessionRepo{store}
	encoder := credential.NewEncoder(bcrypt.MinCost)

	userService := user.NewService(userRepo, sessionRepo, encoder)
	bookService := book.NewService(memoryBookRepo{store}, security.NewContentSanitizer())
	authService := auth.NewService(userService, sessionRepo, encoder, auth.ServiceConfig{SessionMaxAge: 3600})

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	registry := prometheus.NewRegistry()
	notifier := &mockNotifier{}

	router := NewRouter(&RouterDeps{
		SessionFinder:      sessionRepo,
		CORSAllowedOrigin:  "http://localhost:3000",
		RateLimiter:        rl,
		HealthChecker:      health,
		Metrics:            metrics.NewCollector(registry),
		MetricsHandler:     metrics.Handler(registry),
		AuthService:        authService,
		Cookies:            CookieConfig{MaxAge: 3600},
		UserStore:          userService,
		CredentialVerifier: encoder,
		Notifier:           notifier,
		BookStore:          bookService,
	})

	return &testServer{
		client:   &testClient{t: t, handler: router, cookies: map[string]string{}},
		notifier: notifier,
		registry: registry,
	}
}

// --- テスト ---

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t, fakeHealthChecker{})
	srv.client.expect(http.MethodGet, "/health", "", http.StatusOK)

	down := newTestServer(t, fakeHealthChecker{err: errors.New("db down")})
	down.client.expect(http.MethodGet, "/health", "", http.StatusServiceUnavailable)
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, fakeHealthChecker{})

	for _, target := range []string{"/api/books", "/api/user/users", "/api/auth/me", "/api/shelves"} {
		srv.client.expect(http.MethodGet, target, "", http.StatusUnauthorized)
	}
}

func TestRouter_RegisterTwice_EmailTaken(t *testing.T) {
	srv := newTestServer(t, fakeHealthChecker{})
	c := srv.client

	w := c.expect(http.MethodPost, "/api/user", `{"username":"a@b.com","password":"x"}`, http.StatusCreated)
	if w.Body.Len() != 0 {
		t.Errorf("register body = %q, want empty", w.Body.String())
	}

	w = c.expect(http.MethodPost, "/api/user", `{"username":"a@b.com","password":"x"}`, http.StatusBadRequest)
	if body := decodeErrorBody(t, w); body.Message != "Email taken" {
		t.Errorf("message = %q, want %q", body.Message, "Email taken")
	}

	if len(srv.notifier.calls) != 1 {
		t.Errorf("dispatch calls = %d, want 1", len(srv.notifier.calls))
	}

	m := c.expect(http.MethodGet, "/metrics", "", http.StatusOK)
	if !strings.Contains(m.Body.String(), `bookshelf_registrations_total{outcome="duplicate"} 1`) {
		t.Error("duplicate registration should be counted")
	}
}

func TestRouter_BookLifecycle(t *testing.T) {
	srv := newTestServer(t, fakeHealthChecker{})
	c := srv.client

	c.expect(http.MethodPost, "/api/user", `{"username":"a@b.com","password":"x"}`, http.StatusCreated)
	c.expect(http.MethodPost, "/api/auth/login", `{"username":"a@b.com","password":"x"}`, http.StatusNoContent)
	if c.cookies[middleware.SessionCookieName] == "" {
		t.Fatal("login should set the session cookie")
	}

	// CSRFトークンがないと状態変更はできない
	c.expect(http.MethodPost, "/api/book", `{"title":"Fake book"}`, http.StatusForbidden)

	// 認証済みのGETでCSRFトークンCookieが発行される
	w := c.expect(http.MethodGet, "/api/books", "", http.StatusOK)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("books = %s, want []", w.Body.String())
	}
	if c.cookies["csrf_token"] == "" {
		t.Fatal("csrf cookie should be set by a safe request")
	}

	w = c.expect(http.MethodPost, "/api/book", `{"title":"Fake book","author_last_name":"Herbert"}`, http.StatusCreated)
	created := decodeBook(t, w)
	if created.Title != "Fake book" || created.ID == 0 {
		t.Fatalf("created = %+v", created)
	}

	// 同じパッチを2回適用しても結果は同じ
	first := decodeBook(t, c.expect(http.MethodPatch, "/api/book/1", `{"title":"B"}`, http.StatusOK))
	second := decodeBook(t, c.expect(http.MethodPatch, "/api/book/1", `{"title":"B"}`, http.StatusOK))
	if first.Title != "B" || second.Title != "B" {
		t.Errorf("titles = %q, %q, want B", first.Title, second.Title)
	}
	if second.AuthorLastName != "Herbert" || second.PredefinedShelf != model.ShelfToRead {
		t.Errorf("unpatched fields changed: %+v", second)
	}

	w = c.expect(http.MethodGet, "/api/books/shelf/to-read?author=herb", "", http.StatusOK)
	var shelved []model.Book
	if err := json.NewDecoder(w.Body).Decode(&shelved); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(shelved) != 1 {
		t.Errorf("shelf books = %d, want 1", len(shelved))
	}
	c.expect(http.MethodGet, "/api/books/shelf/someday", "", http.StatusBadRequest)

	w = c.expect(http.MethodGet, "/api/book/999", "", http.StatusNotFound)
	if body := decodeErrorBody(t, w); body.Message != "Could not find book with ID 999" {
		t.Errorf("message = %q", body.Message)
	}

	c.expect(http.MethodDelete, "/api/book/1", "", http.StatusNoContent)
	c.expect(http.MethodGet, "/api/book/1", "", http.StatusNotFound)
}

func TestRouter_BooksAreScopedToOwner(t *testing.T) {
	srv := newTestServer(t, fakeHealthChecker{})
	c := srv.client

	c.expect(http.MethodPost, "/api/user", `{"username":"owner@b.com","password":"x"}`, http.StatusCreated)
	c.expect(http.MethodPost, "/api/user", `{"username":"other@b.com","password":"y"}`, http.StatusCreated)

	c.expect(http.MethodPost, "/api/auth/login", `{"username":"owner@b.com","password":"x"}`, http.StatusNoContent)
	c.expect(http.MethodGet, "/api/csrf-token", "", http.StatusOK)
	c.expect(http.MethodPost, "/api/book", `{"title":"Mine"}`, http.StatusCreated)
	c.expect(http.MethodPost, "/api/auth/logout", "", http.StatusNoContent)

	c.expect(http.MethodPost, "/api/auth/login", `{"username":"other@b.com","password":"y"}`, http.StatusNoContent)
	c.expect(http.MethodGet, "/api/book/1", "", http.StatusNotFound)
	c.expect(http.MethodDelete, "/api/book/1", "", http.StatusNotFound)
}

func TestRouter_PasswordChangeAndAccountDeletion(t *testing.T) {
	srv := newTestServer(t, fakeHealthChecker{})
	c := srv.client

	c.expect(http.MethodPost, "/api/user", `{"username":"a@b.com","password":"x"}`, http.StatusCreated)
	c.expect(http.MethodPost, "/api/auth/login", `{"username":"a@b.com","password":"wrong"}`, http.StatusUnauthorized)
	c.expect(http.MethodPost, "/api/auth/login", `{"username":"a@b.com","password":"x"}`, http.StatusNoContent)
	c.expect(http.MethodGet, "/api/csrf-token", "", http.StatusOK)

	w := c.expect(http.MethodGet, "/api/auth/me", "", http.StatusOK)
	if !strings.Contains(w.Body.String(), "a@b.com") || strings.Contains(w.Body.String(), "$2a$") {
		t.Errorf("me = %s", w.Body.String())
	}

	c.expect(http.MethodPost, "/api/user/update-password?currentPassword=nope&newPassword=y", "", http.StatusUnauthorized)
	w = c.expect(http.MethodPost, "/api/user/update-password?currentPassword=x&newPassword=y", "", http.StatusOK)
	if strings.TrimSpace(w.Body.String()) != "true" {
		t.Errorf("body = %s, want true", w.Body.String())
	}

	c.expect(http.MethodDelete, "/api/user", `{"password":"x"}`, http.StatusUnauthorized)
	c.expect(http.MethodDelete, "/api/user", `{"password":"y"}`, http.StatusNoContent)

	// セッションは削除済み
	c.expect(http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized)
	c.expect(http.MethodPost, "/api/auth/login", `{"username":"a@b.com","password":"y"}`, http.StatusUnauthorized)

	if len(srv.notifier.calls) != 3 {
		t.Errorf("dispatch calls = %d, want 3 (created, password changed, deleted)", len(srv.notifier.calls))
	}
}
