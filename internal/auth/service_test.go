package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

// --- モック定義 ---

type mockUserFinder struct {
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserFinder) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID int64) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

// plainVerifier は "hash:" + 平文 をハッシュとみなす。
type plainVerifier struct{}

func (plainVerifier) Matches(plain, hash string) bool {
	return hash == "hash:"+plain
}

// --- compile-time interface checks ---
var _ UserFinder = (*mockUserFinder)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ PasswordVerifier = plainVerifier{}

func activeUser() *model.User {
	return &model.User{ID: 3, Email: "a@b.com", Password: "hash:x", Active: true}
}

func usersWith(u *model.User) *mockUserFinder {
	return &mockUserFinder{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			if email == u.Email {
				return u, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestLogin_Success_CreatesSession(t *testing.T) {
	var created *model.Session
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			created = session
			return nil
		},
	}
	svc := NewService(usersWith(activeUser()), sessions, plainVerifier{}, ServiceConfig{SessionMaxAge: 3600})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	session, err := svc.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != created {
		t.Error("returned session should be the persisted one")
	}
	if session.UserID != 3 {
		t.Errorf("UserID = %d, want 3", session.UserID)
	}
	if session.ID == "" {
		t.Error("session ID should not be empty")
	}
	if !session.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, fixed.Add(time.Hour))
	}
}

func TestLogin_SessionIDsAreUnique(t *testing.T) {
	svc := NewService(usersWith(activeUser()), &mockSessionRepo{}, plainVerifier{}, ServiceConfig{SessionMaxAge: 60})

	s1, err := svc.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := svc.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.ID == s2.ID {
		t.Error("session IDs should differ")
	}
}

func TestLogin_Failures_ReturnInvalidCredentials(t *testing.T) {
	inactive := activeUser()
	inactive.Active = false

	tests := []struct {
		name     string
		users    *mockUserFinder
		email    string
		password string
	}{
		{"未登録", usersWith(activeUser()), "nobody@b.com", "x"},
		{"パスワード不一致", usersWith(activeUser()), "a@b.com", "wrong"},
		{"無効化ユーザー", usersWith(inactive), "a@b.com", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessionRepo{
				createFn: func(ctx context.Context, session *model.Session) error {
					t.Fatal("session should not be created")
					return nil
				},
			}
			svc := NewService(tt.users, sessions, plainVerifier{}, ServiceConfig{SessionMaxAge: 60})

			_, err := svc.Login(context.Background(), tt.email, tt.password)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeInvalidCredentials {
				t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
			}
		})
	}
}

func TestLogin_RepositoryErrors(t *testing.T) {
	lookupErr := errors.New("db down")
	svc := NewService(&mockUserFinder{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, lookupErr
		},
	}, &mockSessionRepo{}, plainVerifier{}, ServiceConfig{})

	if _, err := svc.Login(context.Background(), "a@b.com", "x"); !errors.Is(err, lookupErr) {
		t.Errorf("error = %v, want wrapped %v", err, lookupErr)
	}

	saveErr := errors.New("redis down")
	svc = NewService(usersWith(activeUser()), &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			return saveErr
		},
	}, plainVerifier{}, ServiceConfig{})

	if _, err := svc.Login(context.Background(), "a@b.com", "x"); !errors.Is(err, saveErr) {
		t.Errorf("error = %v, want wrapped %v", err, saveErr)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	var deleted string
	svc := NewService(&mockUserFinder{}, &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}, plainVerifier{}, ServiceConfig{})

	if err := svc.Logout(context.Background(), "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted = %q, want %q", deleted, "sess-1")
	}
}

func TestLogout_EmptySessionID(t *testing.T) {
	svc := NewService(&mockUserFinder{}, &mockSessionRepo{}, plainVerifier{}, ServiceConfig{})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Error("expected error for empty session ID")
	}
}
