package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/bookshelf/internal/metrics"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/notification"
	"github.com/hitoshi/bookshelf/internal/user"
	"github.com/hitoshi/bookshelf/internal/validator"
)

// UserStore はユーザーハンドラーが必要とするユーザーの永続化インターフェース。
type UserStore interface {
	FindAll(ctx context.Context) ([]*model.User, error)
	// FindByID は見つからない場合にnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// Register は未登録の場合のみユーザーを作成する。
	// 登録済みの場合はuser.ErrAlreadyRegisteredを返す。
	Register(ctx context.Context, email, password string) (*model.User, error)
	DeleteByID(ctx context.Context, id int64) error
	ChangePassword(ctx context.Context, u *model.User, newPassword string) error
}

// CredentialVerifier は平文パスワードとハッシュの一致を検証する。
type CredentialVerifier interface {
	Matches(plain, hash string) bool
}

// NotificationDispatcher はアカウントイベントの通知メールを送信する。
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, address string, tmpl notification.Template) error
}

// RegistrationRecorder はユーザー登録の結果をメトリクスに記録する。
type RegistrationRecorder interface {
	RecordRegistration(outcome string)
}

// registrationRequest はユーザー登録リクエストのボディ。
type registrationRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// deletionRequest はアカウント削除リクエストのボディ。
type deletionRequest struct {
	Password string `json:"password"`
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	users    UserStore
	verifier CredentialVerifier
	notifier NotificationDispatcher
	recorder RegistrationRecorder
	cookies  CookieConfig
}

// NewUserHandler はUserHandlerを生成する。recorderはnilでもよい。
func NewUserHandler(
	users UserStore,
	verifier CredentialVerifier,
	notifier NotificationDispatcher,
	recorder RegistrationRecorder,
	cookies CookieConfig,
) *UserHandler {
	return &UserHandler{
		users:    users,
		verifier: verifier,
		notifier: notifier,
		recorder: recorder,
		cookies:  cookies,
	}
}

// ListUsers は全ユーザーを返す。
// GET /api/user/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if users == nil {
		users = []*model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser は指定IDのユーザーを返す。
// GET /api/user/user/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if u == nil {
		handleServiceError(w, model.NewUserNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// Register はユーザーを登録し、登録完了メールを送信する。
// 重複メールとメール送信失敗はどちらも 400 "Email taken" を返す。
// POST /api/user
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	v := validator.New()
	v.Check(validator.NotBlank(req.Username), "username", "must be provided")
	v.Check(validator.Matches(req.Username, validator.EmailRX), "username", "must be a valid email address")
	v.Check(validator.NotBlank(req.Password), "password", "must be provided")
	if !v.Valid() {
		handleServiceError(w, model.NewValidationError(v.Errors))
		return
	}

	if _, err := h.users.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, user.ErrAlreadyRegistered) {
			h.recordRegistration(metrics.RegistrationDuplicate)
			handleServiceError(w, model.NewEmailTakenError())
			return
		}
		handleServiceError(w, err)
		return
	}

	if err := h.notifier.Dispatch(r.Context(), req.Username, notification.AccountCreated); err != nil {
		// ユーザーは作成済みだが、レスポンスは重複時と同じにする
		slog.Error("登録完了メールの送信に失敗しました",
			slog.String("error", err.Error()),
		)
		h.recordRegistration(metrics.RegistrationNotificationFail)
		handleServiceError(w, model.NewEmailTakenError())
		return
	}

	h.recordRegistration(metrics.RegistrationCreated)
	w.WriteHeader(http.StatusCreated)
}

// DeleteCurrentUser はパスワードを確認してログイン中のユーザーを削除する。
// DELETE /api/user
func (h *UserHandler) DeleteCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req deletionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	u, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if u == nil {
		handleServiceError(w, model.NewCurrentUserNotFoundError())
		return
	}

	if !h.verifier.Matches(req.Password, u.Password) {
		handleServiceError(w, model.NewWrongPasswordError())
		return
	}

	if err := h.users.DeleteByID(r.Context(), u.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	clearSessionCookie(w, h.cookies)

	if err := h.notifier.Dispatch(r.Context(), u.Email, notification.AccountDeleted); err != nil {
		slog.Error("退会完了メールの送信に失敗しました",
			slog.Int64("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdatePassword は現在のパスワードを確認してパスワードを変更する。
// POST /api/user/update-password?currentPassword=...&newPassword=...
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	currentPassword := q.Get("currentPassword")
	newPassword := q.Get("newPassword")

	v := validator.New()
	v.Check(validator.NotBlank(newPassword), "newPassword", "must be provided")
	if !v.Valid() {
		handleServiceError(w, model.NewValidationError(v.Errors))
		return
	}

	u, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if u == nil {
		handleServiceError(w, model.NewCurrentUserNotFoundError())
		return
	}

	if !h.verifier.Matches(currentPassword, u.Password) {
		handleServiceError(w, model.NewIncorrectPasswordError())
		return
	}

	if err := h.users.ChangePassword(r.Context(), u, newPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.notifier.Dispatch(r.Context(), u.Email, notification.PasswordChanged); err != nil {
		slog.Error("パスワード変更メールの送信に失敗しました",
			slog.Int64("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, true)
}

func (h *UserHandler) recordRegistration(outcome string) {
	if h.recorder != nil {
		h.recorder.RecordRegistration(outcome)
	}
}
