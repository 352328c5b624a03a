// users.go — обработчики учётных записей: вход администратора, регистрация,
// смена и сброс пароля, статус, список.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/shipdesk/internal/api/errors"
	"github.com/bigkaa/shipdesk/internal/api/middleware"
	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/service"
)

// userView — пользователь в ответе API (без хэша пароля).
type userView struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles"`
	Status    string   `json:"status"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

func newUserView(u *model.User) userView {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     roles,
		Status:    string(u.Status),
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

// authView — результат входа или регистрации.
type authView struct {
	User      userView `json:"user"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expiresAt"`
}

func newAuthView(res *service.AuthResult) authView {
	return authView{
		User:      newUserView(res.User),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignInAdmin — POST /api/users/sign-in-admin.
func (h *APIHandler) SignInAdmin(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.users.SignInAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, newAuthView(res))
}

type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// SignUp — POST /api/users/sign-up. Новый пользователь получает роль user.
func (h *APIHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.users.SignUp(r.Context(), service.SignUpInput(req))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.Created(w, newAuthView(res))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword — POST /api/users/change-password.
// Пароль меняется у пользователя из токена.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		apierrors.Unauthorized(w)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), principal.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, nil)
}

type resetPasswordRequest struct {
	UserID      string `json:"userId"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword — POST /api/users/reset-password (администратор).
func (h *APIHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.users.ResetPassword(r.Context(), req.UserID, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, nil)
}

type userStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ChangeUserStatus — POST /api/users/status-change (администратор).
func (h *APIHandler) ChangeUserStatus(w http.ResponseWriter, r *http.Request) {
	var req userStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.users.ChangeStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, newUserView(u))
}

// ListUsers — GET /api/users (администратор).
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	apierrors.OK(w, views)
}
