package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/middleware"
	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/service"
	"github.com/mmeshcher/wonderland/internal/validation"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string     `json:"id"`
	Email string     `json:"email,omitempty"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issue(w, r, u, http.StatusCreated)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if req.Email == "" || req.Password == "" {
		h.fail(w, r, validation.New("missing or invalid fields", "email", "password"))
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issue(w, r, u, http.StatusOK)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, u *model.User, status int) {
	token, err := h.authMiddleware.IssueToken(middleware.User{ID: u.ID, Name: u.Name, Role: u.Role})
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		h.fail(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, token)
	writeJSON(w, status, authResponse{
		User:  userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
		Token: token,
	})
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, nil)
}

// Me возвращает текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Name: u.Name, Role: u.Role})
}
