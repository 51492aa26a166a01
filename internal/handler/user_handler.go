package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/friendline/internal/middleware"
	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	ListFriends(ctx context.Context, userID string) ([]model.Friend, error)
	ToggleFriend(ctx context.Context, userID, friendID string) (*user.ToggleFriendResult, error)
	Search(ctx context.Context, query string) (*user.SearchResult, error)
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー・友達・検索のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// configは退会時のセッションCookie削除に使う。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{service: service, config: config}
}

// GetUser はユーザープロフィールを返す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "id")
	u, err := h.service.GetProfile(r.Context(), targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u, u.ID == userID))
}

// ListFriends は友達一覧を返す。
// GET /api/users/{id}/friends
func (h *UserHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	friends, err := h.service.ListFriends(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFriendResponses(friends))
}

// ToggleFriend は友達の追加・解除を切り替える。
// PATCH /api/users/me/friends/{friendId}
func (h *UserHandler) ToggleFriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ToggleFriend(r.Context(), userID, chi.URLParam(r, "friendId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleFriendResponse{
		Added:   result.Added,
		Friends: toFriendResponses(result.Friends),
	})
}

// Search はユーザー名と投稿本文を検索する。
// GET /api/search?q=xxx
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	result, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	users := make([]userResponse, 0, len(result.Users))
	for _, u := range result.Users {
		users = append(users, toUserResponse(u, false))
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Users: users,
		Posts: toPostResponses(result.Posts),
	})
}

// Withdraw は退会処理を行い、セッションCookieを削除する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
