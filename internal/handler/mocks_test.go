package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/friendline/internal/auth"
	"github.com/hitoshi/friendline/internal/middleware"
	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/post"
	"github.com/hitoshi/friendline/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	loginFn          func(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, auth.ErrUnauthenticated
}

type mockPostService struct {
	createPostFn    func(ctx context.Context, authorID string, in post.CreatePostInput) (*model.Post, error)
	listFeedFn      func(ctx context.Context, cursor string, limit int) (*post.PostPage, error)
	listByUserFn    func(ctx context.Context, userID, cursor string, limit int) (*post.PostPage, error)
	getPostFn       func(ctx context.Context, postID string) (*post.PostDetail, error)
	deletePostFn    func(ctx context.Context, actorID, postID string) error
	toggleLikeFn    func(ctx context.Context, actorID, postID string) (*model.Post, error)
	addCommentFn    func(ctx context.Context, actorID, postID, body string) (*model.Comment, error)
	editCommentFn   func(ctx context.Context, actorID, postID, commentID, body string) (*model.Comment, error)
	deleteCommentFn func(ctx context.Context, actorID, postID, commentID string) error
}

func (m *mockPostService) CreatePost(ctx context.Context, authorID string, in post.CreatePostInput) (*model.Post, error) {
	if m.createPostFn != nil {
		return m.createPostFn(ctx, authorID, in)
	}
	return &model.Post{}, nil
}

func (m *mockPostService) ListFeed(ctx context.Context, cursor string, limit int) (*post.PostPage, error) {
	if m.listFeedFn != nil {
		return m.listFeedFn(ctx, cursor, limit)
	}
	return &post.PostPage{}, nil
}

func (m *mockPostService) ListByUser(ctx context.Context, userID, cursor string, limit int) (*post.PostPage, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, cursor, limit)
	}
	return &post.PostPage{}, nil
}

func (m *mockPostService) GetPost(ctx context.Context, postID string) (*post.PostDetail, error) {
	if m.getPostFn != nil {
		return m.getPostFn(ctx, postID)
	}
	return &post.PostDetail{Post: &model.Post{}}, nil
}

func (m *mockPostService) DeletePost(ctx context.Context, actorID, postID string) error {
	if m.deletePostFn != nil {
		return m.deletePostFn(ctx, actorID, postID)
	}
	return nil
}

func (m *mockPostService) ToggleLike(ctx context.Context, actorID, postID string) (*model.Post, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, actorID, postID)
	}
	return &model.Post{}, nil
}

func (m *mockPostService) AddComment(ctx context.Context, actorID, postID, body string) (*model.Comment, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, actorID, postID, body)
	}
	return &model.Comment{}, nil
}

func (m *mockPostService) EditComment(ctx context.Context, actorID, postID, commentID, body string) (*model.Comment, error) {
	if m.editCommentFn != nil {
		return m.editCommentFn(ctx, actorID, postID, commentID, body)
	}
	return &model.Comment{}, nil
}

func (m *mockPostService) DeleteComment(ctx context.Context, actorID, postID, commentID string) error {
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, actorID, postID, commentID)
	}
	return nil
}

type mockUserService struct {
	getProfileFn   func(ctx context.Context, userID string) (*model.User, error)
	listFriendsFn  func(ctx context.Context, userID string) ([]model.Friend, error)
	toggleFriendFn func(ctx context.Context, userID, friendID string) (*user.ToggleFriendResult, error)
	searchFn       func(ctx context.Context, query string) (*user.SearchResult, error)
	withdrawFn     func(ctx context.Context, userID string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return &model.User{ID: userID}, nil
}

func (m *mockUserService) ListFriends(ctx context.Context, userID string) ([]model.Friend, error) {
	if m.listFriendsFn != nil {
		return m.listFriendsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) ToggleFriend(ctx context.Context, userID, friendID string) (*user.ToggleFriendResult, error) {
	if m.toggleFriendFn != nil {
		return m.toggleFriendFn(ctx, userID, friendID)
	}
	return &user.ToggleFriendResult{}, nil
}

func (m *mockUserService) Search(ctx context.Context, query string) (*user.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return &user.SearchResult{}, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// --- テストヘルパー ---

// withUserID はリクエストのコンテキストに認証済みユーザーIDを設定する。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParams はchiのURLパラメータをリクエストに設定する。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はエラーレスポンスボディをデコードする。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}
