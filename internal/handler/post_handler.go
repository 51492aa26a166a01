package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, authorID string, in post.CreatePostInput) (*model.Post, error)
	ListFeed(ctx context.Context, cursor string, limit int) (*post.PostPage, error)
	ListByUser(ctx context.Context, userID, cursor string, limit int) (*post.PostPage, error)
	GetPost(ctx context.Context, postID string) (*post.PostDetail, error)
	DeletePost(ctx context.Context, actorID, postID string) error
	ToggleLike(ctx context.Context, actorID, postID string) (*model.Post, error)
	AddComment(ctx context.Context, actorID, postID, body string) (*model.Comment, error)
	EditComment(ctx context.Context, actorID, postID, commentID, body string) (*model.Comment, error)
	DeleteComment(ctx context.Context, actorID, postID, commentID string) error
}

// PostHandler は投稿・いいね・コメントのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

type createPostRequest struct {
	Description string   `json:"description"`
	PicturePath string   `json:"picture_path"`
	VideoPath   string   `json:"video_path"`
	Tagged      []string `json:"tagged"`
}

type commentRequest struct {
	Body string `json:"body"`
}

// CreatePost は投稿を作成する。友達とタグ付けされたユーザーに通知が配信される。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreatePost(r.Context(), userID, post.CreatePostInput{
		Description: req.Description,
		PicturePath: req.PicturePath,
		VideoPath:   req.VideoPath,
		Tags:        req.Tagged,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// ListFeed は全ユーザーの投稿一覧を返す。
// GET /api/posts?cursor=xxx&limit=20
func (h *PostHandler) ListFeed(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.ListFeed(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostListResponse(page))
}

// ListUserPosts は指定ユーザーの投稿一覧を返す。
// GET /api/users/{id}/posts?cursor=xxx&limit=20
func (h *PostHandler) ListUserPosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.ListByUser(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostListResponse(page))
}

// GetPost は投稿をコメント付きで返す。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	detail, err := h.service.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	comments := make([]commentResponse, 0, len(detail.Comments))
	for _, c := range detail.Comments {
		comments = append(comments, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, postDetailResponse{
		Post:     toPostResponse(detail.Post),
		Comments: comments,
	})
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePost(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike はいいねを付け外しする。
// PATCH /api/posts/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.ToggleLike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// AddComment はコメントを追加する。
// POST /api/posts/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.AddComment(r.Context(), userID, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

// EditComment はコメント本文を更新する。
// PATCH /api/posts/{id}/comments/{commentId}
func (h *PostHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.EditComment(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "commentId"), req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(c))
}

// DeleteComment はコメントを削除する。
// DELETE /api/posts/{id}/comments/{commentId}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteComment(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "commentId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toPostListResponse(page *post.PostPage) postListResponse {
	return postListResponse{
		Posts:      toPostResponses(page.Posts),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
}
