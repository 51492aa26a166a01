package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/post"
)

func samplePost() *model.Post {
	return &model.Post{
		ID:              "p-1",
		UserID:          "u-1",
		Description:     "hello",
		TaggedUserIDs:   []string{"u-3"},
		LikedUserIDs:    []string{"u-2", "u-3"},
		CommentCount:    1,
		AuthorFirstName: "Ann",
		AuthorLastName:  "Lee",
		CreatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPostHandler_CreatePost_Created(t *testing.T) {
	var gotAuthor string
	var gotInput post.CreatePostInput
	h := NewPostHandler(&mockPostService{
		createPostFn: func(ctx context.Context, authorID string, in post.CreatePostInput) (*model.Post, error) {
			gotAuthor, gotInput = authorID, in
			return samplePost(), nil
		},
	})

	body := `{"description":"hello","picture_path":"a.png","tagged":["u-3"]}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(body)), "u-1")
	w := httptest.NewRecorder()
	h.CreatePost(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if gotAuthor != "u-1" {
		t.Errorf("authorID = %q, want u-1", gotAuthor)
	}
	if gotInput.Description != "hello" || gotInput.PicturePath != "a.png" || len(gotInput.Tags) != 1 {
		t.Errorf("unexpected input: %+v", gotInput)
	}

	resp := decodeBody[postResponse](t, w)
	if resp.ID != "p-1" || resp.LikeCount != 2 || resp.FirstName != "Ann" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPostHandler_CreatePost_Unauthenticated(t *testing.T) {
	h := NewPostHandler(&mockPostService{
		createPostFn: func(ctx context.Context, authorID string, in post.CreatePostInput) (*model.Post, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	h.CreatePost(w, httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestPostHandler_CreatePost_ValidationError(t *testing.T) {
	h := NewPostHandler(&mockPostService{
		createPostFn: func(ctx context.Context, authorID string, in post.CreatePostInput) (*model.Post, error) {
			return nil, model.NewValidationError("description is required")
		},
	})

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"description":""}`)), "u-1")
	w := httptest.NewRecorder()
	h.CreatePost(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
	}
}

func TestPostHandler_ListFeed_PassesCursorAndLimit(t *testing.T) {
	var gotCursor string
	var gotLimit int
	h := NewPostHandler(&mockPostService{
		listFeedFn: func(ctx context.Context, cursor string, limit int) (*post.PostPage, error) {
			gotCursor, gotLimit = cursor, limit
			return &post.PostPage{Posts: []*model.Post{samplePost()}, NextCursor: "next", HasMore: true}, nil
		},
	})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/posts?cursor=abc&limit=5", nil), "u-1")
	w := httptest.NewRecorder()
	h.ListFeed(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotCursor != "abc" || gotLimit != 5 {
		t.Errorf("cursor=%q limit=%d, want abc/5", gotCursor, gotLimit)
	}
	resp := decodeBody[postListResponse](t, w)
	if len(resp.Posts) != 1 || resp.NextCursor != "next" || !resp.HasMore {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPostHandler_ListFeed_InvalidLimit(t *testing.T) {
	h := NewPostHandler(&mockPostService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/posts?limit=abc", nil), "u-1")
	w := httptest.NewRecorder()
	h.ListFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPostHandler_ListFeed_InvalidCursor(t *testing.T) {
	h := NewPostHandler(&mockPostService{
		listFeedFn: func(ctx context.Context, cursor string, limit int) (*post.PostPage, error) {
			return nil, model.NewInvalidCursorError(cursor)
		},
	})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/posts?cursor=bad", nil), "u-1")
	w := httptest.NewRecorder()
	h.ListFeed(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeInvalidCursor {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCursor)
	}
}

func TestPostHandler_ListFeed_EmptyPostsIsArray(t *testing.T) {
	h := NewPostHandler(&mockPostService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/posts", nil), "u-1")
	w := httptest.NewRecorder()
	h.ListFeed(w, req)

	if !strings.Contains(w.Body.String(), `"posts":[]`) {
		t.Errorf("posts should be an empty array, body = %s", w.Body.String())
	}
}

func TestPostHandler_ListUserPosts(t *testing.T) {
	var gotUser string
	h := NewPostHandler(&mockPostService{
		listByUserFn: func(ctx context.Context, userID, cursor string, limit int) (*post.PostPage, error) {
			gotUser = userID
			return &post.PostPage{}, nil
		},
	})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/u-9/posts", nil), "u-1")
	req = withChiURLParams(req, "id", "u-9")
	w := httptest.NewRecorder()
	h.ListUserPosts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUser != "u-9" {
		t.Errorf("userID = %q, want u-9", gotUser)
	}
}

func TestPostHandler_GetPost(t *testing.T) {
	h := NewPostHandler(&mockPostService{
		getPostFn: func(ctx context.Context, postID string) (*post.PostDetail, error) {
			if postID != "p-1" {
				return nil, model.NewPostNotFoundError(postID)
			}
			return &post.PostDetail{
				Post:     samplePost(),
				Comments: []*model.Comment{{ID: "c-1", PostID: "p-1", Body: "nice"}},
			}, nil
		},
	})

	t.Run("存在する投稿", func(t *testing.T) {
		req := withChiURLParams(withUserID(httptest.NewRequest(http.MethodGet, "/api/posts/p-1", nil), "u-1"), "id", "p-1")
		w := httptest.NewRecorder()
		h.GetPost(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		resp := decodeBody[postDetailResponse](t, w)
		if resp.Post.ID != "p-1" || len(resp.Comments) != 1 || resp.Comments[0].Body != "nice" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("存在しない投稿", func(t *testing.T) {
		req := withChiURLParams(withUserID(httptest.NewRequest(http.MethodGet, "/api/posts/none", nil), "u-1"), "id", "none")
		w := httptest.NewRecorder()
		h.GetPost(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestPostHandler_DeletePost(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "成功", err: nil, wantStatus: http.StatusNoContent},
		{name: "作成者以外", err: model.NewForbiddenError("投稿の削除"), wantStatus: http.StatusForbidden},
		{name: "内部エラー", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPostHandler(&mockPostService{
				deletePostFn: func(ctx context.Context, actorID, postID string) error {
					if actorID != "u-1" || postID != "p-1" {
						t.Errorf("actor=%q post=%q", actorID, postID)
					}
					return tt.err
				},
			})

			req := withChiURLParams(withUserID(httptest.NewRequest(http.MethodDelete, "/api/posts/p-1", nil), "u-1"), "id", "p-1")
			w := httptest.NewRecorder()
			h.DeletePost(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestPostHandler_ToggleLike(t *testing.T) {
	h := NewPostHandler(&mockPostService{
		toggleLikeFn: func(ctx context.Context, actorID, postID string) (*model.Post, error) {
			p := samplePost()
			p.LikedUserIDs = append(p.LikedUserIDs, actorID)
			return p, nil
		},
	})

	req := withChiURLParams(withUserID(httptest.NewRequest(http.MethodPatch, "/api/posts/p-1/like", nil), "u-1"), "id", "p-1")
	w := httptest.NewRecorder()
	h.ToggleLike(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if resp := decodeBody[postResponse](t, w); resp.LikeCount != 3 {
		t.Errorf("like_count = %d, want 3", resp.LikeCount)
	}
}

func TestPostHandler_Comments(t *testing.T) {
	h := NewPostHandler(&mockPostService{
		addCommentFn: func(ctx context.Context, actorID, postID, body string) (*model.Comment, error) {
			return &model.Comment{ID: "c-1", PostID: postID, UserID: actorID, Body: body}, nil
		},
		editCommentFn: func(ctx context.Context, actorID, postID, commentID, body string) (*model.Comment, error) {
			if commentID != "c-1" {
				return nil, model.NewCommentNotFoundError(commentID)
			}
			return &model.Comment{ID: commentID, PostID: postID, UserID: actorID, Body: body}, nil
		},
		deleteCommentFn: func(ctx context.Context, actorID, postID, commentID string) error {
			return model.NewForbiddenError("コメントの削除")
		},
	})

	t.Run("追加", func(t *testing.T) {
		req := withUserID(httptest.NewRequest(http.MethodPost, "/api/posts/p-1/comments", strings.NewReader(`{"body":"hi"}`)), "u-2")
		req = withChiURLParams(req, "id", "p-1")
		w := httptest.NewRecorder()
		h.AddComment(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
		}
		if resp := decodeBody[commentResponse](t, w); resp.Body != "hi" || resp.UserID != "u-2" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("編集_存在しないコメント", func(t *testing.T) {
		req := withUserID(httptest.NewRequest(http.MethodPatch, "/api/posts/p-1/comments/none", strings.NewReader(`{"body":"x"}`)), "u-2")
		req = withChiURLParams(req, "id", "p-1", "commentId", "none")
		w := httptest.NewRecorder()
		h.EditComment(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("削除_権限なし", func(t *testing.T) {
		req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/posts/p-1/comments/c-1", nil), "u-9")
		req = withChiURLParams(req, "id", "p-1", "commentId", "c-1")
		w := httptest.NewRecorder()
		h.DeleteComment(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}
