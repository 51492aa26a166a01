package handler

import (
	"time"

	"github.com/hitoshi/friendline/internal/model"
)

// userResponse はユーザープロフィールのレスポンス。メールアドレスは本人向けのみ含める。
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Location    string    `json:"location"`
	Occupation  string    `json:"occupation"`
	PicturePath string    `json:"picture_path"`
	CreatedAt   time.Time `json:"created_at"`
}

type friendResponse struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Occupation  string `json:"occupation"`
	Location    string `json:"location"`
	PicturePath string `json:"picture_path"`
}

// postResponse は投稿のレスポンス。作成者の表示情報を含む。
type postResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Location        string    `json:"location"`
	UserPicturePath string    `json:"user_picture_path"`
	Description     string    `json:"description"`
	PicturePath     string    `json:"picture_path"`
	VideoPath       string    `json:"video_path"`
	Tagged          []string  `json:"tagged"`
	Likes           []string  `json:"likes"`
	LikeCount       int       `json:"like_count"`
	CommentCount    int       `json:"comment_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type commentResponse struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type postListResponse struct {
	Posts      []postResponse `json:"posts"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

type postDetailResponse struct {
	Post     postResponse      `json:"post"`
	Comments []commentResponse `json:"comments"`
}

type toggleFriendResponse struct {
	Added   bool             `json:"added"`
	Friends []friendResponse `json:"friends"`
}

type searchResponse struct {
	Users []userResponse `json:"users"`
	Posts []postResponse `json:"posts"`
}

func toUserResponse(u *model.User, withEmail bool) userResponse {
	resp := userResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Location:    u.Location,
		Occupation:  u.Occupation,
		PicturePath: u.PicturePath,
		CreatedAt:   u.CreatedAt,
	}
	if withEmail {
		resp.Email = u.Email
	}
	return resp
}

func toFriendResponses(friends []model.Friend) []friendResponse {
	resp := make([]friendResponse, 0, len(friends))
	for _, f := range friends {
		resp = append(resp, friendResponse{
			ID:          f.ID,
			FirstName:   f.FirstName,
			LastName:    f.LastName,
			Occupation:  f.Occupation,
			Location:    f.Location,
			PicturePath: f.PicturePath,
		})
	}
	return resp
}

func toPostResponse(p *model.Post) postResponse {
	tagged := p.TaggedUserIDs
	if tagged == nil {
		tagged = []string{}
	}
	likes := p.LikedUserIDs
	if likes == nil {
		likes = []string{}
	}
	return postResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		FirstName:       p.AuthorFirstName,
		LastName:        p.AuthorLastName,
		Location:        p.AuthorLocation,
		UserPicturePath: p.AuthorPicturePath,
		Description:     p.Description,
		PicturePath:     p.PicturePath,
		VideoPath:       p.VideoPath,
		Tagged:          tagged,
		Likes:           likes,
		LikeCount:       len(likes),
		CommentCount:    p.CommentCount,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	resp := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, toPostResponse(p))
	}
	return resp
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		FirstName: c.AuthorFirstName,
		LastName:  c.AuthorLastName,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
