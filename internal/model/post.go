package model

import "time"

// Post はユーザーの投稿を表す。
// TaggedUserIDsは投稿時に指定されたタグ付けユーザーで、存在確認は行わない。
type Post struct {
	ID            string
	UserID        string
	Description   string
	PicturePath   string
	VideoPath     string
	TaggedUserIDs []string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// 一覧・詳細表示用に結合して取得する項目
	AuthorFirstName   string
	AuthorLastName    string
	AuthorPicturePath string
	AuthorLocation    string
	LikedUserIDs      []string
	CommentCount      int
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time

	AuthorFirstName string
	AuthorLastName  string
}
