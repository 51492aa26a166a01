// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/friendline/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、friendships、posts、post_likes、commentsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// SearchByName は姓名の部分一致でユーザーを検索する。
	SearchByName(ctx context.Context, query string, limit int) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// FriendRepository は友達関係の永続化インターフェース。
// 友達関係は常に双方向で保持する。
type FriendRepository interface {
	// ListFriendIDs は現在保存されている友達のユーザーIDを返す。
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)

	// ListFriends は友達一覧を表示用の情報付きで返す。
	ListFriends(ctx context.Context, userID string) ([]model.Friend, error)

	// Toggle は友達関係を双方向に追加または削除する。追加した場合はtrueを返す。
	Toggle(ctx context.Context, userID, friendID string) (bool, error)
}

// PostCursor は投稿一覧のキーセットページネーション位置を表す。
// ゼロ値の場合は先頭から取得する。
type PostCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero はカーソル未指定かどうかを返す。
func (c PostCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。IDと作成日時は呼び出し側で設定する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は投稿を作成者情報・いいね・コメント数付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// List は投稿をcreated_at降順で取得する。authorIDが空の場合は全ユーザーの投稿を対象とする。
	List(ctx context.Context, authorID string, cursor PostCursor, limit int) ([]*model.Post, error)

	// Delete は指定IDの投稿を削除する。いいねとコメントはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ToggleLike はいいねを付け外しする。付けた場合はtrueを返す。
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)

	// SearchByDescription は本文の部分一致で投稿を検索する。
	SearchByDescription(ctx context.Context, query string, limit int) ([]*model.Post, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// ListByPost は投稿のコメントを作成日時の昇順で返す。
	ListByPost(ctx context.Context, postID string) ([]*model.Comment, error)

	// UpdateBody はコメント本文を更新する。
	UpdateBody(ctx context.Context, id, body string, updatedAt time.Time) error

	// Delete は指定IDのコメントを削除する。
	Delete(ctx context.Context, id string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
