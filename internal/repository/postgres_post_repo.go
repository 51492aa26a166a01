package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/friendline/internal/model"
)

// postSelect は作成者情報・いいね・コメント数を結合した投稿取得クエリのSELECT句。
const postSelect = `SELECT p.id, p.user_id, p.description, p.picture_path, p.video_path,
	p.tagged_user_ids, p.created_at, p.updated_at,
	u.first_name, u.last_name, u.picture_path, u.location,
	ARRAY(SELECT l.user_id::text FROM post_likes l WHERE l.post_id = p.id ORDER BY l.created_at, l.user_id),
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id)
	FROM posts p
	INNER JOIN users u ON u.id = p.user_id`

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

func scanPost(row interface{ Scan(dest ...any) error }) (*model.Post, error) {
	p := &model.Post{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Description, &p.PicturePath, &p.VideoPath,
		pq.Array(&p.TaggedUserIDs), &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorFirstName, &p.AuthorLastName, &p.AuthorPicturePath, &p.AuthorLocation,
		pq.Array(&p.LikedUserIDs), &p.CommentCount,
	)
	return p, err
}

func collectPosts(rows *sql.Rows) ([]*model.Post, error) {
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	tagged := post.TaggedUserIDs
	if tagged == nil {
		tagged = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, description, picture_path, video_path, tagged_user_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.UserID, post.Description, post.PicturePath, post.VideoPath,
		pq.Array(tagged), post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// FindByID は投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return post, nil
}

// List は投稿を(created_at, id)の降順で取得する。
// 条件は動的に組み立て、プレースホルダ番号は引数の数から採番する。
func (r *PostgresPostRepo) List(ctx context.Context, authorID string, cursor PostCursor, limit int) ([]*model.Post, error) {
	var conds []string
	var args []any

	if authorID != "" {
		args = append(args, authorID)
		conds = append(conds, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if !cursor.IsZero() {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conds = append(conds, fmt.Sprintf("(p.created_at, p.id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := postSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return collectPosts(rows)
}

// Delete は指定IDの投稿を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return nil
}

// ToggleLike はいいねを付け外しする。
// 既存のいいねを削除できなければ新規に付ける。
func (r *PostgresPostRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if removed > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert like: %w", err)
	}
	return true, nil
}

// SearchByDescription は本文の部分一致で投稿を新しい順に返す。
func (r *PostgresPostRepo) SearchByDescription(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		postSelect+` WHERE p.description ILIKE $1 ORDER BY p.created_at DESC, p.id DESC LIMIT $2`,
		likePattern(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return collectPosts(rows)
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
