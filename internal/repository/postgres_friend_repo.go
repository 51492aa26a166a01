package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/friendline/internal/model"
)

// PostgresFriendRepo はPostgreSQLを使用した友達関係リポジトリ。
// friendshipsテーブルには(user_id, friend_id)と(friend_id, user_id)の2行を常にペアで保持する。
type PostgresFriendRepo struct {
	db *sql.DB
}

// NewPostgresFriendRepo はPostgresFriendRepoを生成する。
func NewPostgresFriendRepo(db *sql.DB) *PostgresFriendRepo {
	return &PostgresFriendRepo{db: db}
}

// ListFriendIDs は友達のユーザーIDを返す。
func (r *PostgresFriendRepo) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT friend_id FROM friendships WHERE user_id = $1 ORDER BY created_at, friend_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friend ids: %w", err)
	}
	return ids, nil
}

// ListFriends は友達一覧を表示用の情報付きで返す。
func (r *PostgresFriendRepo) ListFriends(ctx context.Context, userID string) ([]model.Friend, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.first_name, u.last_name, u.occupation, u.location, u.picture_path
		 FROM friendships f
		 INNER JOIN users u ON u.id = f.friend_id
		 WHERE f.user_id = $1
		 ORDER BY f.created_at, u.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	friends := []model.Friend{}
	for rows.Next() {
		var f model.Friend
		if err := rows.Scan(&f.ID, &f.FirstName, &f.LastName, &f.Occupation, &f.Location, &f.PicturePath); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}
	return friends, nil
}

// Toggle は友達関係を双方向に追加または削除する。
// 2行の更新は同一トランザクション内で行い、片側だけが残る状態を作らない。
func (r *PostgresFriendRepo) Toggle(ctx context.Context, userID, friendID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM friendships
		 WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		userID, friendID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete friendship: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	added := removed == 0
	if added {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO friendships (user_id, friend_id, created_at)
			 VALUES ($1, $2, now()), ($2, $1, now())
			 ON CONFLICT DO NOTHING`,
			userID, friendID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert friendship: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// compile-time interface check
var _ FriendRepository = (*PostgresFriendRepo)(nil)
