// Package user はユーザー・友達関係・検索のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/repository"
)

const (
	// SearchUserLimit は検索で返すユーザーの最大件数。
	SearchUserLimit = 10
	// SearchPostLimit は検索で返す投稿の最大件数。
	SearchPostLimit = 5
	// maxQueryLength は検索語の最大文字数。
	maxQueryLength = 100
)

// PostSearcher は投稿の検索インターフェース。
// repository.PostRepositoryの部分集合として定義する。
type PostSearcher interface {
	SearchByDescription(ctx context.Context, query string, limit int) ([]*model.Post, error)
}

// ToggleFriendResult は友達追加・解除の結果。
type ToggleFriendResult struct {
	Added   bool
	Friends []model.Friend
}

// SearchResult は検索結果。
type SearchResult struct {
	Users []*model.User
	Posts []*model.Post
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	friendRepo  repository.FriendRepository
	posts       PostSearcher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	friendRepo repository.FriendRepository,
	posts PostSearcher,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		friendRepo:  friendRepo,
		posts:       posts,
	}
}

// GetProfile はユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.findUser(ctx, userID)
}

// ListFriends はユーザーの友達一覧を返す。
func (s *Service) ListFriends(ctx context.Context, userID string) ([]model.Friend, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	friends, err := s.friendRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("友達一覧の取得に失敗しました: %w", err)
	}
	return friends, nil
}

// ToggleFriend は友達関係を双方向に追加または解除し、更新後の友達一覧を返す。
func (s *Service) ToggleFriend(ctx context.Context, userID, friendID string) (*ToggleFriendResult, error) {
	if userID == friendID {
		return nil, model.NewValidationError("cannot add yourself as a friend")
	}
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.findUser(ctx, friendID); err != nil {
		return nil, err
	}

	added, err := s.friendRepo.Toggle(ctx, userID, friendID)
	if err != nil {
		return nil, fmt.Errorf("友達関係の更新に失敗しました: %w", err)
	}

	slog.Info("友達関係を更新しました",
		slog.String("user_id", userID),
		slog.String("friend_id", friendID),
		slog.Bool("added", added),
	)

	friends, err := s.friendRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("友達一覧の取得に失敗しました: %w", err)
	}
	return &ToggleFriendResult{Added: added, Friends: friends}, nil
}

// Search は姓名でユーザーを、本文で投稿を検索する。
func (s *Service) Search(ctx context.Context, query string) (*SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, model.NewValidationError("search query is required")
	}
	if utf8.RuneCountInString(q) > maxQueryLength {
		return nil, model.NewValidationError(fmt.Sprintf("search query must be at most %d characters", maxQueryLength))
	}

	users, err := s.userRepo.SearchByName(ctx, q, SearchUserLimit)
	if err != nil {
		return nil, fmt.Errorf("ユーザー検索に失敗しました: %w", err)
	}
	posts, err := s.posts.SearchByDescription(ctx, q, SearchPostLimit)
	if err != nil {
		return nil, fmt.Errorf("投稿検索に失敗しました: %w", err)
	}

	if users == nil {
		users = []*model.User{}
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return &SearchResult{Users: users, Posts: posts}, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: friendships, posts, post_likes, comments）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 2. ユーザーを削除（関連データはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewUserNotFoundError()
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
