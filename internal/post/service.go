// Package post は投稿・いいね・コメントのドメインロジックを提供する。
// 投稿作成時には友達とタグ付けされたユーザーへのリアルタイム通知を起動する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/notify"
	"github.com/hitoshi/friendline/internal/repository"
	"github.com/hitoshi/friendline/internal/security"
)

const (
	// MaxTextLength は投稿本文・コメントの最大文字数（rune数）。
	MaxTextLength = 500
	// MaxTags は1投稿でタグ付けできるユーザー数の上限（重複除去後）。
	MaxTags = 50
	// DefaultPageSize は一覧取得の既定件数。
	DefaultPageSize = 20
	// MaxPageSize は一覧取得の最大件数。
	MaxPageSize = 100
)

// Dispatcher は通知配信の起動口。notify.Dispatcherが満たす。
type Dispatcher interface {
	Dispatch(deliveries []notify.Delivery)
}

// Recorder は投稿作成数のメトリクス記録先。
type Recorder interface {
	RecordPostCreated()
}

// CreatePostInput は投稿作成の入力。
type CreatePostInput struct {
	Description string
	PicturePath string
	VideoPath   string
	Tags        []string
}

// PostPage は投稿一覧の1ページ分の結果。
type PostPage struct {
	Posts      []*model.Post
	NextCursor string
	HasMore    bool
}

// PostDetail は投稿とそのコメント一覧。
type PostDetail struct {
	Post     *model.Post
	Comments []*model.Comment
}

// Service は投稿のサービス層。
type Service struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	friendRepo  repository.FriendRepository
	sanitizer   security.ContentSanitizerService
	dispatcher  Dispatcher
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	friendRepo repository.FriendRepository,
	sanitizer security.ContentSanitizerService,
	dispatcher Dispatcher,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		friendRepo:  friendRepo,
		sanitizer:   sanitizer,
		dispatcher:  dispatcher,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// CreatePost は投稿を作成し、友達とタグ付けされたユーザーへの通知を非同期に起動する。
//
// 通知はレスポンスを待たせない。友達一覧の取得に失敗した場合も投稿自体は成功として返す。
func (s *Service) CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error) {
	description, err := s.cleanText(in.Description, "description")
	if err != nil {
		return nil, err
	}

	tags := normalizeTags(in.Tags)
	if len(tags) > MaxTags {
		return nil, model.NewValidationError(fmt.Sprintf("tagged must contain at most %d users", MaxTags))
	}

	author, err := s.findUser(ctx, authorID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Post{
		ID:                uuid.NewString(),
		UserID:            author.ID,
		Description:       description,
		PicturePath:       strings.TrimSpace(in.PicturePath),
		VideoPath:         strings.TrimSpace(in.VideoPath),
		TaggedUserIDs:     tags,
		CreatedAt:         now,
		UpdatedAt:         now,
		AuthorFirstName:   author.FirstName,
		AuthorLastName:    author.LastName,
		AuthorPicturePath: author.PicturePath,
		AuthorLocation:    author.Location,
		LikedUserIDs:      []string{},
	}
	if err := s.postRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordPostCreated()
	}

	s.notifyPostCreated(ctx, author, p)
	return p, nil
}

// notifyPostCreated は配信一覧を組み立ててDispatcherに渡す。
func (s *Service) notifyPostCreated(ctx context.Context, author *model.User, p *model.Post) {
	friendIDs, err := s.friendRepo.ListFriendIDs(ctx, author.ID)
	if err != nil {
		s.logger.Error("友達一覧の取得に失敗したため通知を省略しました",
			slog.String("post_id", p.ID),
			slog.String("user_id", author.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	deliveries := notify.BuildDeliveries(notify.PostCreated{
		AuthorID:   author.ID,
		AuthorName: author.FullName(),
		PostID:     p.ID,
		FriendIDs:  friendIDs,
		TaggedIDs:  p.TaggedUserIDs,
	})
	s.dispatcher.Dispatch(deliveries)
}

// ListFeed は全ユーザーの投稿を新しい順に返す。
func (s *Service) ListFeed(ctx context.Context, cursor string, limit int) (*PostPage, error) {
	return s.list(ctx, "", cursor, limit)
}

// ListByUser は指定ユーザーの投稿を新しい順に返す。
func (s *Service) ListByUser(ctx context.Context, userID, cursor string, limit int) (*PostPage, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.list(ctx, userID, cursor, limit)
}

// list はlimit+1件を取得してHasMoreを判定する。
func (s *Service) list(ctx context.Context, authorID, cursorStr string, limit int) (*PostPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	cursor, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.List(ctx, authorID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	page := &PostPage{Posts: posts, HasMore: hasMore}
	if hasMore && len(posts) > 0 {
		last := posts[len(posts)-1]
		page.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// GetPost は投稿をコメント付きで返す。
func (s *Service) GetPost(ctx context.Context, postID string) (*PostDetail, error) {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return &PostDetail{Post: p, Comments: comments}, nil
}

// DeletePost は投稿を削除する。作成者のみ削除できる。
func (s *Service) DeletePost(ctx context.Context, actorID, postID string) error {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.UserID != actorID {
		return model.NewForbiddenError("投稿の削除")
	}
	if err := s.postRepo.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return nil
}

// ToggleLike はいいねを付け外しし、更新後の投稿を返す。
func (s *Service) ToggleLike(ctx context.Context, actorID, postID string) (*model.Post, error) {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if _, err := s.postRepo.ToggleLike(ctx, p.ID, actorID); err != nil {
		return nil, fmt.Errorf("いいねの更新に失敗しました: %w", err)
	}
	return s.findPost(ctx, p.ID)
}

// AddComment は投稿にコメントを追加する。
func (s *Service) AddComment(ctx context.Context, actorID, postID, body string) (*model.Comment, error) {
	text, err := s.cleanText(body, "comment")
	if err != nil {
		return nil, err
	}
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &model.Comment{
		ID:        uuid.NewString(),
		PostID:    p.ID,
		UserID:    actorID,
		Body:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.commentRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コメントの保存に失敗しました: %w", err)
	}
	return s.findComment(ctx, p.ID, c.ID)
}

// EditComment はコメント本文を更新する。コメントの作成者のみ編集できる。
func (s *Service) EditComment(ctx context.Context, actorID, postID, commentID, body string) (*model.Comment, error) {
	text, err := s.cleanText(body, "comment")
	if err != nil {
		return nil, err
	}
	c, err := s.findComment(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != actorID {
		return nil, model.NewForbiddenError("コメントの編集")
	}
	if err := s.commentRepo.UpdateBody(ctx, c.ID, text, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}
	return s.findComment(ctx, postID, c.ID)
}

// DeleteComment はコメントを削除する。コメントの作成者と投稿の作成者が削除できる。
func (s *Service) DeleteComment(ctx context.Context, actorID, postID, commentID string) error {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	c, err := s.findComment(ctx, p.ID, commentID)
	if err != nil {
		return err
	}
	if c.UserID != actorID && p.UserID != actorID {
		return model.NewForbiddenError("コメントの削除")
	}
	if err := s.commentRepo.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) cleanText(raw, field string) (string, error) {
	text := s.sanitizer.Sanitize(raw)
	if text == "" {
		return "", model.NewValidationError(field + " is required")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", model.NewValidationError(fmt.Sprintf("%s must be at most %d characters", field, MaxTextLength))
	}
	return text, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	if !validID(userID) {
		return nil, model.NewUserNotFoundError()
	}
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

func (s *Service) findPost(ctx context.Context, postID string) (*model.Post, error) {
	if !validID(postID) {
		return nil, model.NewPostNotFoundError(postID)
	}
	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return p, nil
}

// findComment は投稿に属するコメントを返す。別の投稿のコメントは未検出として扱う。
func (s *Service) findComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	if !validID(commentID) {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	c, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if c == nil || c.PostID != postID {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	return c, nil
}

// normalizeTags は前後の空白を除き、空要素と重複を取り除く。存在確認は行わない。
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// validID はUUID形式のIDかどうかを返す。
// 形式不正のIDはDBに問い合わせず未検出として扱う。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
