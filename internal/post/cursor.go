package post

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/friendline/internal/model"
	"github.com/hitoshi/friendline/internal/repository"
)

// cursorSep はカーソル内の日時とIDの区切り文字。RFC3339には現れない。
const cursorSep = "_"

// EncodeCursor は投稿のcreated_atとIDからページングカーソルを生成する。
func EncodeCursor(createdAt time.Time, id string) string {
	return createdAt.UTC().Format(time.RFC3339Nano) + cursorSep + id
}

// DecodeCursor はカーソル文字列を解析する。空文字列はゼロ値（先頭から）を返す。
func DecodeCursor(s string) (repository.PostCursor, error) {
	if s == "" {
		return repository.PostCursor{}, nil
	}
	ts, id, ok := strings.Cut(s, cursorSep)
	if !ok {
		return repository.PostCursor{}, model.NewInvalidCursorError(s)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return repository.PostCursor{}, model.NewInvalidCursorError(s)
	}
	if _, err := uuid.Parse(id); err != nil {
		return repository.PostCursor{}, model.NewInvalidCursorError(s)
	}
	return repository.PostCursor{CreatedAt: createdAt, ID: id}, nil
}
