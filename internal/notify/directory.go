package notify

import (
	"context"
	"sync"
	"time"
)

// Handle は接続中クライアントへの送信口を表す。
// IDは接続ごとに一意で、登録解除時の照合に使う。
type Handle interface {
	ID() string
	Push(ctx context.Context, msg Message) error
}

// Binding はユーザーと接続の対応を表す。
type Binding struct {
	UserID        string
	Handle        Handle
	EstablishedAt time.Time
}

// Directory はユーザーIDから現在の接続を引くための並行安全なレジストリ。
// 1ユーザーにつき接続は最大1つで、後から登録した接続が優先される。
type Directory struct {
	mu       sync.RWMutex
	byUser   map[string]Binding
	byHandle map[string]string // handle ID -> user ID
	now      func() time.Time
	onChange func(online int)
}

// DirectoryOption はDirectoryの生成オプション。
type DirectoryOption func(*Directory)

// WithClock は登録時刻の取得に使う関数を差し替える。
func WithClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) { d.now = now }
}

// WithOnChange は登録数が変化したときに呼ばれる関数を設定する。
// ロック保持中に呼ばれるため、Directoryのメソッドを呼び出してはならない。
func WithOnChange(fn func(online int)) DirectoryOption {
	return func(d *Directory) { d.onChange = fn }
}

// NewDirectory は空のDirectoryを生成する。
func NewDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		byUser:   make(map[string]Binding),
		byHandle: make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register はuserIDにhandleを紐付ける。
// 既存の紐付けは通知なしで置き換える。userIDが空、またはhandleがnilの場合は何もしない。
func (d *Directory) Register(userID string, h Handle) {
	if userID == "" || h == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.byUser[userID]; ok {
		delete(d.byHandle, prev.Handle.ID())
	}
	// 同じ接続が別ユーザーとして登録済みなら、その紐付けを外す
	if prevUser, ok := d.byHandle[h.ID()]; ok && prevUser != userID {
		delete(d.byUser, prevUser)
	}

	d.byUser[userID] = Binding{UserID: userID, Handle: h, EstablishedAt: d.now()}
	d.byHandle[h.ID()] = userID
	d.notifyChange()
}

// Unregister はhandleに一致する紐付けを削除する。
// 既に新しい接続で置き換えられている場合は何もしない。
func (d *Directory) Unregister(h Handle) {
	if h == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	userID, ok := d.byHandle[h.ID()]
	if !ok {
		return
	}
	delete(d.byHandle, h.ID())
	if b, ok := d.byUser[userID]; ok && b.Handle.ID() == h.ID() {
		delete(d.byUser, userID)
	}
	d.notifyChange()
}

// Lookup はuserIDに紐付いた現在の接続を返す。
func (d *Directory) Lookup(userID string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.byUser[userID]
	if !ok {
		return nil, false
	}
	return b.Handle, true
}

// Binding はuserIDの紐付け情報を返す。
func (d *Directory) Binding(userID string) (Binding, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.byUser[userID]
	return b, ok
}

// Len は接続中のユーザー数を返す。
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}

func (d *Directory) notifyChange() {
	if d.onChange != nil {
		d.onChange(len(d.byUser))
	}
}
