// Package realtime はWebSocket接続のライフサイクル管理を提供する。
// 認証済みの接続を受け付け、本人確認の通知（register）を受けた時点で
// notify.Directoryに登録し、切断時に登録を解除する。
package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hitoshi/friendline/internal/notify"
)

// State は接続の状態を表す。
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrConnClosed は切断済みの接続にPushしたことを表す。
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull は送信バッファが満杯でPushできなかったことを表す。
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn は1本のWebSocket接続を表す。notify.Handleを満たす。
//
// 書き込みはwritePumpのみが行い、他のゴルーチンは送信バッファ経由でフレームを渡す。
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}

	// stopping はサーバー停止時にwritePumpへ送信バッファの吐き出しを指示する。
	stopping chan struct{}
	stopOnce sync.Once

	// mu は状態遷移とDirectoryへの登録・解除を直列化する。
	mu         sync.Mutex
	state      atomic.Int32
	registered atomic.Bool
	closeOnce  sync.Once
}

func newConn(ws *websocket.Conn, userID string, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 1
	}
	return &Conn{
		id:       uuid.NewString(),
		userID:   userID,
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
	}
}

// ID は接続の一意なIDを返す。
func (c *Conn) ID() string { return c.id }

// UserID は認証済みのユーザーIDを返す。
func (c *Conn) UserID() string { return c.userID }

// State は現在の状態を返す。
func (c *Conn) State() State { return State(c.state.Load()) }

// Push は通知フレームを送信バッファに積む。ブロックしない。
func (c *Conn) Push(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeNotification(msg)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Conn) enqueue(data []byte) error {
	if c.State() == StateClosed {
		return ErrConnClosed
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// register はOpen状態の場合のみDirectoryに登録する。
func (c *Conn) register(dir Registry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() != StateOpen {
		return false
	}
	dir.Register(c.userID, c)
	c.registered.Store(true)
	return true
}

// markClosed はClosedに遷移してDirectoryから登録を解除する。最初の呼び出しのみtrueを返す。
func (c *Conn) markClosed(dir Registry) bool {
	closed := false
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state.Store(int32(StateClosed))
		close(c.done)
		dir.Unregister(c)
		c.mu.Unlock()
		closed = true
	})
	return closed
}

// requestStop はwritePumpに停止を指示する。複数回呼んでもよい。
func (c *Conn) requestStop() {
	c.stopOnce.Do(func() { close(c.stopping) })
}

// compile-time interface check
var _ notify.Handle = (*Conn)(nil)
