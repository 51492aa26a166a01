package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/friendline/internal/middleware"
	"github.com/hitoshi/friendline/internal/notify"
)

// Registry は接続の登録先。notify.Directoryが満たす。
type Registry interface {
	Register(userID string, h notify.Handle)
	Unregister(h notify.Handle)
}

// ConnMetrics は接続数のメトリクス記録先。
type ConnMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed() {}

// Config はManagerの設定。
type Config struct {
	// SendBuffer は接続ごとの送信バッファのフレーム数。
	SendBuffer int
	// WriteTimeout は1フレームの書き込み期限。
	WriteTimeout time.Duration
	// PongTimeout はPongを待つ期限。Pingはこの9/10の間隔で送る。
	PongTimeout time.Duration
	// MaxMessageSize はクライアントから受け取るフレームの最大バイト数。
	MaxMessageSize int64
	// CheckOrigin はハンドシェイク時のOrigin検証。nilの場合は同一ホストのみ許可する。
	CheckOrigin func(r *http.Request) bool
	// Metrics は接続数の記録先。nilの場合は記録しない。
	Metrics ConnMetrics
}

// Manager はWebSocket接続を受け付け、各接続の読み書きと後始末を管理する。
type Manager struct {
	dir      Registry
	logger   *slog.Logger
	cfg      Config
	metrics  ConnMetrics
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

// NewManager はManagerの新しいインスタンスを生成する。
func NewManager(dir Registry, logger *slog.Logger, cfg Config) *Manager {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}
	var metrics ConnMetrics = nopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	return &Manager{
		dir:     dir,
		logger:  logger,
		cfg:     cfg,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		conns: make(map[string]*Conn),
	}
}

// ServeHTTP はWebSocketのハンドシェイクを行い、読み書きのゴルーチンを起動する。
// セッションミドルウェアの後段に置き、コンテキストの認証済みユーザーIDを使う。
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade失敗時のレスポンスはupgraderが書き込み済み
		m.logger.Warn("WebSocketのハンドシェイクに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	conn := newConn(ws, userID, m.cfg.SendBuffer)
	m.mu.Lock()
	m.conns[conn.id] = conn
	m.mu.Unlock()

	conn.open()
	m.metrics.ConnectionOpened()
	m.logger.Info("WebSocket接続を開始しました",
		slog.String("connection_id", conn.id),
		slog.String("user_id", userID),
	)

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.writePump(conn)
	}()
	go func() {
		defer m.wg.Done()
		m.readPump(conn)
	}()
}

// Len は管理中の接続数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Shutdown は各接続の送信バッファを書き出してからGoing Awayを送って切断し、
// 読み書きのゴルーチンの終了を待つ。ctxの期限を過ぎた接続は送信待ちを破棄して閉じる。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.requestStop()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// 期限内に吐き出せなかった接続は送信待ちを捨てて閉じる
		for _, c := range conns {
			m.close(c, websocket.CloseGoingAway, "server shutting down")
		}
		return ctx.Err()
	}
}

func (m *Manager) readPump(c *Conn) {
	defer m.close(c, websocket.CloseNormalClosure, "")

	c.ws.SetReadLimit(m.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Warn("WebSocketの読み込みに失敗しました",
					slog.String("connection_id", c.id),
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
		m.handleFrame(c, data)
	}
}

func (m *Manager) writePump(c *Conn) {
	ticker := time.NewTicker(m.cfg.PongTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.stopping:
			m.flush(c)
			m.close(c, websocket.CloseGoingAway, "server shutting down")
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				m.logger.Warn("WebSocketの書き込みに失敗しました",
					slog.String("connection_id", c.id),
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
				m.close(c, websocket.CloseInternalServerErr, "")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.close(c, websocket.CloseInternalServerErr, "")
				return
			}
		}
	}
}

// flush は送信バッファに残っているフレームを書き出す。書き込みに失敗した時点で諦める。
func (m *Manager) flush(c *Conn) {
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (m *Manager) handleFrame(c *Conn, data []byte) {
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		m.reply(c, encodeError("invalid frame"))
		return
	}

	switch f.Type {
	case frameRegister:
		if f.UserID != "" && f.UserID != c.userID {
			m.logger.Warn("認証済みユーザーと異なるIDでの登録を拒否しました",
				slog.String("connection_id", c.id),
				slog.String("user_id", c.userID),
				slog.String("announced_user_id", f.UserID),
			)
			m.reply(c, encodeError("user id does not match the authenticated session"))
			return
		}
		if !c.register(m.dir) {
			return
		}
		m.logger.Info("通知の受信登録を行いました",
			slog.String("connection_id", c.id),
			slog.String("user_id", c.userID),
		)
		m.reply(c, encodeRegistered(c.userID))
	case framePing:
		m.reply(c, encodePong())
	default:
		m.reply(c, encodeError("unknown frame type"))
	}
}

func (m *Manager) reply(c *Conn, data []byte) {
	if err := c.enqueue(data); err != nil && !errors.Is(err, ErrConnClosed) {
		m.logger.Debug("応答フレームを破棄しました",
			slog.String("connection_id", c.id),
			slog.String("error", err.Error()),
		)
	}
}

// close は接続をClosedにしてDirectoryから外し、クローズフレームを送ってソケットを閉じる。
// 複数のゴルーチンから呼ばれても後始末は1回だけ行う。
func (m *Manager) close(c *Conn, code int, text string) {
	if !c.markClosed(m.dir) {
		return
	}

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(m.cfg.WriteTimeout),
	)
	_ = c.ws.Close()

	m.mu.Lock()
	delete(m.conns, c.id)
	m.mu.Unlock()

	m.metrics.ConnectionClosed()
	m.logger.Info("WebSocket接続を終了しました",
		slog.String("connection_id", c.id),
		slog.String("user_id", c.userID),
		slog.Bool("registered", c.registered.Load()),
	)
}
