package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome は1件の配信結果の種別。
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped" // 受信者がオフライン
	OutcomeFailed    Outcome = "failed"
)

// ErrPushPanicked はHandle.Pushがpanicした場合に記録されるエラー。
var ErrPushPanicked = errors.New("push panicked")

// Lookuper は受信者の現在の接続を引くインターフェース。
// *Directoryが実装する。
type Lookuper interface {
	Lookup(userID string) (Handle, bool)
}

// Recorder は配信結果を記録するインターフェース。
// メトリクス収集に使用し、nilの場合は記録しない。
type Recorder interface {
	RecordNotification(kind Kind, outcome Outcome)
	ObserveDispatch(d time.Duration)
}

// Result は1回の配信処理の集計。観測用で、呼び出し元の処理結果には影響しない。
type Result struct {
	Delivered int
	Skipped   int
	Failed    int
}

// DispatcherConfig はDispatcherの設定。
type DispatcherConfig struct {
	// PushTimeout は1受信者あたりのPush待ち時間の上限。0以下の場合は5秒。
	PushTimeout time.Duration
	Recorder    Recorder
}

// Dispatcher は配信一覧を接続中の受信者へ非同期に届ける。
//
// 受信者ごとに独立して処理し、オフラインの受信者は黙ってスキップする。
// Pushの失敗やpanicはログとメトリクスに記録したうえで破棄し、他の受信者の処理や
// 呼び出し元には伝播しない。再送は行わない。
type Dispatcher struct {
	dir         Lookuper
	logger      *slog.Logger
	recorder    Recorder
	pushTimeout time.Duration

	// ctx はDispatcher自身の寿命。リクエストのコンテキストとは独立している。
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(dir Lookuper, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		dir:         dir,
		logger:      logger,
		recorder:    cfg.Recorder,
		pushTimeout: cfg.PushTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Dispatch は配信をバックグラウンドで開始し、完了を待たずに返る。
// Shutdown後に呼ばれた場合は配信せずに破棄する。
func (d *Dispatcher) Dispatch(deliveries []Delivery) {
	if len(deliveries) == 0 {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("停止処理中のため通知を破棄しました",
			slog.Int("delivery_count", len(deliveries)),
		)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.Deliver(d.ctx, deliveries)
	}()
}

// Deliver は配信一覧を処理し、完了まで待って集計を返す。
//
// 先に全受信者をLookupしてから、接続中の受信者ごとにgoroutineを起動してPushする。
// 応答しない受信者はPushTimeoutが経過した時点で失敗として扱われ、
// 他の受信者のLookupやPushを待たせることはない。
func (d *Dispatcher) Deliver(ctx context.Context, deliveries []Delivery) Result {
	start := time.Now()

	type target struct {
		dl Delivery
		h  Handle
	}

	var delivered, skipped, failed atomic.Int64
	targets := make([]target, 0, len(deliveries))
	for _, dl := range deliveries {
		h, ok := d.dir.Lookup(dl.RecipientID)
		if !ok {
			skipped.Add(1)
			d.record(dl.Message.Kind, OutcomeSkipped)
			continue
		}
		targets = append(targets, target{dl: dl, h: h})
	}

	var wg sync.WaitGroup
	for _, tg := range targets {
		wg.Add(1)
		go func(dl Delivery, h Handle) {
			defer wg.Done()

			if err := d.push(ctx, h, dl.Message); err != nil {
				failed.Add(1)
				d.record(dl.Message.Kind, OutcomeFailed)
				d.logFailure(dl, h, err)
				return
			}
			delivered.Add(1)
			d.record(dl.Message.Kind, OutcomeDelivered)
		}(tg.dl, tg.h)
	}

	wg.Wait()

	res := Result{
		Delivered: int(delivered.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	duration := time.Since(start)
	if d.recorder != nil {
		d.recorder.ObserveDispatch(duration)
	}

	d.logger.Debug("通知の配信が完了しました",
		slog.Int("delivered", res.Delivered),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return res
}

// push はタイムアウト付きでHandle.Pushを呼び出す。
// Pushがコンテキストを無視してブロックしても、タイムアウト後に呼び出し元へ戻る。
func (d *Dispatcher) push(ctx context.Context, h Handle, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("%w: %v", ErrPushPanicked, r)
			}
		}()
		errCh <- h.Push(ctx, msg)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("push did not complete: %w", ctx.Err())
	}
}

// Shutdown は新規の配信受付を停止し、実行中の配信の完了を待つ。
// ctxの期限までに完了しない場合は実行中のPushを中断してctxのエラーを返す。
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) record(kind Kind, outcome Outcome) {
	if d.recorder != nil {
		d.recorder.RecordNotification(kind, outcome)
	}
}

func (d *Dispatcher) logFailure(dl Delivery, h Handle, err error) {
	d.logger.Warn("通知のPushに失敗しました",
		slog.String("recipient_id", dl.RecipientID),
		slog.String("kind", string(dl.Message.Kind)),
		slog.String("post_id", dl.Message.PostID),
		slog.String("connection_id", h.ID()),
		slog.String("error", err.Error()),
	)
}
