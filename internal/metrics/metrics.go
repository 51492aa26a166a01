// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/friendline/internal/notify"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 通知ディスパッチャー、WebSocket接続管理、投稿サービスから利用する。
type MetricsCollector interface {
	notify.Recorder
	ConnectionOpened()
	ConnectionClosed()
	SetOnlineUsers(n int)
	RecordPostCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	notifications   *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
	wsConnections   prometheus.Gauge
	onlineUsers     prometheus.Gauge
	postsCreated    prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "friendline_notifications_total",
			Help: "通知の配信結果別の合計数",
		}, []string{"kind", "outcome"}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "friendline_notification_dispatch_seconds",
			Help:    "1投稿分の通知配信にかかった時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "friendline_ws_connections",
			Help: "現在開いているWebSocket接続数",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "friendline_online_users",
			Help: "セッションディレクトリに登録中のユーザー数",
		}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "friendline_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
	}

	reg.MustRegister(
		c.notifications,
		c.dispatchLatency,
		c.wsConnections,
		c.onlineUsers,
		c.postsCreated,
	)

	return c
}

// RecordNotification は通知1件の配信結果を記録する。
func (c *Collector) RecordNotification(kind notify.Kind, outcome notify.Outcome) {
	c.notifications.WithLabelValues(string(kind), string(outcome)).Inc()
}

// ObserveDispatch は1回の配信処理にかかった時間を記録する。
func (c *Collector) ObserveDispatch(d time.Duration) {
	c.dispatchLatency.Observe(d.Seconds())
}

// ConnectionOpened はWebSocket接続の確立を記録する。
func (c *Collector) ConnectionOpened() {
	c.wsConnections.Inc()
}

// ConnectionClosed はWebSocket接続の切断を記録する。
func (c *Collector) ConnectionClosed() {
	c.wsConnections.Dec()
}

// SetOnlineUsers はオンラインユーザー数を更新する。
func (c *Collector) SetOnlineUsers(n int) {
	c.onlineUsers.Set(float64(n))
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
