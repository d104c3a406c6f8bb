// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アダプタ、アグリゲータ、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(platform string, statusCode int, duration time.Duration)
	RecordUpstreamError(platform string, kind string)
	RecordContestsFetched(platform string, count int)
	RecordUserLookup(platform string, result string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upcomingContests *prometheus.GaugeVec
	userLookups      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contesthub_upstream_requests_total",
			Help: "外部プラットフォームAPIへのリクエスト数（HTTPステータス別）",
		}, []string{"platform", "status_code"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contesthub_upstream_errors_total",
			Help: "外部プラットフォーム呼び出しの失敗数（エラー分類別）",
		}, []string{"platform", "kind"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contesthub_upstream_latency_seconds",
			Help:    "外部プラットフォームAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		upcomingContests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "contesthub_upcoming_contests",
			Help: "直近の取得で得られた開催予定コンテスト数",
		}, []string{"platform"}),
		userLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contesthub_user_lookups_total",
			Help: "ユーザー統計の取得数（結果別）",
		}, []string{"platform", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contesthub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamErrors,
		c.upstreamLatency,
		c.upcomingContests,
		c.userLookups,
		c.httpStatus,
	)

	return c
}

// RecordUpstreamRequest は外部APIの応答ステータスとレイテンシを記録する。
func (c *Collector) RecordUpstreamRequest(platform string, statusCode int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(platform, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordUpstreamError は外部呼び出しの失敗を記録する。
func (c *Collector) RecordUpstreamError(platform string, kind string) {
	c.upstreamErrors.WithLabelValues(platform, kind).Inc()
}

// RecordContestsFetched は直近の取得で得られたコンテスト数を記録する。
func (c *Collector) RecordContestsFetched(platform string, count int) {
	c.upcomingContests.WithLabelValues(platform).Set(float64(count))
}

// RecordUserLookup はユーザー統計取得の結果を記録する。
func (c *Collector) RecordUserLookup(platform string, result string) {
	c.userLookups.WithLabelValues(platform, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
