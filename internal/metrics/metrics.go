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
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordVote(kind string, added bool)
	RecordSearch(withKeyword bool, totalItems int)
	RecordUpload(success bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsExpired(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	votes           *prometheus.CounterVec
	duplicateVotes  *prometheus.CounterVec
	searches        *prometheus.CounterVec
	searchResults   prometheus.Histogram
	uploads         *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qaboard_votes_total",
			Help: "新たに記録された投票の合計数",
		}, []string{"kind"}),
		duplicateVotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qaboard_duplicate_votes_total",
			Help: "投票済みのため無視された投票の合計数",
		}, []string{"kind"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qaboard_searches_total",
			Help: "質問一覧・検索の実行回数",
		}, []string{"keyword"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qaboard_search_result_items",
			Help:    "検索条件に一致した質問数",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000},
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qaboard_attachment_uploads_total",
			Help: "添付ファイルアップロードの結果別件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qaboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qaboard_http_request_duration_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qaboard_sessions_expired_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.votes,
		c.duplicateVotes,
		c.searches,
		c.searchResults,
		c.uploads,
		c.httpStatus,
		c.requestLatency,
		c.sessionsExpired,
	)

	return c
}

// RecordVote は投票を記録する。addedがfalseの場合は投票済みによる無視として数える。
func (c *Collector) RecordVote(kind string, added bool) {
	if added {
		c.votes.WithLabelValues(kind).Inc()
		return
	}
	c.duplicateVotes.WithLabelValues(kind).Inc()
}

// RecordSearch は一覧・検索の実行を記録する。
func (c *Collector) RecordSearch(withKeyword bool, totalItems int) {
	c.searches.WithLabelValues(strconv.FormatBool(withKeyword)).Inc()
	c.searchResults.Observe(float64(totalItems))
}

// RecordUpload は添付ファイルアップロードの結果を記録する。
func (c *Collector) RecordUpload(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.uploads.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsExpired は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsExpired(count int64) {
	c.sessionsExpired.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordVote(string, bool) {}
func (Nop) RecordSearch(bool, int) {}
func (Nop) RecordUpload(bool) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordSessionsExpired(int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
