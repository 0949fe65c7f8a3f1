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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordFetchRun()
	RecordTweetsFetched(count int)
	RecordTweetsNew(count int)
	RecordTweetsSkipped(count int)
	RecordMockFallback(handle string)
	RecordTweetDisplayed()
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchRuns       prometheus.Counter
	tweetsFetched   prometheus.Counter
	tweetsNew       prometheus.Counter
	tweetsSkipped   prometheus.Counter
	mockFallback    prometheus.Counter
	tweetsDisplayed prometheus.Counter
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetkiosk_fetch_runs_total",
			Help: "リフレッシュ実行の合計数",
		}),
		tweetsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetkiosk_tweets_fetched_total",
			Help: "取得したツイートの合計数（重複含む）",
		}),
		tweetsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetkiosk_tweets_new_total",
			Help: "新規保存されたツイートの合計数",
		}),
		tweetsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetkiosk_tweets_skipped_total",
			Help: "重複によりスキップされたツイートの合計数",
		}),
		mockFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetkiosk_mock_fallback_total",
			Help: "APIエラーによるモックフォールバックの合計数",
		}),
		tweetsDisplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tweetkiosk_tweets_displayed_total",
			Help: "表示済みにマークされたツイートの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tweetkiosk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tweetkiosk_fetch_latency_seconds",
			Help:    "ハンドルごとのツイート取得レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.fetchRuns,
		c.tweetsFetched,
		c.tweetsNew,
		c.tweetsSkipped,
		c.mockFallback,
		c.tweetsDisplayed,
		c.httpStatus,
		c.fetchLatency,
	)

	return c
}

// RecordFetchRun はリフレッシュ実行を記録する。
func (c *Collector) RecordFetchRun() {
	c.fetchRuns.Inc()
}

// RecordTweetsFetched は取得したツイート数を記録する。
func (c *Collector) RecordTweetsFetched(count int) {
	c.tweetsFetched.Add(float64(count))
}

// RecordTweetsNew は新規保存されたツイート数を記録する。
func (c *Collector) RecordTweetsNew(count int) {
	c.tweetsNew.Add(float64(count))
}

// RecordTweetsSkipped は重複スキップされたツイート数を記録する。
func (c *Collector) RecordTweetsSkipped(count int) {
	c.tweetsSkipped.Add(float64(count))
}

// RecordMockFallback はモックフォールバックの発生を記録する。
func (c *Collector) RecordMockFallback(handle string) {
	c.mockFallback.Inc()
}

// RecordTweetDisplayed はツイートの初回表示マーキングを記録する。
func (c *Collector) RecordTweetDisplayed() {
	c.tweetsDisplayed.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はハンドルごとの取得レイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// APIを持たないワーカープロセスがスクレイプ対象になるために使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
