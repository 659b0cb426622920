// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess  = "success"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignup(result string)
	RecordLogin(result string)
	RecordUpgrade(result string)
	RecordTokenRejected()
	RecordCartMutation(op string)
	RecordUploadFailure(folder string)
	RecordStoreUnavailable(op string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups          *prometheus.CounterVec
	logins           *prometheus.CounterVec
	upgrades         *prometheus.CounterVec
	tokenRejected    prometheus.Counter
	cartMutations    *prometheus.CounterVec
	uploadFailures   *prometheus.CounterVec
	storeUnavailable *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_signups_total",
			Help: "サインアップ試行の結果別件数",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_logins_total",
			Help: "ログイン試行の結果別件数",
		}, []string{"result"}),
		upgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_seller_upgrades_total",
			Help: "販売者への昇格試行の結果別件数",
		}, []string{"result"}),
		tokenRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cakeshop_token_rejected_total",
			Help: "検証に失敗したトークンの件数",
		}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_cart_mutations_total",
			Help: "カート変更操作の種類別件数",
		}, []string{"op"}),
		uploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_upload_failures_total",
			Help: "画像アップロード失敗のフォルダ別件数",
		}, []string{"folder"}),
		storeUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_store_unavailable_total",
			Help: "ストアのタイムアウトによる失敗の操作別件数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cakeshop_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cakeshop_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.upgrades,
		c.tokenRejected,
		c.cartMutations,
		c.uploadFailures,
		c.storeUnavailable,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignup はサインアップの結果を記録する。
func (c *Collector) RecordSignup(result string) {
	c.signups.WithLabelValues(result).Inc()
}

// RecordLogin はログインの結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordUpgrade は販売者への昇格の結果を記録する。
func (c *Collector) RecordUpgrade(result string) {
	c.upgrades.WithLabelValues(result).Inc()
}

// RecordTokenRejected は検証に失敗したトークンを記録する。
func (c *Collector) RecordTokenRejected() {
	c.tokenRejected.Inc()
}

// RecordCartMutation はカート変更操作を記録する。
func (c *Collector) RecordCartMutation(op string) {
	c.cartMutations.WithLabelValues(op).Inc()
}

// RecordUploadFailure は画像アップロード失敗を記録する。
func (c *Collector) RecordUploadFailure(folder string) {
	c.uploadFailures.WithLabelValues(folder).Inc()
}

// RecordStoreUnavailable はストアのタイムアウトを記録する。
func (c *Collector) RecordStoreUnavailable(op string) {
	c.storeUnavailable.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストや未設定時に使う。
type Nop struct{}

func (Nop) RecordSignup(string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordUpgrade(string) {}
func (Nop) RecordTokenRejected() {}
func (Nop) RecordCartMutation(string) {}
func (Nop) RecordUploadFailure(string) {}
func (Nop) RecordStoreUnavailable(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
