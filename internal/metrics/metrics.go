// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// サインイン結果のラベル値。
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordSignIn(provider string, result string)
	RecordSignup(result string)
	RecordCartMutation(op string)
	RecordOrderPlaced(itemCount int)
	RecordCheckoutFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns         *prometheus.CounterVec
	signups         *prometheus.CounterVec
	cartMutations   *prometheus.CounterVec
	ordersPlaced    prometheus.Counter
	orderLines      prometheus.Histogram
	checkoutFail    *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_signin_total",
			Help: "プロバイダー・結果別のサインイン試行数",
		}, []string{"provider", "result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_signup_total",
			Help: "結果別のローカルアカウント登録数",
		}, []string{"result"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_cart_mutation_total",
			Help: "操作別のカート変更数",
		}, []string{"op"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_orders_placed_total",
			Help: "確定した注文の合計数",
		}),
		orderLines: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookstore_order_lines",
			Help:    "注文あたりの明細数",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		}),
		checkoutFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_checkout_fail_total",
			Help: "理由別のチェックアウト失敗数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstore_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookstore_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookstore_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.signIns,
		c.signups,
		c.cartMutations,
		c.ordersPlaced,
		c.orderLines,
		c.checkoutFail,
		c.httpStatus,
		c.requestLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordSignIn はサインイン試行を記録する。
func (c *Collector) RecordSignIn(provider string, result string) {
	c.signIns.WithLabelValues(provider, result).Inc()
}

// RecordSignup はアカウント登録を記録する。
func (c *Collector) RecordSignup(result string) {
	c.signups.WithLabelValues(result).Inc()
}

// RecordCartMutation はカート変更を記録する。
func (c *Collector) RecordCartMutation(op string) {
	c.cartMutations.WithLabelValues(op).Inc()
}

// RecordOrderPlaced は注文確定を記録する。
func (c *Collector) RecordOrderPlaced(itemCount int) {
	c.ordersPlaced.Inc()
	c.orderLines.Observe(float64(itemCount))
}

// RecordCheckoutFailure はチェックアウト失敗を記録する。
func (c *Collector) RecordCheckoutFailure(reason string) {
	c.checkoutFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordSignIn(string, string) {}
func (Nop) RecordSignup(string) {}
func (Nop) RecordCartMutation(string) {}
func (Nop) RecordOrderPlaced(int) {}
func (Nop) RecordCheckoutFailure(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordSessionsCleaned(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
