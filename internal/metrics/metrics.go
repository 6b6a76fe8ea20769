// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// lifecycle.MetricsRecorder、ワーカー、HTTPミドルウェアから利用する。
type Collector struct {
	appsCreated     prometheus.Counter
	appsDeleted     prometheus.Counter
	transitions     *prometheus.CounterVec
	followupsLogged prometheus.Counter
	secondaryFail   *prometheus.CounterVec
	followupsDue    prometheus.Counter
	exportRows      *prometheus.CounterVec
	exportDuration  prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		appsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_applications_created_total",
			Help: "作成された応募の合計数",
		}),
		appsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_applications_deleted_total",
			Help: "削除された応募の合計数",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_status_transitions_total",
			Help: "遷移元・遷移先ステータス別の遷移数",
		}, []string{"from", "to"}),
		followupsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_followups_logged_total",
			Help: "記録されたフォローアップの合計数",
		}),
		secondaryFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_secondary_write_failures_total",
			Help: "主更新後に失敗した履歴・監査書き込みの数",
		}, []string{"step"}),
		followupsDue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_followups_due_total",
			Help: "期日到来として通知したフォローアップの数",
		}),
		exportRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_export_rows_total",
			Help: "テーブル別のエクスポート行数",
		}, []string{"table"}),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobtrail_export_duration_seconds",
			Help:    "エクスポート1回の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.appsCreated,
		c.appsDeleted,
		c.transitions,
		c.followupsLogged,
		c.secondaryFail,
		c.followupsDue,
		c.exportRows,
		c.exportDuration,
		c.httpStatus,
	)

	return c
}

// ApplicationCreated は応募の作成を記録する。
func (c *Collector) ApplicationCreated() {
	c.appsCreated.Inc()
}

// ApplicationDeleted は応募の削除を記録する。
func (c *Collector) ApplicationDeleted() {
	c.appsDeleted.Inc()
}

// StatusTransition はステータス遷移を記録する。
func (c *Collector) StatusTransition(from, to model.Status) {
	c.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// FollowupLogged はフォローアップの記録を記録する。
func (c *Collector) FollowupLogged() {
	c.followupsLogged.Inc()
}

// SecondaryWriteFailed は副次的な書き込みの失敗を記録する。
func (c *Collector) SecondaryWriteFailed(step string) {
	c.secondaryFail.WithLabelValues(step).Inc()
}

// FollowupDue は期日到来の通知を記録する。
func (c *Collector) FollowupDue() {
	c.followupsDue.Inc()
}

// ExportRows はテーブルごとのエクスポート行数を加算する。
func (c *Collector) ExportRows(table string, count int) {
	c.exportRows.WithLabelValues(table).Add(float64(count))
}

// ExportDuration はエクスポート1回の所要時間を記録する。
func (c *Collector) ExportDuration(d time.Duration) {
	c.exportDuration.Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
