package pharmacy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the availability/restock/alert pipeline
// 在庫状況・補充・アラート処理のPrometheusメトリクス
var (
	// レポート計算回数（result: ok / not_found / integrity_error / error）
	metricReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmacy_availability_reports_total",
		Help: "Number of availability report computations by result",
	}, []string{"result"})

	// レポート計算時間
	metricReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pharmacy_availability_report_duration_seconds",
		Help:    "Time spent computing availability reports",
		Buckets: prometheus.DefBuckets,
	})

	// キャッシュヒット／ミス
	metricCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmacy_report_cache_lookups_total",
		Help: "Report cache lookups by outcome (hit/miss)",
	}, []string{"outcome"})

	// 補充シミュレーション実行回数（trigger: manual / auto）
	metricRestockExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmacy_restock_executions_total",
		Help: "Number of executed restock simulations by trigger",
	}, []string{"trigger"})

	// 保留中の補充シミュレーション数
	metricPendingSimulations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pharmacy_restock_pending_simulations",
		Help: "Number of pending restock simulations across all keys",
	})

	// 発火したアラート数（type別）
	metricAlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmacy_alerts_triggered_total",
		Help: "Number of stock alerts triggered by type",
	}, []string{"type"})

	// アラートスイープ実行回数
	metricAlertSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacy_alert_sweeps_total",
		Help: "Number of completed alert monitor sweeps",
	})
)
