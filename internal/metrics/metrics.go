package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义 Prometheus 监控指标
var (
	// ImportsTotal 计数器：导入次数，按结果 (success/rejected) 分类
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plant_config_imports_total",
		Help: "The total number of production line imports",
	}, []string{"result"})

	// ImportedRecordsTotal 计数器：导入写入的记录数，按记录种类分类
	ImportedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plant_config_imported_records_total",
		Help: "The total number of records written by imports",
	}, []string{"kind"})

	// ValidationsTotal 计数器：校验次数，按结论 (valid/invalid) 分类
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plant_config_validations_total",
		Help: "The total number of configuration validations",
	}, []string{"verdict"})

	// ValidationWarningsTotal 计数器：校验产生的警告总数
	ValidationWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plant_config_validation_warnings_total",
		Help: "The total number of warnings reported by validations",
	})

	// ExportsTotal 计数器：导出次数，按格式分类
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plant_config_exports_total",
		Help: "The total number of production line exports",
	}, []string{"format"})

	// LinesDeletedTotal 计数器：删除的产线数
	LinesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plant_config_lines_deleted_total",
		Help: "The total number of deleted production lines",
	})

	// TaxonomyChangesTotal 计数器：类型表变更，按种类与操作分类
	TaxonomyChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plant_config_taxonomy_changes_total",
		Help: "The total number of taxonomy changes",
	}, []string{"kind", "action"})

	// RequestDuration 直方图：HTTP 请求耗时分布，按路由模式分类
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plant_config_http_request_duration_seconds",
		Help:    "Time spent serving HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
