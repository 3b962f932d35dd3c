package handlers

import (
	"log/slog"

	"plant-config/internal/event"
	"plant-config/internal/journal"
	"plant-config/internal/metrics"
	"plant-config/internal/model"
	"plant-config/internal/web"
)

// RegisterEventHandlers 将所有事件处理器注册到事件总线
// 监控、UI、变更日志、审计日志各自订阅，互不影响。journal 可以为 nil。
func RegisterEventHandlers(bus *event.Bus, lt *web.LineTracker, jr *journal.Journal, logger *slog.Logger) {
	// --- 指标处理器 ---
	bus.Subscribe(event.LineImported, func(e event.Event) {
		metrics.ImportsTotal.WithLabelValues("success").Inc()
		for kind, n := range recordCounts(e.Stats) {
			metrics.ImportedRecordsTotal.WithLabelValues(kind).Add(float64(n))
		}
	})
	bus.Subscribe(event.ImportRejected, func(e event.Event) {
		metrics.ImportsTotal.WithLabelValues("rejected").Inc()
	})
	bus.Subscribe(event.LineValidated, func(e event.Event) {
		verdict := "valid"
		if !e.Valid {
			verdict = "invalid"
		}
		metrics.ValidationsTotal.WithLabelValues(verdict).Inc()
		metrics.ValidationWarningsTotal.Add(float64(e.Warnings))
	})
	bus.Subscribe(event.LineExported, func(e event.Event) {
		metrics.ExportsTotal.WithLabelValues(e.Format).Inc()
	})
	bus.Subscribe(event.LineDeleted, func(e event.Event) {
		metrics.LinesDeletedTotal.Inc()
	})
	bus.Subscribe(event.TaxonomyChanged, func(e event.Event) {
		metrics.TaxonomyChangesTotal.WithLabelValues(string(e.Taxonomy), e.Action).Inc()
	})

	// --- Web UI 处理器 ---
	bus.Subscribe(event.LineImported, func(e event.Event) {
		lt.LineImported(e.Seq, e.LineID, e.LineName, e.Stats)
	})
	bus.Subscribe(event.LineValidated, func(e event.Event) {
		if e.LineID != "" {
			lt.LineValidated(e.Seq, e.LineID, e.Valid, e.Errors, e.Warnings)
		}
	})
	bus.Subscribe(event.LineDeleted, func(e event.Event) {
		lt.LineDeleted(e.Seq, e.LineID)
	})

	// --- 变更日志处理器 ---
	if jr != nil {
		bus.Subscribe(event.LineImported, func(e event.Event) {
			stats := e.Stats
			entry := journal.Entry{Type: journal.TypeImport, LineID: e.LineID, LineName: e.LineName, Stats: &stats, TraceID: e.TraceID, At: e.At}
			if err := jr.Append(entry); err != nil {
				logger.Error("写入变更日志失败", "line_id", e.LineID, "error", err)
			}
		})
		bus.Subscribe(event.LineDeleted, func(e event.Event) {
			entry := journal.Entry{Type: journal.TypeDelete, LineID: e.LineID, LineName: e.LineName, TraceID: e.TraceID, At: e.At}
			if err := jr.Append(entry); err != nil {
				logger.Error("写入变更日志失败", "line_id", e.LineID, "error", err)
			}
		})
	}

	// --- 日志处理器 ---
	bus.Subscribe(event.ImportRejected, func(e event.Event) {
		logger.Warn("产线导入被拒绝", "line_id", e.LineID, "error", e.Err, "trace_id", e.TraceID)
	})
	bus.Subscribe(event.LineImported, func(e event.Event) {
		logger.Info("产线导入完成", "line_id", e.LineID, "name", e.LineName, "trace_id", e.TraceID)
	})
	bus.Subscribe(event.LineDeleted, func(e event.Event) {
		logger.Info("产线已删除", "line_id", e.LineID, "trace_id", e.TraceID)
	})
}

func recordCounts(s model.Statistics) map[string]int {
	return map[string]int{
		"workstation":    s.Workstations,
		"buffer":         s.Buffers,
		"transport_path": s.TransportPaths,
		"routine":        s.Routines,
		"routine_step":   s.RoutineSteps,
		"step_link":      s.StepLinks,
		"value_stream":   s.ValueStreams,
	}
}
