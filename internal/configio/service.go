// Package configio 实现产线配置的导入、导出与已存在产线的校验。
//
// 导入在单个数据库事务中完成：产线 ID 已存在时在写入任何记录前拒绝，
// 写入过程中任何错误都会回滚整个事务，不会留下部分导入的产线。
package configio

import (
	"context"
	"log/slog"

	"plant-config/internal/apperr"
	"plant-config/internal/document"
	"plant-config/internal/event"
	"plant-config/internal/model"
	"plant-config/internal/store"
	"plant-config/internal/trace"
	"plant-config/internal/validation"
)

// Report 导入结果
type Report struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	ProductionLineID string            `json:"production_line_id,omitempty"`
	Statistics       *model.Statistics `json:"statistics,omitempty"`
	Errors           []string          `json:"errors,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// Service 配置导入导出服务
type Service struct {
	store  *store.Store
	bus    *event.Bus
	logger *slog.Logger
}

// NewService 创建服务，bus 可以为 nil
func NewService(st *store.Store, bus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		bus:    bus,
		logger: logger.With("component", "configio"),
	}
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.bus == nil {
		return
	}
	e.TraceID = trace.ID(ctx)
	s.bus.Publish(e)
}

// Validate 校验配置文档
func (s *Service) Validate(ctx context.Context, tree document.Tree) validation.Verdict {
	v := validation.Validate(tree)
	s.publish(ctx, event.Event{Type: event.LineValidated, Valid: v.Valid, Errors: len(v.Errors), Warnings: len(v.Warnings)})
	return v
}

// Import 校验并导入一份配置文档。
// 校验失败返回 INVALID，产线 ID 已存在返回 CONFLICT，二者都不会写入任何记录。
func (s *Service) Import(ctx context.Context, tree document.Tree) (Report, error) {
	log := s.logger.With("trace_id", trace.ID(ctx))

	v := s.Validate(ctx, tree)
	if !v.Valid {
		log.Warn("配置验证失败，拒绝导入", "errors", len(v.Errors))
		err := v.Err()
		s.publish(ctx, event.Event{Type: event.ImportRejected, Err: err})
		return Report{Message: "配置验证失败", Errors: v.Errors, Warnings: v.Warnings}, err
	}

	cfg, err := document.Decode(tree)
	if err != nil {
		s.publish(ctx, event.Event{Type: event.ImportRejected, Err: err})
		return Report{Message: apperr.UserMessage(err), Errors: []string{apperr.UserMessage(err)}, Warnings: v.Warnings}, err
	}

	lineID := cfg.ProductionLine.ID
	if lineID == "" {
		lineID = model.NewID(model.PrefixLine)
	}

	var stats model.Statistics
	err = s.store.WithTx(ctx, func(q *store.Queries) error {
		exists, err := q.LineExists(ctx, lineID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.CodeConflict, "产线ID %s 已存在", lineID)
		}
		imp := newImporter(q, lineID)
		if err := imp.run(ctx, cfg); err != nil {
			return err
		}
		stats = imp.stats
		return nil
	})
	if err != nil {
		log.Warn("导入失败，事务已回滚", "line_id", lineID, "error", err)
		s.publish(ctx, event.Event{Type: event.ImportRejected, LineID: lineID, LineName: cfg.ProductionLine.Name, Err: err})
		msg := apperr.UserMessage(err)
		return Report{Message: "导入失败: " + msg, Errors: []string{msg}, Warnings: v.Warnings}, err
	}

	log.Info("产线配置导入成功", "line_id", lineID, "workstations", stats.Workstations, "routines", stats.Routines)
	s.publish(ctx, event.Event{Type: event.LineImported, LineID: lineID, LineName: cfg.ProductionLine.Name, Stats: stats})
	return Report{
		Success:          true,
		Message:          "配置导入成功",
		ProductionLineID: lineID,
		Statistics:       &stats,
		Warnings:         v.Warnings,
	}, nil
}

// Export 将已存在的产线导出为指定格式
func (s *Service) Export(ctx context.Context, lineID string, format document.Format) ([]byte, error) {
	snap, err := s.store.LoadLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	data, err := document.Encode(FromSnapshot(snap), format)
	if err != nil {
		return nil, err
	}
	s.logger.Info("产线配置已导出", "line_id", lineID, "format", format, "trace_id", trace.ID(ctx))
	s.publish(ctx, event.Event{Type: event.LineExported, LineID: lineID, LineName: snap.Line.Name, Format: string(format)})
	return data, nil
}

// ValidateExisting 校验已持久化的产线
func (s *Service) ValidateExisting(ctx context.Context, lineID string) (validation.Verdict, error) {
	snap, err := s.store.LoadLine(ctx, lineID)
	if err != nil {
		return validation.Verdict{}, err
	}
	v := validation.ValidateLine(snap)
	s.publish(ctx, event.Event{
		Type: event.LineValidated, LineID: lineID, LineName: snap.Line.Name,
		Valid: v.Valid, Errors: len(v.Errors), Warnings: len(v.Warnings),
	})
	return v, nil
}

// DeleteLine 删除产线及其下全部记录
func (s *Service) DeleteLine(ctx context.Context, lineID string) error {
	line, err := s.store.GetLine(ctx, lineID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLine(ctx, lineID); err != nil {
		return err
	}
	s.logger.Info("产线已删除", "line_id", lineID, "trace_id", trace.ID(ctx))
	s.publish(ctx, event.Event{Type: event.LineDeleted, LineID: lineID, LineName: line.Name})
	return nil
}
