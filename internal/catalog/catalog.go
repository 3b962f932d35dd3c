// Package catalog 维护与产线无关的全局类型表：工序类型、工作站类型、物料类型。
// 名称在同一类型表内唯一，先查重再写入，数据库唯一约束兜底并发写入。
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"plant-config/internal/apperr"
	"plant-config/internal/event"
	"plant-config/internal/model"
	"plant-config/internal/store"
	"plant-config/internal/trace"
)

// Catalog 类型表服务
type Catalog struct {
	store  *store.Store
	bus    *event.Bus
	logger *slog.Logger
}

func New(st *store.Store, bus *event.Bus, logger *slog.Logger) *Catalog {
	return &Catalog{store: st, bus: bus, logger: logger.With("component", "catalog")}
}

func (c *Catalog) changed(ctx context.Context, kind model.TaxonomyKind, action, id string) {
	c.logger.Info("类型表已变更", "kind", kind, "action", action, "id", id, "trace_id", trace.ID(ctx))
	if c.bus != nil {
		c.bus.Publish(event.Event{Type: event.TaxonomyChanged, Taxonomy: kind, Action: action, TraceID: trace.ID(ctx)})
	}
}

func (c *Catalog) List(ctx context.Context, kind model.TaxonomyKind) ([]model.TaxonomyEntry, error) {
	return c.store.ListTaxonomy(ctx, kind)
}

func (c *Catalog) Get(ctx context.Context, kind model.TaxonomyKind, id string) (model.TaxonomyEntry, error) {
	return c.store.GetTaxonomy(ctx, kind, id)
}

// Create 新建类型，名称重复返回 UNIQUENESS
func (c *Catalog) Create(ctx context.Context, kind model.TaxonomyKind, e model.TaxonomyEntry) (model.TaxonomyEntry, error) {
	e.Name = strings.TrimSpace(e.Name)
	if err := c.checkName(ctx, kind, e.Name, ""); err != nil {
		return e, err
	}
	e.ID = model.NewID(kind.IDPrefix())
	if err := c.store.CreateTaxonomy(ctx, kind, e); err != nil {
		return e, uniqueness(err, e.Name)
	}
	c.changed(ctx, kind, "create", e.ID)
	return e, nil
}

// Update 修改类型名称与描述
func (c *Catalog) Update(ctx context.Context, kind model.TaxonomyKind, e model.TaxonomyEntry) (model.TaxonomyEntry, error) {
	e.Name = strings.TrimSpace(e.Name)
	if _, err := c.store.GetTaxonomy(ctx, kind, e.ID); err != nil {
		return e, err
	}
	if err := c.checkName(ctx, kind, e.Name, e.ID); err != nil {
		return e, err
	}
	if err := c.store.UpdateTaxonomy(ctx, kind, e); err != nil {
		return e, uniqueness(err, e.Name)
	}
	c.changed(ctx, kind, "update", e.ID)
	return e, nil
}

func (c *Catalog) Delete(ctx context.Context, kind model.TaxonomyKind, id string) error {
	if err := c.store.DeleteTaxonomy(ctx, kind, id); err != nil {
		return err
	}
	c.changed(ctx, kind, "delete", id)
	return nil
}

func (c *Catalog) checkName(ctx context.Context, kind model.TaxonomyKind, name, exceptID string) error {
	if name == "" {
		return apperr.New(apperr.CodeField, "类型名称不能为空")
	}
	taken, err := c.store.TaxonomyNameTaken(ctx, kind, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.New(apperr.CodeUniqueness, "类型名称 '%s' 已存在", name)
	}
	return nil
}

// uniqueness 查重与写入之间被并发写入抢先时，唯一约束冲突同样报告为名称重复
func uniqueness(err error, name string) error {
	if apperr.Is(err, apperr.CodeConflict) {
		return apperr.Wrap(apperr.CodeUniqueness, err, "类型名称 '%s' 已存在", name)
	}
	return err
}
