package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"plant-config/internal/apperr"
	"plant-config/internal/model"
)

// table 返回类型表名，种类来自 model 的固定枚举，不会拼接外部输入
func table(kind model.TaxonomyKind) (string, error) {
	if !kind.Valid() {
		return "", apperr.New(apperr.CodeNotFound, "类型表 %s 不存在", kind)
	}
	return string(kind), nil
}

func (q *Queries) CreateTaxonomy(ctx context.Context, kind model.TaxonomyKind, e model.TaxonomyEntry) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO `+t+` (id, name, description) VALUES (?, ?, ?)`, e.ID, e.Name, nullString(e.Description))
	if err != nil {
		return writeErr(err, "类型名称 '%s'", e.Name)
	}
	return nil
}

func (q *Queries) GetTaxonomy(ctx context.Context, kind model.TaxonomyKind, id string) (model.TaxonomyEntry, error) {
	var (
		e     model.TaxonomyEntry
		descr sql.NullString
	)
	t, err := table(kind)
	if err != nil {
		return e, err
	}
	err = q.db.QueryRowContext(ctx, `SELECT id, name, description FROM `+t+` WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &descr)
	if errors.Is(err, sql.ErrNoRows) {
		return e, apperr.New(apperr.CodeNotFound, "类型 %s 不存在", id)
	}
	if err != nil {
		return e, fmt.Errorf("查询类型 %s 失败: %w", id, err)
	}
	e.Description = descr.String
	return e, nil
}

func (q *Queries) ListTaxonomy(ctx context.Context, kind model.TaxonomyKind) ([]model.TaxonomyEntry, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, description FROM `+t+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("查询类型列表失败: %w", err)
	}
	defer rows.Close()

	out := []model.TaxonomyEntry{}
	for rows.Next() {
		var (
			e     model.TaxonomyEntry
			descr sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &descr); err != nil {
			return nil, err
		}
		e.Description = descr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// TaxonomyNameTaken 判断名称是否已被其他记录使用，exceptID 为正在更新的记录
func (q *Queries) TaxonomyNameTaken(ctx context.Context, kind model.TaxonomyKind, name, exceptID string) (bool, error) {
	t, err := table(kind)
	if err != nil {
		return false, err
	}
	var n int
	err = q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+t+` WHERE name = ? AND id <> ?`, name, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("查询类型名称失败: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) UpdateTaxonomy(ctx context.Context, kind model.TaxonomyKind, e model.TaxonomyEntry) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE `+t+` SET name = ?, description = ? WHERE id = ?`, e.Name, nullString(e.Description), e.ID)
	if err != nil {
		return writeErr(err, "类型名称 '%s'", e.Name)
	}
	return notFound(res, "类型 %s", e.ID)
}

func (q *Queries) DeleteTaxonomy(ctx context.Context, kind model.TaxonomyKind, id string) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM `+t+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除类型 %s 失败: %w", id, err)
	}
	return notFound(res, "类型 %s", id)
}
