package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"plant-config/internal/apperr"
	"plant-config/internal/model"
)

func (q *Queries) CreateRoutine(ctx context.Context, r model.Routine) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO routines (id, production_line_id, name, material_type, start_location, end_location, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProductionLineID, r.Name, r.MaterialType,
		nullString(r.StartLocation), nullString(r.EndLocation), nullString(r.Description))
	if err != nil {
		return writeErr(err, "工艺路线 %s", r.ID)
	}
	return nil
}

const routineColumns = `id, production_line_id, name, material_type, start_location, end_location, description`

func scanRoutine(scan func(dest ...any) error) (model.Routine, error) {
	var (
		r                 model.Routine
		start, end, descr sql.NullString
	)
	if err := scan(&r.ID, &r.ProductionLineID, &r.Name, &r.MaterialType, &start, &end, &descr); err != nil {
		return r, err
	}
	r.StartLocation = start.String
	r.EndLocation = end.String
	r.Description = descr.String
	return r, nil
}

func (q *Queries) GetRoutine(ctx context.Context, id string) (model.Routine, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+routineColumns+` FROM routines WHERE id = ?`, id)
	r, err := scanRoutine(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return r, apperr.New(apperr.CodeNotFound, "工艺路线 %s 不存在", id)
	}
	if err != nil {
		return r, fmt.Errorf("查询工艺路线 %s 失败: %w", id, err)
	}
	return r, nil
}

func (q *Queries) ListRoutines(ctx context.Context, lineID string) ([]model.Routine, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+routineColumns+` FROM routines WHERE production_line_id = ? ORDER BY rowid`, lineID)
	if err != nil {
		return nil, fmt.Errorf("查询工艺路线失败: %w", err)
	}
	defer rows.Close()

	var out []model.Routine
	for rows.Next() {
		r, err := scanRoutine(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRoutine 删除工艺路线，步骤与连线级联删除
func (q *Queries) DeleteRoutine(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM routines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除工艺路线 %s 失败: %w", id, err)
	}
	return notFound(res, "工艺路线 %s", id)
}

func (q *Queries) CreateStep(ctx context.Context, s model.RoutineStep) error {
	var (
		workstation sql.NullString
		branches    sql.NullString
		merge       sql.NullString
		parallel    bool
		err         error
	)
	switch k := s.Kind.(type) {
	case *model.SimpleStep:
		workstation = nullString(k.WorkstationID)
	case *model.ParallelStep:
		parallel = true
		merge = nullString(string(k.MergeCondition))
		if branches, err = jsonColumn(k.Branches); err != nil {
			return err
		}
	default:
		return apperr.New(apperr.CodeField, "步骤 %s 缺少步骤形态", s.ID)
	}
	conditions, err := jsonColumn(s.Conditions)
	if err != nil {
		return err
	}
	pos, err := jsonColumn(s.Position)
	if err != nil {
		return err
	}
	var next sql.NullString
	if s.NextStep != nil {
		next = sql.NullString{String: string(*s.NextStep), Valid: true}
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO routine_steps (id, routine_id, step_id, workstation_id, operation, processing_time,
			value_added, value_amount, conditions, parallel, branches, merge_condition, next_step, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.RoutineID, s.StepID, workstation, string(s.Operation), nullFloat(s.ProcessingTime),
		s.ValueAdded, nullFloat(s.ValueAmount), conditions, parallel, branches, merge, next, pos)
	if err != nil {
		return writeErr(err, "步骤 %s (step_id %d)", s.ID, s.StepID)
	}
	return nil
}

// ListSteps 按 step_id 顺序返回工艺路线的步骤
func (q *Queries) ListSteps(ctx context.Context, routineID string) ([]model.RoutineStep, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, routine_id, step_id, workstation_id, operation, processing_time, value_added, value_amount,
			conditions, parallel, branches, merge_condition, next_step, position
		FROM routine_steps WHERE routine_id = ? ORDER BY step_id`, routineID)
	if err != nil {
		return nil, fmt.Errorf("查询步骤失败: %w", err)
	}
	defer rows.Close()

	var out []model.RoutineStep
	for rows.Next() {
		var (
			s                           model.RoutineStep
			operation                   string
			workstation, merge, next    sql.NullString
			conditions, branches, pos   sql.NullString
			processingTime, valueAmount sql.NullFloat64
			parallel                    bool
		)
		if err := rows.Scan(&s.ID, &s.RoutineID, &s.StepID, &workstation, &operation, &processingTime,
			&s.ValueAdded, &valueAmount, &conditions, &parallel, &branches, &merge, &next, &pos); err != nil {
			return nil, err
		}
		s.Operation = model.Category(operation)
		s.ProcessingTime = floatPtr(processingTime)
		s.ValueAmount = floatPtr(valueAmount)
		if next.Valid {
			ref := model.StepRef(next.String)
			s.NextStep = &ref
		}
		if parallel {
			k := &model.ParallelStep{MergeCondition: model.MergeCondition(merge.String)}
			if err := scanJSON(branches, &k.Branches); err != nil {
				return nil, err
			}
			s.Kind = k
		} else {
			s.Kind = &model.SimpleStep{WorkstationID: workstation.String}
		}
		if err := scanJSON(conditions, &s.Conditions); err != nil {
			return nil, err
		}
		if err := scanJSON(pos, &s.Position); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteStep 删除步骤，并删除以该步骤为任一端点的连线
func (q *Queries) DeleteStep(ctx context.Context, routineID, id string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM routine_step_links WHERE routine_id = ? AND (from_step_id = ? OR to_step_id = ?)`,
		routineID, id, id); err != nil {
		return fmt.Errorf("删除步骤 %s 的连线失败: %w", id, err)
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM routine_steps WHERE routine_id = ? AND id = ?`, routineID, id)
	if err != nil {
		return fmt.Errorf("删除步骤 %s 失败: %w", id, err)
	}
	return notFound(res, "步骤 %s", id)
}

// CreateLink 创建连线，两端必须是同一工艺路线的步骤
func (q *Queries) CreateLink(ctx context.Context, l model.RoutineStepLink) error {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM routine_steps WHERE routine_id = ? AND id IN (?, ?)`,
		l.RoutineID, l.FromStepID, l.ToStepID).Scan(&n)
	if err != nil {
		return fmt.Errorf("查询连线端点失败: %w", err)
	}
	want := 2
	if l.FromStepID == l.ToStepID {
		want = 1
	}
	if n != want {
		return apperr.New(apperr.CodeReference, "连线 %s 的端点不属于工艺路线 %s", l.ID, l.RoutineID)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO routine_step_links (id, routine_id, from_step_id, to_step_id) VALUES (?, ?, ?, ?)`,
		l.ID, l.RoutineID, l.FromStepID, l.ToStepID)
	if err != nil {
		return writeErr(err, "连线 %s", l.ID)
	}
	return nil
}

func (q *Queries) ListLinks(ctx context.Context, routineID string) ([]model.RoutineStepLink, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, routine_id, from_step_id, to_step_id FROM routine_step_links WHERE routine_id = ? ORDER BY rowid`,
		routineID)
	if err != nil {
		return nil, fmt.Errorf("查询连线失败: %w", err)
	}
	defer rows.Close()

	var out []model.RoutineStepLink
	for rows.Next() {
		var l model.RoutineStepLink
		if err := rows.Scan(&l.ID, &l.RoutineID, &l.FromStepID, &l.ToStepID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteLink(ctx context.Context, routineID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM routine_step_links WHERE routine_id = ? AND id = ?`, routineID, id)
	if err != nil {
		return fmt.Errorf("删除连线 %s 失败: %w", id, err)
	}
	return notFound(res, "连线 %s", id)
}
