package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"plant-config/internal/apperr"
	"plant-config/internal/model"
)

func (q *Queries) CreateLine(ctx context.Context, line model.ProductionLine) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO production_lines (id, name, description) VALUES (?, ?, ?)`,
		line.ID, line.Name, line.Description)
	if err != nil {
		return writeErr(err, "产线 %s", line.ID)
	}
	return nil
}

func (q *Queries) GetLine(ctx context.Context, id string) (model.ProductionLine, error) {
	var line model.ProductionLine
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM production_lines WHERE id = ?`, id,
	).Scan(&line.ID, &line.Name, &line.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return line, apperr.New(apperr.CodeNotFound, "产线 %s 不存在", id)
	}
	if err != nil {
		return line, fmt.Errorf("查询产线 %s 失败: %w", id, err)
	}
	return line, nil
}

// LineExists 导入前检查产线 ID 是否已被占用
func (q *Queries) LineExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM production_lines WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("查询产线 %s 失败: %w", id, err)
	}
	return n > 0, nil
}

func (q *Queries) ListLines(ctx context.Context) ([]model.ProductionLine, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, description FROM production_lines ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("查询产线列表失败: %w", err)
	}
	defer rows.Close()

	lines := []model.ProductionLine{}
	for rows.Next() {
		var line model.ProductionLine
		if err := rows.Scan(&line.ID, &line.Name, &line.Description); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (q *Queries) UpdateLine(ctx context.Context, line model.ProductionLine) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE production_lines SET name = ?, description = ? WHERE id = ?`,
		line.Name, line.Description, line.ID)
	if err != nil {
		return writeErr(err, "产线 %s", line.ID)
	}
	return notFound(res, "产线 %s", line.ID)
}

// DeleteLine 删除产线，其下所有记录级联删除
func (q *Queries) DeleteLine(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM production_lines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除产线 %s 失败: %w", id, err)
	}
	return notFound(res, "产线 %s", id)
}

func (q *Queries) CreateWorkstation(ctx context.Context, ws model.Workstation) error {
	pt, err := jsonColumn(ws.ProcessingTime)
	if err != nil {
		return err
	}
	pos, err := jsonColumn(ws.Position)
	if err != nil {
		return err
	}
	props, err := jsonColumn(ws.Properties)
	if err != nil {
		return err
	}
	if ws.Capacity == 0 {
		ws.Capacity = 1
	}
	if ws.Status == "" {
		ws.Status = model.StatusIdle
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO workstations (id, production_line_id, name, type, capacity, processing_time, status,
			input_buffer_id, output_buffer_id, position, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.ProductionLineID, ws.Name, string(ws.Type), ws.Capacity, pt, string(ws.Status),
		nullString(ws.InputBufferID), nullString(ws.OutputBufferID), pos, props)
	if err != nil {
		return writeErr(err, "工作站 %s", ws.ID)
	}
	return nil
}

func (q *Queries) ListWorkstations(ctx context.Context, lineID string) ([]model.Workstation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, production_line_id, name, type, capacity, processing_time, status,
			input_buffer_id, output_buffer_id, position, properties
		FROM workstations WHERE production_line_id = ? ORDER BY rowid`, lineID)
	if err != nil {
		return nil, fmt.Errorf("查询工作站失败: %w", err)
	}
	defer rows.Close()

	var out []model.Workstation
	for rows.Next() {
		var (
			ws                  model.Workstation
			pt, pos, props      sql.NullString
			inputBuf, outputBuf sql.NullString
			typ, status         string
		)
		if err := rows.Scan(&ws.ID, &ws.ProductionLineID, &ws.Name, &typ, &ws.Capacity, &pt, &status,
			&inputBuf, &outputBuf, &pos, &props); err != nil {
			return nil, err
		}
		ws.Type = model.Category(typ)
		ws.Status = model.WorkstationStatus(status)
		ws.InputBufferID = inputBuf.String
		ws.OutputBufferID = outputBuf.String
		if err := scanJSON(pt, &ws.ProcessingTime); err != nil {
			return nil, err
		}
		if err := scanJSON(pos, &ws.Position); err != nil {
			return nil, err
		}
		if err := scanJSON(props, &ws.Properties); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// UpdateWorkstationStatus 修改工作站运行状态
func (q *Queries) UpdateWorkstationStatus(ctx context.Context, id string, status model.WorkstationStatus) error {
	if !status.Valid() {
		return apperr.New(apperr.CodeField, "工作站状态 '%s' 无效", status)
	}
	res, err := q.db.ExecContext(ctx, `UPDATE workstations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return writeErr(err, "工作站 %s", id)
	}
	return notFound(res, "工作站 %s", id)
}

func (q *Queries) CreateBuffer(ctx context.Context, b model.Buffer) error {
	pos, err := jsonColumn(b.Position)
	if err != nil {
		return err
	}
	props, err := jsonColumn(b.Properties)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO buffers (id, production_line_id, name, capacity, current_level, location, position, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProductionLineID, b.Name, b.Capacity, b.CurrentLevel, nullString(b.Location), pos, props)
	if err != nil {
		return writeErr(err, "缓冲区 %s", b.ID)
	}
	return nil
}

func (q *Queries) ListBuffers(ctx context.Context, lineID string) ([]model.Buffer, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, production_line_id, name, capacity, current_level, location, position, properties
		FROM buffers WHERE production_line_id = ? ORDER BY rowid`, lineID)
	if err != nil {
		return nil, fmt.Errorf("查询缓冲区失败: %w", err)
	}
	defer rows.Close()

	var out []model.Buffer
	for rows.Next() {
		var (
			b                    model.Buffer
			location, pos, props sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.ProductionLineID, &b.Name, &b.Capacity, &b.CurrentLevel,
			&location, &pos, &props); err != nil {
			return nil, err
		}
		b.Location = location.String
		if err := scanJSON(pos, &b.Position); err != nil {
			return nil, err
		}
		if err := scanJSON(props, &b.Properties); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBufferLevel 更新缓冲区库存，水平必须在 [0, capacity] 内
func (q *Queries) SetBufferLevel(ctx context.Context, id string, level int) error {
	var capacity int
	err := q.db.QueryRowContext(ctx, `SELECT capacity FROM buffers WHERE id = ?`, id).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.CodeNotFound, "缓冲区 %s 不存在", id)
	}
	if err != nil {
		return fmt.Errorf("查询缓冲区 %s 失败: %w", id, err)
	}
	if !(model.Buffer{Capacity: capacity}).LevelAllowed(level) {
		return apperr.New(apperr.CodeField, "缓冲区 %s 的 current_level %d 超出范围 [0, %d]", id, level, capacity)
	}
	if _, err := q.db.ExecContext(ctx, `UPDATE buffers SET current_level = ? WHERE id = ?`, level, id); err != nil {
		return writeErr(err, "缓冲区 %s", id)
	}
	return nil
}

func (q *Queries) CreateTransportPath(ctx context.Context, p model.TransportPath) error {
	props, err := jsonColumn(p.Properties)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO transport_paths (id, production_line_id, from_location, to_location, transport_time, capacity, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProductionLineID, p.FromLocation, p.ToLocation, p.TransportTime, nullInt(p.Capacity), props)
	if err != nil {
		return writeErr(err, "运输路径 %s", p.ID)
	}
	return nil
}

func (q *Queries) ListTransportPaths(ctx context.Context, lineID string) ([]model.TransportPath, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, production_line_id, from_location, to_location, transport_time, capacity, properties
		FROM transport_paths WHERE production_line_id = ? ORDER BY rowid`, lineID)
	if err != nil {
		return nil, fmt.Errorf("查询运输路径失败: %w", err)
	}
	defer rows.Close()

	var out []model.TransportPath
	for rows.Next() {
		var (
			p        model.TransportPath
			capacity sql.NullInt64
			props    sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ProductionLineID, &p.FromLocation, &p.ToLocation, &p.TransportTime,
			&capacity, &props); err != nil {
			return nil, err
		}
		p.Capacity = intPtr(capacity)
		if err := scanJSON(props, &p.Properties); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) CreateValueStream(ctx context.Context, vs model.ValueStreamConfig) error {
	if vs.ValuePoints == nil {
		vs.ValuePoints = []model.ValuePoint{}
	}
	if vs.CostPoints == nil {
		vs.CostPoints = []model.CostPoint{}
	}
	values, err := jsonColumn(vs.ValuePoints)
	if err != nil {
		return err
	}
	costs, err := jsonColumn(vs.CostPoints)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO value_stream_configs (id, production_line_id, name, value_points, cost_points)
		VALUES (?, ?, ?, ?, ?)`,
		vs.ID, vs.ProductionLineID, vs.Name, values, costs)
	if err != nil {
		return writeErr(err, "价值流配置 %s", vs.ID)
	}
	return nil
}

// GetValueStream 返回产线的价值流配置，没有配置时返回 nil
func (q *Queries) GetValueStream(ctx context.Context, lineID string) (*model.ValueStreamConfig, error) {
	var (
		vs            model.ValueStreamConfig
		values, costs sql.NullString
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, production_line_id, name, value_points, cost_points
		FROM value_stream_configs WHERE production_line_id = ? ORDER BY rowid LIMIT 1`, lineID,
	).Scan(&vs.ID, &vs.ProductionLineID, &vs.Name, &values, &costs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询价值流配置失败: %w", err)
	}
	if err := scanJSON(values, &vs.ValuePoints); err != nil {
		return nil, err
	}
	if err := scanJSON(costs, &vs.CostPoints); err != nil {
		return nil, err
	}
	return &vs, nil
}
