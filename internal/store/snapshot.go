package store

import (
	"context"

	"plant-config/internal/model"
)

// LoadLine 读取一条产线的完整状态，步骤按 step_id 排序
func (q *Queries) LoadLine(ctx context.Context, id string) (*model.LineSnapshot, error) {
	line, err := q.GetLine(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := &model.LineSnapshot{Line: line}
	if snap.Workstations, err = q.ListWorkstations(ctx, id); err != nil {
		return nil, err
	}
	if snap.Buffers, err = q.ListBuffers(ctx, id); err != nil {
		return nil, err
	}
	if snap.TransportPaths, err = q.ListTransportPaths(ctx, id); err != nil {
		return nil, err
	}
	routines, err := q.ListRoutines(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, r := range routines {
		g := model.RoutineGraph{Routine: r}
		if g.Steps, err = q.ListSteps(ctx, r.ID); err != nil {
			return nil, err
		}
		if g.Links, err = q.ListLinks(ctx, r.ID); err != nil {
			return nil, err
		}
		snap.Routines = append(snap.Routines, g)
	}
	if snap.ValueStream, err = q.GetValueStream(ctx, id); err != nil {
		return nil, err
	}
	return snap, nil
}
