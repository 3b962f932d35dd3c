package configio

import (
	"plant-config/internal/document"
	"plant-config/internal/model"
)

// FromSnapshot 将持久化的产线状态还原为配置文档，结构与导入时相同
func FromSnapshot(snap *model.LineSnapshot) *document.Config {
	line := document.LineDoc{
		ID:             snap.Line.ID,
		Name:           snap.Line.Name,
		Description:    snap.Line.Description,
		Workstations:   []document.WorkstationDoc{},
		Buffers:        []document.BufferDoc{},
		TransportPaths: []document.TransportPathDoc{},
	}
	for _, ws := range snap.Workstations {
		capacity := ws.Capacity
		line.Workstations = append(line.Workstations, document.WorkstationDoc{
			ID:             ws.ID,
			Name:           ws.Name,
			Type:           string(ws.Type),
			Capacity:       &capacity,
			ProcessingTime: ws.ProcessingTime,
			Status:         string(ws.Status),
			InputBufferID:  ws.InputBufferID,
			OutputBufferID: ws.OutputBufferID,
			Position:       ws.Position,
			Properties:     ws.Properties,
		})
	}
	for _, b := range snap.Buffers {
		level := b.CurrentLevel
		line.Buffers = append(line.Buffers, document.BufferDoc{
			ID:           b.ID,
			Name:         b.Name,
			Capacity:     b.Capacity,
			CurrentLevel: &level,
			Location:     b.Location,
			Position:     b.Position,
			Properties:   b.Properties,
		})
	}
	for _, p := range snap.TransportPaths {
		line.TransportPaths = append(line.TransportPaths, document.TransportPathDoc{
			ID:            p.ID,
			FromLocation:  p.FromLocation,
			ToLocation:    p.ToLocation,
			TransportTime: p.TransportTime,
			Capacity:      p.Capacity,
			Properties:    p.Properties,
		})
	}

	cfg := &document.Config{ProductionLine: line, Routines: []document.RoutineDoc{}}
	for _, g := range snap.Routines {
		cfg.Routines = append(cfg.Routines, routineDoc(g))
	}
	if vs := snap.ValueStream; vs != nil {
		cfg.ValueStream = &document.ValueStreamDoc{
			ID:          vs.ID,
			Name:        vs.Name,
			ValuePoints: vs.ValuePoints,
			CostPoints:  vs.CostPoints,
		}
	}
	return cfg
}

func routineDoc(g model.RoutineGraph) document.RoutineDoc {
	g.SortSteps()
	doc := document.RoutineDoc{
		ID:            g.Routine.ID,
		Name:          g.Routine.Name,
		MaterialType:  g.Routine.MaterialType,
		StartLocation: g.Routine.StartLocation,
		EndLocation:   g.Routine.EndLocation,
		Description:   g.Routine.Description,
		Steps:         []document.StepDoc{},
	}
	for _, s := range g.Steps {
		sd := document.StepDoc{
			ID:             s.ID,
			StepID:         s.StepID,
			Operation:      string(s.Operation),
			ProcessingTime: s.ProcessingTime,
			ValueAdded:     s.ValueAdded,
			ValueAmount:    s.ValueAmount,
			Conditions:     s.Conditions,
			NextStep:       s.NextStep,
			Position:       s.Position,
		}
		switch k := s.Kind.(type) {
		case *model.SimpleStep:
			sd.WorkstationID = k.WorkstationID
		case *model.ParallelStep:
			sd.Parallel = true
			sd.Branches = k.Branches
			sd.MergeCondition = string(k.MergeCondition)
		}
		doc.Steps = append(doc.Steps, sd)
	}
	edges, _ := g.LinkEdges()
	for _, e := range edges {
		doc.Links = append(doc.Links, document.LinkDoc{FromStepID: e.From, ToStepID: e.To})
	}
	return doc
}
