package configio

import (
	"context"

	"plant-config/internal/apperr"
	"plant-config/internal/document"
	"plant-config/internal/model"
	"plant-config/internal/store"
)

// DefaultValueStreamName 文档未给出价值流名称时使用
const DefaultValueStreamName = "默认价值流"

// importer 在事务内按 产线、工作站、缓冲区、运输路径、工艺路线、价值流 的顺序写入。
// 引用在写入时再核对一次，校验遗漏的悬空引用会使整个事务回滚。
type importer struct {
	q            *store.Queries
	lineID       string
	stats        model.Statistics
	workstations map[string]bool
	buffers      map[string]bool
}

func newImporter(q *store.Queries, lineID string) *importer {
	return &importer{
		q:            q,
		lineID:       lineID,
		workstations: make(map[string]bool),
		buffers:      make(map[string]bool),
	}
}

func orNewID(id, prefix string) string {
	if id != "" {
		return id
	}
	return model.NewID(prefix)
}

func (im *importer) run(ctx context.Context, cfg *document.Config) error {
	doc := cfg.ProductionLine
	if err := im.q.CreateLine(ctx, model.ProductionLine{ID: im.lineID, Name: doc.Name, Description: doc.Description}); err != nil {
		return err
	}

	// 先分配 ID，工作站可以引用文档中后声明的缓冲区
	wsIDs := make([]string, len(doc.Workstations))
	for i, ws := range doc.Workstations {
		wsIDs[i] = orNewID(ws.ID, model.PrefixWorkstation)
		im.workstations[wsIDs[i]] = true
	}
	bufIDs := make([]string, len(doc.Buffers))
	for i, b := range doc.Buffers {
		bufIDs[i] = orNewID(b.ID, model.PrefixBuffer)
		im.buffers[bufIDs[i]] = true
	}

	for i, ws := range doc.Workstations {
		if err := im.workstation(ctx, wsIDs[i], ws); err != nil {
			return err
		}
	}
	for i, b := range doc.Buffers {
		if err := im.buffer(ctx, bufIDs[i], b); err != nil {
			return err
		}
	}
	for _, p := range doc.TransportPaths {
		if err := im.transportPath(ctx, p); err != nil {
			return err
		}
	}
	for _, r := range cfg.Routines {
		if err := im.routine(ctx, r); err != nil {
			return err
		}
	}
	if cfg.ValueStream != nil {
		return im.valueStream(ctx, *cfg.ValueStream)
	}
	return nil
}

func (im *importer) workstation(ctx context.Context, id string, doc document.WorkstationDoc) error {
	for _, ref := range []string{doc.InputBufferID, doc.OutputBufferID} {
		if ref != "" && !im.buffers[ref] {
			return apperr.New(apperr.CodeReference, "工作站 %s 引用的缓冲区 %s 不存在", id, ref)
		}
	}
	capacity := 1
	if doc.Capacity != nil {
		capacity = *doc.Capacity
	}
	err := im.q.CreateWorkstation(ctx, model.Workstation{
		ID:               id,
		ProductionLineID: im.lineID,
		Name:             doc.Name,
		Type:             model.Category(doc.Type),
		Capacity:         capacity,
		ProcessingTime:   doc.ProcessingTime,
		Status:           model.StatusIdle, // 运行状态不由配置导入设置
		InputBufferID:    doc.InputBufferID,
		OutputBufferID:   doc.OutputBufferID,
		Position:         doc.Position,
		Properties:       doc.Properties,
	})
	if err != nil {
		return err
	}
	im.stats.Workstations++
	return nil
}

func (im *importer) buffer(ctx context.Context, id string, doc document.BufferDoc) error {
	level := 0
	if doc.CurrentLevel != nil {
		level = *doc.CurrentLevel
	}
	err := im.q.CreateBuffer(ctx, model.Buffer{
		ID:               id,
		ProductionLineID: im.lineID,
		Name:             doc.Name,
		Capacity:         doc.Capacity,
		CurrentLevel:     level,
		Location:         doc.Location,
		Position:         doc.Position,
		Properties:       doc.Properties,
	})
	if err != nil {
		return err
	}
	im.stats.Buffers++
	return nil
}

func (im *importer) isLocation(id string) bool {
	return im.workstations[id] || im.buffers[id]
}

func (im *importer) transportPath(ctx context.Context, doc document.TransportPathDoc) error {
	id := orNewID(doc.ID, model.PrefixTransportPath)
	for _, loc := range []string{doc.FromLocation, doc.ToLocation} {
		if !im.isLocation(loc) {
			return apperr.New(apperr.CodeReference, "运输路径 %s 引用的位置 %s 不存在", id, loc)
		}
	}
	err := im.q.CreateTransportPath(ctx, model.TransportPath{
		ID:               id,
		ProductionLineID: im.lineID,
		FromLocation:     doc.FromLocation,
		ToLocation:       doc.ToLocation,
		TransportTime:    doc.TransportTime,
		Capacity:         doc.Capacity,
		Properties:       doc.Properties,
	})
	if err != nil {
		return err
	}
	im.stats.TransportPaths++
	return nil
}

func (im *importer) routine(ctx context.Context, doc document.RoutineDoc) error {
	routineID := orNewID(doc.ID, model.PrefixRoutine)
	for _, loc := range []string{doc.StartLocation, doc.EndLocation} {
		if loc != "" && !im.isLocation(loc) {
			return apperr.New(apperr.CodeReference, "工艺路线 %s 引用的位置 %s 不存在", routineID, loc)
		}
	}
	err := im.q.CreateRoutine(ctx, model.Routine{
		ID:               routineID,
		ProductionLineID: im.lineID,
		Name:             doc.Name,
		MaterialType:     doc.MaterialType,
		StartLocation:    doc.StartLocation,
		EndLocation:      doc.EndLocation,
		Description:      doc.Description,
	})
	if err != nil {
		return err
	}
	im.stats.Routines++

	recordIDs := make(map[int]string, len(doc.Steps))
	for _, sd := range doc.Steps {
		step, err := im.step(routineID, sd)
		if err != nil {
			return err
		}
		if err := im.q.CreateStep(ctx, step); err != nil {
			return err
		}
		recordIDs[sd.StepID] = step.ID
		im.stats.RoutineSteps++
	}

	for _, ld := range doc.Links {
		from, okFrom := recordIDs[ld.FromStepID]
		to, okTo := recordIDs[ld.ToStepID]
		if !okFrom || !okTo {
			return apperr.New(apperr.CodeReference, "工艺路线 %s 的连线 %d->%d 引用的步骤不存在", routineID, ld.FromStepID, ld.ToStepID)
		}
		link := model.RoutineStepLink{ID: model.NewID(model.PrefixLink), RoutineID: routineID, FromStepID: from, ToStepID: to}
		if err := im.q.CreateLink(ctx, link); err != nil {
			return err
		}
		im.stats.StepLinks++
	}
	return nil
}

// step 将文档步骤转换为带步骤形态的模型
func (im *importer) step(routineID string, doc document.StepDoc) (model.RoutineStep, error) {
	step := model.RoutineStep{
		ID:             orNewID(doc.ID, model.PrefixStep),
		RoutineID:      routineID,
		StepID:         doc.StepID,
		Operation:      model.Category(doc.Operation),
		ProcessingTime: doc.ProcessingTime,
		ValueAdded:     doc.ValueAdded,
		ValueAmount:    doc.ValueAmount,
		Conditions:     doc.Conditions,
		NextStep:       doc.NextStep,
		Position:       doc.Position,
	}
	if doc.Parallel {
		merge := model.MergeCondition(doc.MergeCondition)
		if merge == "" {
			merge = model.MergeAllComplete
		}
		for _, b := range doc.Branches {
			if !im.workstations[b.WorkstationID] {
				return step, apperr.New(apperr.CodeReference, "步骤 %d 的分支引用的工作站 %s 不存在", doc.StepID, b.WorkstationID)
			}
		}
		step.Kind = &model.ParallelStep{Branches: doc.Branches, MergeCondition: merge}
		return step, nil
	}
	if doc.WorkstationID != "" && !im.workstations[doc.WorkstationID] {
		return step, apperr.New(apperr.CodeReference, "步骤 %d 引用的工作站 %s 不存在", doc.StepID, doc.WorkstationID)
	}
	step.Kind = &model.SimpleStep{WorkstationID: doc.WorkstationID}
	return step, nil
}

func (im *importer) valueStream(ctx context.Context, doc document.ValueStreamDoc) error {
	for _, vp := range doc.ValuePoints {
		if !im.workstations[vp.WorkstationID] {
			return apperr.New(apperr.CodeReference, "价值点引用的工作站 %s 不存在", vp.WorkstationID)
		}
	}
	for _, cp := range doc.CostPoints {
		if !im.workstations[cp.WorkstationID] {
			return apperr.New(apperr.CodeReference, "成本点引用的工作站 %s 不存在", cp.WorkstationID)
		}
	}
	name := doc.Name
	if name == "" {
		name = DefaultValueStreamName
	}
	err := im.q.CreateValueStream(ctx, model.ValueStreamConfig{
		ID:               orNewID(doc.ID, model.PrefixValueStream),
		ProductionLineID: im.lineID,
		Name:             name,
		ValuePoints:      doc.ValuePoints,
		CostPoints:       doc.CostPoints,
	})
	if err != nil {
		return err
	}
	im.stats.ValueStreams++
	return nil
}
