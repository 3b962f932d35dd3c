package validation

import (
	"fmt"

	"plant-config/internal/apperr"
	"plant-config/internal/model"
)

// ValidateLine 校验已持久化的产线，只检查跨实体引用与流程连线。
// 不做连通性检查，连通性只在导入前的文档校验中提示。
func ValidateLine(s *model.LineSnapshot) Verdict {
	r := &report{}
	wsIDs := s.WorkstationIDs()
	bufIDs := s.BufferIDs()
	locIDs := s.LocationIDs()

	for _, ws := range s.Workstations {
		entity := fmt.Sprintf("工作站 '%s'", ws.Name)
		if ws.InputBufferID != "" && !bufIDs[ws.InputBufferID] {
			r.errorf(apperr.CodeReference, entity, "input_buffer_id '%s' 引用不存在", ws.InputBufferID)
		}
		if ws.OutputBufferID != "" && !bufIDs[ws.OutputBufferID] {
			r.errorf(apperr.CodeReference, entity, "output_buffer_id '%s' 引用不存在", ws.OutputBufferID)
		}
	}

	for _, p := range s.TransportPaths {
		entity := fmt.Sprintf("运输路径 '%s'", p.ID)
		if !locIDs[p.FromLocation] {
			r.errorf(apperr.CodeReference, entity, "from_location '%s' 引用不存在", p.FromLocation)
		}
		if !locIDs[p.ToLocation] {
			r.errorf(apperr.CodeReference, entity, "to_location '%s' 引用不存在", p.ToLocation)
		}
	}

	for _, g := range s.Routines {
		entity := fmt.Sprintf("Routine '%s'", g.Routine.Name)
		if g.Routine.StartLocation != "" && !locIDs[g.Routine.StartLocation] {
			r.errorf(apperr.CodeReference, entity, "start_location '%s' 引用不存在", g.Routine.StartLocation)
		}
		if g.Routine.EndLocation != "" && !locIDs[g.Routine.EndLocation] {
			r.errorf(apperr.CodeReference, entity, "end_location '%s' 引用不存在", g.Routine.EndLocation)
		}
		for _, step := range g.Steps {
			checkStepWorkstations(r, entity, step, wsIDs)
		}

		_, dangling := g.LinkEdges()
		for _, l := range dangling {
			r.errorf(apperr.CodeReference, entity, "连线 '%s' 的端点不属于该 Routine", l.ID)
		}
		onlySeq, onlyLinks := g.Divergence()
		for _, e := range onlySeq {
			r.warnf(apperr.CodeReference, entity, "步骤顺序中的流转 %s 没有对应的连线", e)
		}
		for _, e := range onlyLinks {
			r.warnf(apperr.CodeReference, entity, "连线 %s 不在步骤顺序中", e)
		}
	}
	return r.verdict()
}

// checkStepWorkstations 步骤实际使用的每个工作站都必须属于本产线
func checkStepWorkstations(r *report, entity string, step model.RoutineStep, wsIDs map[string]bool) {
	for i, p := range step.Participants() {
		if wsIDs[p.WorkstationID] {
			continue
		}
		if step.IsParallel() {
			r.errorf(apperr.CodeReference, entity, "步骤 %d 分支[%d] 的 workstation_id '%s' 引用不存在", step.StepID, i, p.WorkstationID)
		} else {
			r.errorf(apperr.CodeReference, entity, "步骤 %d 的 workstation_id '%s' 引用不存在", step.StepID, p.WorkstationID)
		}
	}
}
