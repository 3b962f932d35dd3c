package validation

import (
	"fmt"
	"strings"

	"github.com/antonmedv/expr"

	"plant-config/internal/apperr"
	"plant-config/internal/document"
	"plant-config/internal/model"
	"plant-config/internal/topology"
)

var categoryChoices = func() string {
	names := make([]string, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}()

// Validate 校验一份尚未入库的配置文档。
// 缺少 production_line 时只返回这一条错误，其余问题全部累积后一次返回。
func Validate(tree document.Tree) Verdict {
	r := &report{}
	raw, ok := tree["production_line"]
	if !ok || raw == nil {
		r.errorf(apperr.CodeShape, "", "缺少 production_line 字段")
		return r.verdict()
	}
	line, ok := asObject(raw)
	if !ok {
		r.errorf(apperr.CodeShape, "", "production_line 必须是对象")
		return r.verdict()
	}

	c := &docChecker{
		r:            r,
		workstations: newIDSet(),
		buffers:      newIDSet(),
		locations:    newIDSet(),
		pathIDs:      newIDSet(),
		routineIDs:   newIDSet(),
		stepIDs:      newIDSet(),
	}

	if !has(line, "name") {
		r.errorf(apperr.CodeField, "", "产线缺少 name 字段")
	}
	c.stringFields("产线", line, "id", "name", "description")

	workstations := c.list(line, "workstations", "产线")
	for i, v := range workstations {
		c.workstation(i, v)
	}
	buffers := c.list(line, "buffers", "产线")
	for i, v := range buffers {
		c.buffer(i, v)
	}

	// 所有工作站与缓冲区都已收集，引用检查与声明顺序无关
	for i, v := range workstations {
		c.bufferRefs(i, v)
	}
	paths := c.list(line, "transport_paths", "产线")
	for i, v := range paths {
		c.transportPath(i, v)
	}

	for i, v := range c.list(tree, "routines", "") {
		c.routine(i, v)
	}

	if has(tree, "value_stream") {
		c.valueStream(tree["value_stream"])
	}

	c.connectivity(paths)
	return r.verdict()
}

type docChecker struct {
	r            *report
	workstations *idSet
	buffers      *idSet
	locations    *idSet
	// 路径、工艺路线、步骤各自一张表，记录 ID 在表内唯一
	pathIDs    *idSet
	routineIDs *idSet
	stepIDs    *idSet
}

func (c *docChecker) list(m map[string]any, key, entity string) []any {
	l, ok := listField(m, key)
	if !ok {
		c.r.errorf(apperr.CodeField, entity, "%s 必须是列表", key)
	}
	return l
}

// declare 登记位置 id，工作站与缓冲区共享同一命名空间
func (c *docChecker) declare(prefix string, m map[string]any, into *idSet) {
	if !has(m, "id") {
		return
	}
	id, ok := refString(m, "id")
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "id 必须是非空字符串")
		return
	}
	if !c.locations.add(id) {
		c.r.errorf(apperr.CodeUniqueness, prefix, "id '%s' 重复", id)
		return
	}
	into.add(id)
}

// recordID 可选的记录 ID，为空时导入生成，非空时在所属表内不能重复
func (c *docChecker) recordID(prefix string, m map[string]any, seen *idSet) {
	if !has(m, "id") {
		return
	}
	id, ok := asString(m["id"])
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "id 必须是字符串")
		return
	}
	if id != "" && !seen.add(id) {
		c.r.errorf(apperr.CodeUniqueness, prefix, "id '%s' 重复", id)
	}
}

// stringFields 字段存在时必须是字符串
func (c *docChecker) stringFields(prefix string, m map[string]any, keys ...string) {
	for _, key := range keys {
		if !has(m, key) {
			continue
		}
		if _, ok := asString(m[key]); !ok {
			c.r.errorf(apperr.CodeField, prefix, "%s 必须是字符串", key)
		}
	}
}

func (c *docChecker) properties(prefix string, m map[string]any) {
	if !has(m, "properties") {
		return
	}
	if _, ok := asObject(m["properties"]); !ok {
		c.r.errorf(apperr.CodeField, prefix, "properties 必须是对象")
	}
}

func (c *docChecker) position(prefix string, m map[string]any) {
	if !has(m, "position") {
		return
	}
	pos, ok := asObject(m["position"])
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "position 必须是对象")
		return
	}
	for _, key := range []string{"x", "y"} {
		if !has(pos, key) {
			continue
		}
		if _, ok := asNumber(pos[key]); !ok {
			c.r.errorf(apperr.CodeField, prefix, "position.%s 必须是数字", key)
		}
	}
}

func (c *docChecker) positiveInt(prefix string, m map[string]any, key string) {
	if !has(m, key) {
		return
	}
	if n, ok := asInt(m[key]); !ok || n <= 0 {
		c.r.errorf(apperr.CodeField, prefix, "%s 必须为正整数", key)
	}
}

func (c *docChecker) workstation(i int, v any) {
	prefix := fmt.Sprintf("工作站[%d]", i)
	ws, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "必须是对象")
		return
	}
	c.declare(prefix, ws, c.workstations)

	if !has(ws, "name") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 name 字段")
	}
	c.stringFields(prefix, ws, "name")
	if !has(ws, "type") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 type 字段")
	} else if t, _ := asString(ws["type"]); !model.Category(t).Valid() {
		c.r.errorf(apperr.CodeField, prefix, "type 值无效，必须是: %s", categoryChoices)
	}

	if !has(ws, "processing_time") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 processing_time 字段")
	} else {
		c.processingTime(prefix, ws["processing_time"])
	}

	c.positiveInt(prefix, ws, "capacity")

	if has(ws, "status") {
		if s, _ := asString(ws["status"]); !model.WorkstationStatus(s).Valid() {
			c.r.errorf(apperr.CodeField, prefix, "status 值无效，必须是: idle, processing, breakdown, maintenance")
		}
	}
	c.position(prefix, ws)
	c.properties(prefix, ws)
}

func (c *docChecker) processingTime(prefix string, v any) {
	m, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "processing_time 必须是对象")
		return
	}
	var pt model.ProcessingTime
	if t, ok := asString(m["type"]); ok {
		pt.Type = model.DistributionType(t)
	}
	fields := []struct {
		key string
		dst **float64
	}{
		{"value", &pt.Value}, {"min", &pt.Min}, {"max", &pt.Max}, {"mean", &pt.Mean}, {"std", &pt.Std},
	}
	for _, f := range fields {
		if !has(m, f.key) {
			continue
		}
		n, ok := asNumber(m[f.key])
		if !ok {
			c.r.errorf(apperr.CodeField, prefix, "processing_time.%s 必须是数字", f.key)
			return
		}
		*f.dst = &n
	}
	for _, p := range pt.Problems() {
		c.r.errorf(apperr.CodeField, prefix, "%s", p)
	}
}

func (c *docChecker) buffer(i int, v any) {
	prefix := fmt.Sprintf("缓冲区[%d]", i)
	buf, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "必须是对象")
		return
	}
	c.declare(prefix, buf, c.buffers)

	if !has(buf, "name") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 name 字段")
	}
	c.stringFields(prefix, buf, "name", "location")
	c.position(prefix, buf)
	c.properties(prefix, buf)
	capacity, capOK := 0, false
	if !has(buf, "capacity") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 capacity 字段")
	} else if n, ok := asInt(buf["capacity"]); !ok || n <= 0 {
		c.r.errorf(apperr.CodeField, prefix, "capacity 必须为正整数")
	} else {
		capacity, capOK = n, true
	}

	if has(buf, "current_level") {
		level, ok := asInt(buf["current_level"])
		switch {
		case !ok:
			c.r.errorf(apperr.CodeField, prefix, "current_level 必须是整数")
		case level < 0:
			c.r.errorf(apperr.CodeField, prefix, "current_level 不能为负数")
		case capOK && level > capacity:
			c.r.errorf(apperr.CodeField, prefix, "current_level 不能超过 capacity")
		}
	}
}

func (c *docChecker) bufferRefs(i int, v any) {
	ws, ok := asObject(v)
	if !ok {
		return
	}
	prefix := fmt.Sprintf("工作站[%d]", i)
	for _, key := range []string{"input_buffer_id", "output_buffer_id"} {
		if !has(ws, key) {
			continue
		}
		id, ok := refString(ws, key)
		if !ok {
			c.r.errorf(apperr.CodeField, prefix, "%s 必须是非空字符串", key)
			continue
		}
		if !c.buffers.has(id) {
			c.r.errorf(apperr.CodeReference, prefix, "%s '%s' 引用的缓冲区不存在", key, id)
		}
	}
}

func (c *docChecker) location(prefix string, m map[string]any, key string, required bool) {
	if !has(m, key) {
		if required {
			c.r.errorf(apperr.CodeField, prefix, "缺少 %s 字段", key)
		}
		return
	}
	id, _ := asString(m[key])
	if !c.locations.has(id) {
		c.r.errorf(apperr.CodeReference, prefix, "%s '%v' 引用的位置不存在", key, m[key])
	}
}

func (c *docChecker) transportPath(i int, v any) {
	prefix := fmt.Sprintf("运输路径[%d]", i)
	path, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "必须是对象")
		return
	}
	c.recordID(prefix, path, c.pathIDs)
	c.location(prefix, path, "from_location", true)
	c.location(prefix, path, "to_location", true)

	if !has(path, "transport_time") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 transport_time 字段")
	} else if t, ok := asNumber(path["transport_time"]); !ok || t <= 0 {
		c.r.errorf(apperr.CodeField, prefix, "transport_time 必须为正数")
	}
	c.positiveInt(prefix, path, "capacity")
	c.properties(prefix, path)
}

func (c *docChecker) routine(i int, v any) {
	prefix := fmt.Sprintf("Routine[%d]", i)
	routine, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "必须是对象")
		return
	}
	if !has(routine, "name") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 name 字段")
	}
	if !has(routine, "material_type") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 material_type 字段")
	}
	c.recordID(prefix, routine, c.routineIDs)
	c.stringFields(prefix, routine, "name", "material_type", "description")
	c.location(prefix, routine, "start_location", false)
	c.location(prefix, routine, "end_location", false)

	name, _ := asString(routine["name"])
	seen := make(map[int]bool)
	var nodes []stepNode
	for j, sv := range c.list(routine, "steps", prefix) {
		node, ok := c.step(prefix, j, sv)
		if !ok {
			continue
		}
		if seen[node.stepID] {
			c.r.errorf(apperr.CodeUniqueness, fmt.Sprintf("%s.步骤[%d]", prefix, j), "step_id %d 在 Routine '%s' 中重复", node.stepID, name)
			continue
		}
		seen[node.stepID] = true
		nodes = append(nodes, node)
	}

	c.flow(prefix, routine, nodes, seen)
}

// stepNode 步骤中与流程顺序有关的部分
type stepNode struct {
	entity  string
	stepID  int
	targets []stepTarget
}

type stepTarget struct {
	field  string
	stepID int
}

func (c *docChecker) step(routinePrefix string, j int, v any) (stepNode, bool) {
	prefix := fmt.Sprintf("%s.步骤[%d]", routinePrefix, j)
	step, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "必须是对象")
		return stepNode{}, false
	}
	node := stepNode{entity: prefix}
	c.recordID(prefix, step, c.stepIDs)
	idOK := false
	if !has(step, "step_id") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 step_id 字段")
	} else if node.stepID, idOK = asInt(step["step_id"]); !idOK {
		c.r.errorf(apperr.CodeField, prefix, "step_id 必须是整数")
	}

	if !has(step, "operation") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 operation 字段")
	} else if op, _ := asString(step["operation"]); !model.Category(op).Valid() {
		c.r.errorf(apperr.CodeField, prefix, "operation 值无效，必须是: %s", categoryChoices)
	}

	if has(step, "parallel") {
		if _, ok := step["parallel"].(bool); !ok {
			c.r.errorf(apperr.CodeField, prefix, "parallel 必须是布尔值")
		}
	}
	if truthy(step["parallel"]) {
		c.parallelStep(prefix, step)
	} else {
		c.simpleStep(prefix, step)
	}

	for _, key := range []string{"processing_time", "value_amount"} {
		if has(step, key) {
			if _, ok := asNumber(step[key]); !ok {
				c.r.errorf(apperr.CodeField, prefix, "%s 必须是数字", key)
			}
		}
	}
	if has(step, "value_added") {
		if _, ok := step["value_added"].(bool); !ok {
			c.r.errorf(apperr.CodeField, prefix, "value_added 必须是布尔值")
		}
	}
	c.position(prefix, step)
	if truthy(step["value_added"]) && !has(step, "value_amount") {
		c.r.errorf(apperr.CodeField, prefix, "value_added 为 true 时需要 value_amount")
	}

	node.targets = append(node.targets, c.stepRef(prefix, "next_step", step["next_step"])...)
	if has(step, "conditions") {
		node.targets = append(node.targets, c.conditions(prefix, step["conditions"])...)
	}
	return node, idOK
}

func (c *docChecker) simpleStep(prefix string, step map[string]any) {
	// 非并行步骤不使用分支与汇合方式，但字段类型仍须正确
	if has(step, "branches") {
		if _, ok := asList(step["branches"]); !ok {
			c.r.errorf(apperr.CodeField, prefix, "branches 必须是列表")
		}
	}
	c.stringFields(prefix, step, "merge_condition")
	if !has(step, "workstation_id") {
		c.r.errorf(apperr.CodeField, prefix, "非并行步骤需要 workstation_id")
		return
	}
	id, _ := asString(step["workstation_id"])
	if !c.workstations.has(id) {
		c.r.errorf(apperr.CodeReference, prefix, "workstation_id '%v' 引用的工作站不存在", step["workstation_id"])
	}
}

func (c *docChecker) parallelStep(prefix string, step map[string]any) {
	c.stringFields(prefix, step, "workstation_id")
	branches, _ := asList(step["branches"])
	if len(branches) == 0 {
		c.r.errorf(apperr.CodeField, prefix, "并行步骤需要 branches 字段")
	}
	for k, bv := range branches {
		bp := fmt.Sprintf("%s.分支[%d]", prefix, k)
		branch, ok := asObject(bv)
		if !ok {
			c.r.errorf(apperr.CodeField, bp, "必须是对象")
			continue
		}
		if !has(branch, "workstation_id") {
			c.r.errorf(apperr.CodeField, bp, "缺少 workstation_id")
		} else if id, _ := asString(branch["workstation_id"]); !c.workstations.has(id) {
			c.r.errorf(apperr.CodeReference, bp, "workstation_id '%v' 引用的工作站不存在", branch["workstation_id"])
		}
		if has(branch, "processing_time") {
			if _, ok := asNumber(branch["processing_time"]); !ok {
				c.r.errorf(apperr.CodeField, bp, "processing_time 必须是数字")
			}
		}
	}
	if has(step, "merge_condition") {
		if m, _ := asString(step["merge_condition"]); !model.MergeCondition(m).Valid() {
			c.r.errorf(apperr.CodeField, prefix, "merge_condition 值无效，必须是: all_complete, any_complete")
		}
	}
}

func (c *docChecker) conditions(prefix string, v any) []stepTarget {
	cond, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "conditions 必须是对象")
		return nil
	}
	typ, _ := asString(cond["type"])
	switch {
	case !has(cond, "type"):
		c.r.errorf(apperr.CodeField, prefix, "conditions 缺少 type 字段")
	case !model.ConditionType(typ).Valid():
		c.r.errorf(apperr.CodeField, prefix, "conditions.type 值无效，必须是: quality_check, quantity_check")
	}

	if has(cond, "pass_rate") {
		rate, ok := asNumber(cond["pass_rate"])
		switch {
		case model.ConditionType(typ) == model.ConditionQualityCheck && (!ok || rate < 0 || rate > 1):
			c.r.errorf(apperr.CodeField, prefix, "pass_rate 必须在 0-1 之间")
		case !ok:
			c.r.errorf(apperr.CodeField, prefix, "pass_rate 必须是数字")
		}
	}

	if has(cond, "condition_params") {
		params, ok := asObject(cond["condition_params"])
		if !ok {
			c.r.errorf(apperr.CodeField, prefix, "condition_params 必须是对象")
		} else if has(params, "expression") {
			c.expression(prefix, params["expression"])
		}
	}

	targets := c.stepRef(prefix, "pass_route", cond["pass_route"])
	return append(targets, c.stepRef(prefix, "fail_route", cond["fail_route"])...)
}

// expression 条件表达式必须能编译为布尔表达式，变量在运行时才提供
func (c *docChecker) expression(prefix string, v any) {
	rule, ok := asString(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "condition_params.expression 必须是字符串")
		return
	}
	if _, err := expr.Compile(rule, expr.AllowUndefinedVariables(), expr.AsBool()); err != nil {
		c.r.errorf(apperr.CodeField, prefix, "condition_params.expression 无法编译: %v", err)
	}
}

// stepRef 解析对其他步骤的引用；非数字的引用不参与流程检查
func (c *docChecker) stepRef(prefix, field string, v any) []stepTarget {
	if v == nil {
		return nil
	}
	if n, ok := asInt(v); ok {
		return []stepTarget{{field: field, stepID: n}}
	}
	s, ok := asString(v)
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "%s 必须是字符串或整数", field)
		return nil
	}
	if n, ok := model.StepRef(s).StepID(); ok {
		return []stepTarget{{field: field, stepID: n}}
	}
	return nil
}

// flow 检查步骤引用与连线，并比较两种流程表示
func (c *docChecker) flow(prefix string, routine map[string]any, nodes []stepNode, stepIDs map[int]bool) {
	flowNodes := make([]model.FlowNode, 0, len(nodes))
	for _, n := range nodes {
		fn := model.FlowNode{StepID: n.stepID}
		for _, t := range n.targets {
			if !stepIDs[t.stepID] {
				c.r.warnf(apperr.CodeReference, n.entity, "%s 引用的步骤 %d 不存在", t.field, t.stepID)
				continue
			}
			fn.Targets = append(fn.Targets, t.stepID)
		}
		flowNodes = append(flowNodes, fn)
	}

	var links []model.FlowEdge
	for k, lv := range c.list(routine, "links", prefix) {
		lp := fmt.Sprintf("%s.连线[%d]", prefix, k)
		link, ok := asObject(lv)
		if !ok {
			c.r.errorf(apperr.CodeField, lp, "必须是对象")
			continue
		}
		from, okFrom := c.linkEnd(lp, link, "from_step_id", stepIDs)
		to, okTo := c.linkEnd(lp, link, "to_step_id", stepIDs)
		if okFrom && okTo {
			links = append(links, model.FlowEdge{From: from, To: to})
		}
	}
	if len(links) == 0 {
		return
	}
	onlySeq, onlyLinks := model.Divergence(model.SequenceEdges(flowNodes), links)
	for _, e := range onlySeq {
		c.r.warnf(apperr.CodeReference, prefix, "步骤顺序中的流转 %s 没有对应的连线", e)
	}
	for _, e := range onlyLinks {
		c.r.warnf(apperr.CodeReference, prefix, "连线 %s 不在步骤顺序中", e)
	}
}

func (c *docChecker) linkEnd(prefix string, link map[string]any, key string, stepIDs map[int]bool) (int, bool) {
	if !has(link, key) {
		c.r.errorf(apperr.CodeField, prefix, "缺少 %s 字段", key)
		return 0, false
	}
	id, ok := asInt(link[key])
	if !ok {
		c.r.errorf(apperr.CodeField, prefix, "%s 必须是整数", key)
		return 0, false
	}
	if !stepIDs[id] {
		c.r.errorf(apperr.CodeReference, prefix, "%s %d 引用的步骤不存在", key, id)
		return 0, false
	}
	return id, true
}

func (c *docChecker) valueStream(v any) {
	vs, ok := asObject(v)
	if !ok {
		c.r.errorf(apperr.CodeField, "价值流", "必须是对象")
		return
	}
	c.stringFields("价值流", vs, "id", "name")
	for i, pv := range c.list(vs, "value_points", "价值流") {
		prefix := fmt.Sprintf("价值点[%d]", i)
		vp, ok := asObject(pv)
		if !ok {
			c.r.errorf(apperr.CodeField, prefix, "必须是对象")
			continue
		}
		c.anchor(prefix, vp)
		if !has(vp, "value_added") {
			c.r.errorf(apperr.CodeField, prefix, "缺少 value_added")
		} else if _, ok := asNumber(vp["value_added"]); !ok {
			c.r.errorf(apperr.CodeField, prefix, "value_added 必须是数字")
		}
		c.stringFields(prefix, vp, "description")
	}
	for i, cv := range c.list(vs, "cost_points", "价值流") {
		prefix := fmt.Sprintf("成本点[%d]", i)
		cp, ok := asObject(cv)
		if !ok {
			c.r.errorf(apperr.CodeField, prefix, "必须是对象")
			continue
		}
		c.anchor(prefix, cp)
		if !has(cp, "cost_per_unit") {
			c.r.errorf(apperr.CodeField, prefix, "缺少 cost_per_unit")
		} else if _, ok := asNumber(cp["cost_per_unit"]); !ok {
			c.r.errorf(apperr.CodeField, prefix, "cost_per_unit 必须是数字")
		}
		if !has(cp, "cost_type") {
			c.r.errorf(apperr.CodeField, prefix, "缺少 cost_type")
		}
		c.stringFields(prefix, cp, "cost_type", "description")
	}
}

// anchor 价值点与成本点必须挂在已声明的工作站上
func (c *docChecker) anchor(prefix string, m map[string]any) {
	if !has(m, "workstation_id") {
		c.r.errorf(apperr.CodeField, prefix, "缺少 workstation_id")
		return
	}
	if id, _ := asString(m["workstation_id"]); !c.workstations.has(id) {
		c.r.errorf(apperr.CodeReference, prefix, "workstation_id '%v' 引用的工作站不存在", m["workstation_id"])
	}
}

// connectivity 没有任何运输路径连接的位置只产生警告
func (c *docChecker) connectivity(paths []any) {
	var edges []topology.Edge
	for _, pv := range paths {
		path, ok := asObject(pv)
		if !ok {
			continue
		}
		from, okFrom := asString(path["from_location"])
		to, okTo := asString(path["to_location"])
		if okFrom && okTo {
			edges = append(edges, topology.Edge{From: from, To: to})
		}
	}
	for _, loc := range topology.Build(edges).Isolated(c.locations.order) {
		c.r.warnf(apperr.CodeReference, "", "位置 '%s' 没有任何运输路径连接", loc)
	}
}
