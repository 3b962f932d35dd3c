package model

// LineSnapshot 某条产线在存储中的完整状态，导出与已存在产线校验共用
type LineSnapshot struct {
	Line           ProductionLine
	Workstations   []Workstation
	Buffers        []Buffer
	TransportPaths []TransportPath
	Routines       []RoutineGraph
	ValueStream    *ValueStreamConfig
}

// WorkstationIDs 本产线工作站 ID 集合
func (s *LineSnapshot) WorkstationIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Workstations))
	for _, ws := range s.Workstations {
		ids[ws.ID] = true
	}
	return ids
}

// BufferIDs 本产线缓冲区 ID 集合
func (s *LineSnapshot) BufferIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Buffers))
	for _, b := range s.Buffers {
		ids[b.ID] = true
	}
	return ids
}

// LocationIDs 工作站 ID 与缓冲区 ID 的并集
func (s *LineSnapshot) LocationIDs() map[string]bool {
	ids := s.WorkstationIDs()
	for id := range s.BufferIDs() {
		ids[id] = true
	}
	return ids
}

// Statistics 导入一条产线时各类记录的数量
type Statistics struct {
	Workstations   int `json:"workstations"`
	Buffers        int `json:"buffers"`
	TransportPaths int `json:"transport_paths"`
	Routines       int `json:"routines"`
	RoutineSteps   int `json:"routine_steps"`
	StepLinks      int `json:"step_links"`
	ValueStreams   int `json:"value_streams"`
}

// Statistics 按快照统计记录数量
func (s *LineSnapshot) Statistics() Statistics {
	st := Statistics{
		Workstations:   len(s.Workstations),
		Buffers:        len(s.Buffers),
		TransportPaths: len(s.TransportPaths),
		Routines:       len(s.Routines),
	}
	for _, g := range s.Routines {
		st.RoutineSteps += len(g.Steps)
		st.StepLinks += len(g.Links)
	}
	if s.ValueStream != nil {
		st.ValueStreams = 1
	}
	return st
}
