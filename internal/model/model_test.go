package model

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewID(t *testing.T) {
	id := NewID(PrefixLine)
	assert.Regexp(t, regexp.MustCompile(`^line_[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, NewID(PrefixLine))
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("welding").Valid())
}

func TestProcessingTimeProblems(t *testing.T) {
	cases := []struct {
		name string
		pt   ProcessingTime
		ok   bool
	}{
		{"fixed ok", ProcessingTime{Type: DistributionFixed, Value: ptr(10.0)}, true},
		{"fixed zero", ProcessingTime{Type: DistributionFixed, Value: ptr(0.0)}, false},
		{"fixed missing", ProcessingTime{Type: DistributionFixed}, false},
		{"uniform ok", ProcessingTime{Type: DistributionUniform, Min: ptr(1.0), Max: ptr(2.0)}, true},
		{"uniform equal", ProcessingTime{Type: DistributionUniform, Min: ptr(2.0), Max: ptr(2.0)}, false},
		{"uniform missing max", ProcessingTime{Type: DistributionUniform, Min: ptr(2.0)}, false},
		{"normal ok", ProcessingTime{Type: DistributionNormal, Mean: ptr(5.0), Std: ptr(0.5)}, true},
		{"normal zero std", ProcessingTime{Type: DistributionNormal, Mean: ptr(5.0), Std: ptr(0.0)}, false},
		{"missing type", ProcessingTime{}, false},
		{"unknown type", ProcessingTime{Type: "poisson"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problems := tc.pt.Problems()
			if tc.ok {
				assert.Empty(t, problems)
			} else {
				assert.Len(t, problems, 1)
			}
		})
	}
}

func TestParticipants(t *testing.T) {
	simple := RoutineStep{Kind: &SimpleStep{WorkstationID: "W1"}, ProcessingTime: ptr(3.0)}
	require.Len(t, simple.Participants(), 1)
	assert.Equal(t, "W1", simple.Participants()[0].WorkstationID)
	assert.False(t, simple.IsParallel())

	unbound := RoutineStep{Kind: &SimpleStep{}}
	assert.Empty(t, unbound.Participants())

	parallel := RoutineStep{Kind: &ParallelStep{
		Branches:       []Branch{{WorkstationID: "W1", ProcessingTime: 2}, {WorkstationID: "W2", ProcessingTime: 4}},
		MergeCondition: MergeAllComplete,
	}}
	assert.True(t, parallel.IsParallel())
	got := parallel.Participants()
	require.Len(t, got, 2)
	assert.Equal(t, "W2", got[1].WorkstationID)
	assert.Equal(t, 4.0, *got[1].ProcessingTime)
}

func TestSequenceEdges(t *testing.T) {
	nodes := []FlowNode{
		{StepID: 3},
		{StepID: 1},
		{StepID: 2, Targets: []int{1, 3}},
	}
	edges := SequenceEdges(nodes)
	assert.Equal(t, []FlowEdge{{1, 2}, {2, 1}, {2, 3}}, edges)
}

func TestRoutineGraphDivergence(t *testing.T) {
	g := RoutineGraph{
		Steps: []RoutineStep{
			{ID: "s1", StepID: 1, Kind: &SimpleStep{}},
			{ID: "s2", StepID: 2, Kind: &SimpleStep{}},
			{ID: "s3", StepID: 3, Kind: &SimpleStep{}},
		},
	}

	seq, links := g.Divergence()
	assert.Empty(t, seq, "no links means nothing to compare")
	assert.Empty(t, links)

	g.Links = []RoutineStepLink{
		{ID: "l1", FromStepID: "s1", ToStepID: "s2"},
		{ID: "l2", FromStepID: "s2", ToStepID: "s3"},
	}
	seq, links = g.Divergence()
	assert.Empty(t, seq)
	assert.Empty(t, links)

	g.Links[1] = RoutineStepLink{ID: "l2", FromStepID: "s1", ToStepID: "s3"}
	seq, links = g.Divergence()
	assert.Equal(t, []FlowEdge{{2, 3}}, seq)
	assert.Equal(t, []FlowEdge{{1, 3}}, links)
}

func TestLinkEdgesDangling(t *testing.T) {
	g := RoutineGraph{
		Steps: []RoutineStep{{ID: "s1", StepID: 1, Kind: &SimpleStep{}}},
		Links: []RoutineStepLink{{ID: "l1", FromStepID: "s1", ToStepID: "other"}},
	}
	edges, dangling := g.LinkEdges()
	assert.Empty(t, edges)
	require.Len(t, dangling, 1)
	assert.Equal(t, "l1", dangling[0].ID)
}

func TestStepTargets(t *testing.T) {
	s := RoutineStep{
		NextStep:   ptr(StepRef("4")),
		Conditions: &Condition{Type: ConditionQualityCheck, PassRoute: ptr(StepRef(" 5 ")), FailRoute: ptr(StepRef("rework"))},
	}
	assert.Equal(t, []int{4, 5}, s.Targets())
}

func TestStepRefUnmarshal(t *testing.T) {
	var refs []StepRef
	require.NoError(t, json.Unmarshal([]byte(`["3", 4]`), &refs))
	assert.Equal(t, []StepRef{"3", "4"}, refs)

	var bad StepRef
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &bad))
}

func TestBufferLevelAllowed(t *testing.T) {
	b := Buffer{Capacity: 5}
	assert.True(t, b.LevelAllowed(5))
	assert.True(t, b.LevelAllowed(0))
	assert.False(t, b.LevelAllowed(6))
	assert.False(t, b.LevelAllowed(-1))
}
