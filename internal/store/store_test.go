package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-config/internal/apperr"
	"plant-config/internal/model"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(context.Background(), db)
	require.NoError(t, err)
	return s
}

// seedLine 创建一条带两个步骤和一条连线的产线
func seedLine(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateLine(ctx, model.ProductionLine{ID: "L1", Name: "装配线"}))
	require.NoError(t, s.CreateBuffer(ctx, model.Buffer{ID: "B1", ProductionLineID: "L1", Name: "暂存", Capacity: 5}))
	require.NoError(t, s.CreateWorkstation(ctx, model.Workstation{
		ID: "W1", ProductionLineID: "L1", Name: "车床", Type: model.CategoryProcessing,
		ProcessingTime: model.ProcessingTime{Type: model.DistributionFixed, Value: ptr(10.0)},
		OutputBufferID: "B1", Position: &model.Position{X: 1, Y: 2},
	}))
	require.NoError(t, s.CreateTransportPath(ctx, model.TransportPath{
		ID: "P1", ProductionLineID: "L1", FromLocation: "W1", ToLocation: "B1", TransportTime: 2,
	}))
	require.NoError(t, s.CreateRoutine(ctx, model.Routine{ID: "R1", ProductionLineID: "L1", Name: "齿轮", MaterialType: "gear"}))
	require.NoError(t, s.CreateStep(ctx, model.RoutineStep{
		ID: "S1", RoutineID: "R1", StepID: 1, Operation: model.CategoryProcessing,
		Kind: &model.SimpleStep{WorkstationID: "W1"},
	}))
	require.NoError(t, s.CreateStep(ctx, model.RoutineStep{
		ID: "S2", RoutineID: "R1", StepID: 2, Operation: model.CategoryInspection,
		Kind: &model.ParallelStep{
			Branches:       []model.Branch{{WorkstationID: "W1", ProcessingTime: 3}},
			MergeCondition: model.MergeAnyComplete,
		},
		ValueAdded:  true,
		ValueAmount: ptr(4.5),
		Conditions: &model.Condition{
			Type: model.ConditionQualityCheck, PassRoute: ptr(model.StepRef("3")), PassRate: ptr(0.9),
			Params: map[string]any{"expression": "defects < 2"},
		},
	}))
	require.NoError(t, s.CreateLink(ctx, model.RoutineStepLink{ID: "K1", RoutineID: "R1", FromStepID: "S1", ToStepID: "S2"}))
	require.NoError(t, s.CreateValueStream(ctx, model.ValueStreamConfig{
		ID: "V1", ProductionLineID: "L1", Name: "主价值流",
		CostPoints: []model.CostPoint{{WorkstationID: "W1", CostPerUnit: 1.5, CostType: "labor"}},
	}))
}

func TestLineCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetLine(ctx, "L1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	require.NoError(t, s.CreateLine(ctx, model.ProductionLine{ID: "L1", Name: "a"}))
	err = s.CreateLine(ctx, model.ProductionLine{ID: "L1", Name: "b"})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), err)

	require.NoError(t, s.UpdateLine(ctx, model.ProductionLine{ID: "L1", Name: "c", Description: "d"}))
	got, err := s.GetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, model.ProductionLine{ID: "L1", Name: "c", Description: "d"}, got)

	exists, err := s.LineExists(ctx, "L1")
	require.NoError(t, err)
	assert.True(t, exists)

	lines, err := s.ListLines(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	require.NoError(t, s.DeleteLine(ctx, "L1"))
	assert.True(t, apperr.Is(s.DeleteLine(ctx, "L1"), apperr.CodeNotFound))
}

func TestLoadLine(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)

	snap, err := s.LoadLine(context.Background(), "L1")
	require.NoError(t, err)

	require.Len(t, snap.Workstations, 1)
	ws := snap.Workstations[0]
	assert.Equal(t, model.StatusIdle, ws.Status)
	assert.Equal(t, 1, ws.Capacity)
	assert.Equal(t, 10.0, *ws.ProcessingTime.Value)
	assert.Equal(t, "B1", ws.OutputBufferID)
	assert.Equal(t, &model.Position{X: 1, Y: 2}, ws.Position)

	require.Len(t, snap.Routines, 1)
	g := snap.Routines[0]
	require.Len(t, g.Steps, 2)
	assert.Equal(t, &model.SimpleStep{WorkstationID: "W1"}, g.Steps[0].Kind)

	par, ok := g.Steps[1].Kind.(*model.ParallelStep)
	require.True(t, ok)
	assert.Equal(t, model.MergeAnyComplete, par.MergeCondition)
	assert.Equal(t, 3.0, par.Branches[0].ProcessingTime)
	assert.True(t, g.Steps[1].ValueAdded)
	assert.Equal(t, model.StepRef("3"), *g.Steps[1].Conditions.PassRoute)
	assert.Equal(t, "defects < 2", g.Steps[1].Conditions.Params["expression"])
	assert.Len(t, g.Links, 1)

	require.NotNil(t, snap.ValueStream)
	assert.Empty(t, snap.ValueStream.ValuePoints)
	assert.Equal(t, "labor", snap.ValueStream.CostPoints[0].CostType)
}

func TestDeleteLineCascades(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteLine(ctx, "L1"))

	ws, err := s.ListWorkstations(ctx, "L1")
	require.NoError(t, err)
	assert.Empty(t, ws)
	steps, err := s.ListSteps(ctx, "R1")
	require.NoError(t, err)
	assert.Empty(t, steps)
	links, err := s.ListLinks(ctx, "R1")
	require.NoError(t, err)
	assert.Empty(t, links)
	vs, err := s.GetValueStream(ctx, "L1")
	require.NoError(t, err)
	assert.Nil(t, vs)
}

func TestDeleteStepRemovesLinks(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteStep(ctx, "R1", "S2"))
	links, err := s.ListLinks(ctx, "R1")
	require.NoError(t, err)
	assert.Empty(t, links)

	assert.True(t, apperr.Is(s.DeleteStep(ctx, "R1", "S2"), apperr.CodeNotFound))
}

func TestCreateLinkRequiresSameRoutine(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)
	ctx := context.Background()

	require.NoError(t, s.CreateRoutine(ctx, model.Routine{ID: "R2", ProductionLineID: "L1", Name: "轴", MaterialType: "shaft"}))
	err := s.CreateLink(ctx, model.RoutineStepLink{ID: "K2", RoutineID: "R2", FromStepID: "S1", ToStepID: "S2"})
	assert.True(t, apperr.Is(err, apperr.CodeReference))
}

func TestDuplicateStepIDRejected(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)

	err := s.CreateStep(context.Background(), model.RoutineStep{
		ID: "S3", RoutineID: "R1", StepID: 1, Operation: model.CategoryPackaging, Kind: &model.SimpleStep{},
	})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), err)
}

func TestOrphanRecordRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateBuffer(context.Background(), model.Buffer{ID: "B1", ProductionLineID: "nope", Name: "x", Capacity: 1})
	assert.True(t, apperr.Is(err, apperr.CodeReference), err)
}

func TestSetBufferLevel(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetBufferLevel(ctx, "B1", 5))
	assert.True(t, apperr.Is(s.SetBufferLevel(ctx, "B1", 6), apperr.CodeField))
	assert.True(t, apperr.Is(s.SetBufferLevel(ctx, "B1", -1), apperr.CodeField))
	assert.True(t, apperr.Is(s.SetBufferLevel(ctx, "B9", 1), apperr.CodeNotFound))

	bufs, err := s.ListBuffers(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 5, bufs[0].CurrentLevel)
}

func TestUpdateWorkstationStatus(t *testing.T) {
	s := newTestStore(t)
	seedLine(t, s)
	ctx := context.Background()

	require.NoError(t, s.UpdateWorkstationStatus(ctx, "W1", model.StatusBreakdown))
	assert.True(t, apperr.Is(s.UpdateWorkstationStatus(ctx, "W1", "exploded"), apperr.CodeField))
	assert.True(t, apperr.Is(s.UpdateWorkstationStatus(ctx, "W9", model.StatusIdle), apperr.CodeNotFound))

	ws, err := s.ListWorkstations(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBreakdown, ws[0].Status)
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(q *Queries) error {
		require.NoError(t, q.CreateLine(ctx, model.ProductionLine{ID: "L1", Name: "a"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := s.LineExists(ctx, "L1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTaxonomy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kind := model.TaxonomyMaterial

	require.NoError(t, s.CreateTaxonomy(ctx, kind, model.TaxonomyEntry{ID: "m1", Name: "钢板"}))
	require.NoError(t, s.CreateTaxonomy(ctx, kind, model.TaxonomyEntry{ID: "m2", Name: "铝锭", Description: "原料"}))

	err := s.CreateTaxonomy(ctx, kind, model.TaxonomyEntry{ID: "m3", Name: "钢板"})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), err)

	taken, err := s.TaxonomyNameTaken(ctx, kind, "钢板", "m1")
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = s.TaxonomyNameTaken(ctx, kind, "钢板", "m2")
	require.NoError(t, err)
	assert.True(t, taken)

	err = s.UpdateTaxonomy(ctx, kind, model.TaxonomyEntry{ID: "m2", Name: "钢板"})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	got, err := s.GetTaxonomy(ctx, kind, "m2")
	require.NoError(t, err)
	assert.Equal(t, "原料", got.Description)

	// 不同种类的名称互不影响
	require.NoError(t, s.CreateTaxonomy(ctx, model.TaxonomyOperation, model.TaxonomyEntry{ID: "o1", Name: "钢板"}))

	require.NoError(t, s.DeleteTaxonomy(ctx, kind, "m1"))
	list, err := s.ListTaxonomy(ctx, kind)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m2", list[0].ID)

	_, err = s.ListTaxonomy(ctx, "colors")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
