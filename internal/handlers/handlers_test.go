package handlers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-config/internal/event"
	"plant-config/internal/journal"
	"plant-config/internal/metrics"
	"plant-config/internal/model"
	"plant-config/internal/web"
)

func TestHandlersFollowLineLifecycle(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	hub := web.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	jr, err := journal.Open(filepath.Join(t.TempDir(), "changes.jsonl"))
	require.NoError(t, err)
	defer jr.Close()

	bus := event.NewBus()
	lt := web.NewLineTracker(hub)
	RegisterEventHandlers(bus, lt, jr, logger)

	before := testutil.ToFloat64(metrics.ImportsTotal.WithLabelValues("success"))
	stepsBefore := testutil.ToFloat64(metrics.ImportedRecordsTotal.WithLabelValues("routine_step"))

	bus.Publish(event.Event{Type: event.LineImported, LineID: "L1", LineName: "装配线", Stats: model.Statistics{RoutineSteps: 3}})
	bus.Wait()
	bus.Publish(event.Event{Type: event.LineValidated, LineID: "L1", Valid: false, Errors: 2})
	bus.Wait()

	snap := lt.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "装配线", snap.Lines[0].Name)
	assert.Equal(t, 3, snap.Lines[0].Stats.RoutineSteps)
	require.NotNil(t, snap.Lines[0].Valid)
	assert.False(t, *snap.Lines[0].Valid)
	assert.Equal(t, 2, snap.Lines[0].Errors)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ImportsTotal.WithLabelValues("success")))
	assert.Equal(t, stepsBefore+3, testutil.ToFloat64(metrics.ImportedRecordsTotal.WithLabelValues("routine_step")))

	bus.Publish(event.Event{Type: event.LineDeleted, LineID: "L1"})
	bus.Wait()
	assert.Empty(t, lt.Snapshot().Lines)

	live, err := jr.LiveLines()
	require.NoError(t, err)
	assert.Empty(t, live)
	entries, err := jr.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
