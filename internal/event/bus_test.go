package event

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishRunsEverySubscriber(t *testing.T) {
	bus := NewBus()
	var imported, deleted atomic.Int32

	bus.Subscribe(LineImported, func(e Event) {
		assert.Equal(t, "L1", e.LineID)
		assert.False(t, e.At.IsZero())
		imported.Add(1)
	})
	bus.Subscribe(LineImported, func(Event) { imported.Add(1) })
	bus.Subscribe(LineDeleted, func(Event) { deleted.Add(1) })

	bus.Publish(Event{Type: LineImported, LineID: "L1"})
	bus.Publish(Event{Type: LineExported, LineID: "L1"})
	bus.Wait()

	assert.Equal(t, int32(2), imported.Load())
	assert.Equal(t, int32(0), deleted.Load())
}

func TestPublishAssignsIncreasingSeq(t *testing.T) {
	bus := NewBus()
	seqs := make(chan uint64, 3)
	bus.Subscribe(LineImported, func(e Event) { seqs <- e.Seq })

	for i := 0; i < 3; i++ {
		bus.Publish(Event{Type: LineImported, Seq: 99})
	}
	bus.Wait()
	close(seqs)

	var got []uint64
	for s := range seqs {
		got = append(got, s)
	}
	assert.ElementsMatch(t, []uint64{1, 2, 3}, got)
}
