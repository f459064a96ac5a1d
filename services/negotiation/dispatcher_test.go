package negotiation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"meetsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	mu      sync.Mutex
	calls   int32
	active  int32
	overlap int32
	perKey  map[string]int
}

func (e *countingEngine) HandleInboundEvent(_ context.Context, ev models.InboundEvent) (*StepResult, error) {
	atomic.AddInt32(&e.calls, 1)

	e.mu.Lock()
	if e.perKey == nil {
		e.perKey = map[string]int{}
	}
	key := ev.ThreadID
	e.perKey[key]++
	e.mu.Unlock()

	if atomic.AddInt32(&e.active, 1) > 1 {
		atomic.AddInt32(&e.overlap, 1)
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&e.active, -1)

	return &StepResult{State: models.StateCollecting, Suspended: true}, nil
}

func TestDispatchDropsDuplicates(t *testing.T) {
	engine := &countingEngine{}
	d := NewDispatcher(engine, NewMemoryDeduper())

	ev := models.InboundEvent{EventID: "e1", ThreadID: "T1", Text: "hi"}
	res, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, res)

	res, err = d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.calls))
}

func TestDispatchSerializesPerThread(t *testing.T) {
	engine := &countingEngine{}
	d := NewDispatcher(engine, NewMemoryDeduper())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := models.InboundEvent{
				EventID:  "e" + string(rune('a'+i)),
				ThreadID: "T1",
			}
			_, err := d.Dispatch(context.Background(), ev)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(16), atomic.LoadInt32(&engine.calls))
	assert.Zero(t, atomic.LoadInt32(&engine.overlap), "same-thread events must not run concurrently")

	// The lock map does not leak entries after the burst.
	d.mu.Lock()
	assert.Empty(t, d.locks)
	d.mu.Unlock()
}

func TestDispatchIndependentThreadsProceed(t *testing.T) {
	engine := &countingEngine{}
	d := NewDispatcher(engine, NewMemoryDeduper())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := models.InboundEvent{
				EventID:  "ev-" + string(rune('a'+i)),
				ThreadID: "thread-" + string(rune('a'+i)),
			}
			_, err := d.Dispatch(context.Background(), ev)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Len(t, engine.perKey, 8)
	for _, n := range engine.perKey {
		assert.Equal(t, 1, n)
	}
}
