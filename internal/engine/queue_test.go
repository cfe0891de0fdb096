package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
)

func queued(key int64) request {
	return request{command: ir.NewCommand(key, ir.IntentCancel, ir.ProcessInstanceRecord{ProcessInstanceKey: key})}
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()

	for i := int64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(queued(i)))
	}
	assert.Equal(t, 3, q.Len())

	for i := int64(1); i <= 3; i++ {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, r.command.Key)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRequestQueue_SignalsAvailability(t *testing.T) {
	q := newRequestQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(queued(1))
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	_, ok := q.TryDequeue()
	assert.True(t, ok)
}

func TestRequestQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newRequestQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(queued(1)))
	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue must wake waiters")
	}
}

func TestRequestQueue_ConcurrentEnqueue(t *testing.T) {
	q := newRequestQueue()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			q.Enqueue(queued(int64(i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, q.Len())
}

func TestStepGuard(t *testing.T) {
	g := newStepGuard(2)
	require.NoError(t, g.check(1))
	require.NoError(t, g.check(2))

	err := g.check(3)
	require.Error(t, err)
	assert.True(t, IsStepLimit(err))
	var se *StepLimitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(3), se.Position)

	assert.NoError(t, newStepGuard(0).check(1), "zero disables the guard")
}

func TestErrorHelpers(t *testing.T) {
	rej := reject(ir.RejectionNotFound, "job %d", 7)
	assert.Equal(t, "NOT_FOUND: job 7", rej.Error())
	assert.True(t, IsRejection(rej))

	fatal := &FatalError{Position: 4, Err: rej}
	assert.True(t, IsFatal(fatal))
	assert.ErrorIs(t, fatal, rej)
	assert.False(t, IsFatal(rej))
}
