package logstream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenflow/internal/ir"
)

func cmd(key int64) ir.Record {
	return ir.NewCommand(key, ir.IntentCancel, ir.ProcessInstanceRecord{ProcessInstanceKey: key})
}

func TestMemoryLogAssignsPositions(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()

	last, err := l.LastPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	out, err := l.Append(ctx, cmd(1), cmd(2))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].Position)
	assert.Equal(t, int64(2), out[1].Position)

	out, err = l.Append(ctx, cmd(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out[0].Position)

	last, err = l.LastPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}

func TestMemoryLogReadFrom(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	_, err := l.Append(ctx, cmd(1), cmd(2), cmd(3), cmd(4))
	require.NoError(t, err)

	recs, err := l.ReadFrom(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].Position)
	assert.Equal(t, int64(3), recs[1].Position)

	recs, err = l.ReadFrom(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = l.ReadFrom(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryLogClosed(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	require.NoError(t, l.Close())

	_, err := l.Append(ctx, cmd(1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.ReadFrom(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryLogHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryLog().Append(ctx, cmd(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryLogFromRecords(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryLog()
	_, err := src.Append(ctx, cmd(1), cmd(2))
	require.NoError(t, err)

	l := NewMemoryLogFrom(src.Records())
	out, err := l.Append(ctx, cmd(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out[0].Position)
}

func TestMemoryLogConcurrentAppendsAreContiguous(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			out, err := l.Append(ctx, cmd(int64(i)), cmd(int64(i)))
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, out[0].Position+1, out[1].Position, "batch positions are contiguous")
		}(i)
	}
	wg.Wait()

	recs := l.Records()
	require.Len(t, recs, 2*writers)
	for i, r := range recs {
		assert.Equal(t, int64(i+1), r.Position)
	}
}

func TestReaderFollowsAppends(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	_, err := l.Append(ctx, cmd(1), cmd(2))
	require.NoError(t, err)

	r := NewReader(l, 0)
	r.batchSize = 1

	rec, ok, err := r.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), rec.Position)

	rec, ok, err = r.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), rec.Position)

	_, ok, err = r.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "caught up")

	_, err = l.Append(ctx, cmd(3))
	require.NoError(t, err)
	rec, ok, err = r.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), rec.Position)
	assert.Equal(t, int64(4), r.Position())

	r.Seek(2)
	rec, _, _ = r.Next(ctx)
	assert.Equal(t, int64(2), rec.Position)
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	for i := 0; i < DefaultBatchSize+5; i++ {
		_, err := l.Append(ctx, cmd(int64(i)))
		require.NoError(t, err)
	}

	all, err := ReadAll(ctx, l)
	require.NoError(t, err)
	assert.Len(t, all, DefaultBatchSize+5)
}
