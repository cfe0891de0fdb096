// Package partition runs several engines side by side and routes commands
// to the one that owns them.
//
// Every partition has its own log, state and key space. A key carries the id
// of the partition that issued it, so commands addressing an existing entity
// go to that partition. Deployments are distributed to every partition so
// that any partition can create instances. New instances without a
// definition key are spread round-robin.
package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tokenflow/internal/engine"
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
)

// LogFactory opens the log of one partition.
type LogFactory func(partitionID int32) (logstream.Log, error)

// Manager owns one engine per partition.
type Manager struct {
	ids     []int32
	engines map[int32]*engine.Engine
	next    atomic.Uint64

	// mu serializes Execute calls per manager; Run mode uses the engines'
	// own queues instead.
	mu sync.Mutex
}

// New opens count partitions numbered 1..count. opts are applied to every
// engine after its partition id.
func New(count int, logs LogFactory, opts ...engine.Option) (*Manager, error) {
	if count < 1 || count > int(ir.MaxPartitionID) {
		return nil, fmt.Errorf("partition count must be between 1 and %d, got %d", ir.MaxPartitionID, count)
	}
	m := &Manager{engines: make(map[int32]*engine.Engine, count)}
	for i := 1; i <= count; i++ {
		id := int32(i)
		log, err := logs(id)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("open log of partition %d: %w", id, err), m.Close())
		}
		m.ids = append(m.ids, id)
		m.engines[id] = engine.New(log, append([]engine.Option{engine.WithPartitionID(id)}, opts...)...)
	}
	return m, nil
}

// Partitions returns the partition ids in ascending order.
func (m *Manager) Partitions() []int32 {
	return append([]int32(nil), m.ids...)
}

// Engine returns the engine of a partition.
func (m *Manager) Engine(partitionID int32) (*engine.Engine, bool) {
	e, ok := m.engines[partitionID]
	return e, ok
}

// Route returns the partitions a command is delivered to.
func (m *Manager) Route(cmd ir.Record) ([]int32, error) {
	switch {
	case cmd.ValueType == ir.ValueDeployment:
		return m.Partitions(), nil

	case cmd.ValueType == ir.ValueProcessInstanceCreation:
		if v, ok := cmd.Value.(ir.ProcessInstanceCreationRecord); ok && v.ProcessDefinitionKey > 0 {
			return m.owner(v.ProcessDefinitionKey)
		}
		n := m.next.Add(1) - 1
		return []int32{m.ids[n%uint64(len(m.ids))]}, nil

	case cmd.ValueType == ir.ValueVariableDocument:
		if v, ok := cmd.Value.(ir.VariableDocumentRecord); ok && v.ScopeKey > 0 {
			return m.owner(v.ScopeKey)
		}
		return nil, fmt.Errorf("route %s %s: no scope key", cmd.ValueType, cmd.Intent)

	default:
		if cmd.Key <= 0 {
			return nil, fmt.Errorf("route %s %s: no key", cmd.ValueType, cmd.Intent)
		}
		return m.owner(cmd.Key)
	}
}

func (m *Manager) owner(key int64) ([]int32, error) {
	id := ir.PartitionOf(key)
	if _, ok := m.engines[id]; !ok {
		return nil, fmt.Errorf("key %d belongs to unknown partition %d", key, id)
	}
	return []int32{id}, nil
}

// Execute routes cmd and processes it synchronously on every target
// partition. It must not be mixed with Run.
//
// For a distributed deployment the result of the first partition is
// returned and the errors of all partitions are combined.
func (m *Manager) Execute(ctx context.Context, cmd ir.Record) (engine.Result, error) {
	targets, err := m.Route(cmd)
	if err != nil {
		return engine.Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		first engine.Result
		errs  error
	)
	for i, id := range targets {
		res, err := m.engines[id].Execute(ctx, cmd)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("partition %d: %w", id, err))
		}
		if i == 0 {
			first = res
		}
	}
	return first, errs
}

// Recover rebuilds the state of every partition concurrently.
func (m *Manager) Recover(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range m.ids {
		e := m.engines[id]
		g.Go(func() error {
			if err := e.Recover(ctx); err != nil {
				return fmt.Errorf("recover partition %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Run runs every partition's processing loop until ctx is cancelled, Stop is
// called, or one partition halts. A halted partition stops the others.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range m.ids {
		e := m.engines[id]
		g.Go(func() error {
			err := e.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("partition stopped", "partition", id, "error", err)
				return fmt.Errorf("partition %d: %w", id, err)
			}
			return err
		})
	}
	return g.Wait()
}

// Submit routes cmd to the running partitions and waits for the results.
func (m *Manager) Submit(ctx context.Context, cmd ir.Record) (engine.Result, error) {
	targets, err := m.Route(cmd)
	if err != nil {
		return engine.Result{}, err
	}
	if len(targets) == 1 {
		return m.engines[targets[0]].Submit(ctx, cmd)
	}

	results := make([]engine.Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range targets {
		g.Go(func() error {
			res, err := m.engines[id].Submit(gctx, cmd)
			if err != nil {
				return fmt.Errorf("partition %d: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	err = g.Wait()
	return results[0], err
}

// Stop asks every running partition to finish its queue and return.
func (m *Manager) Stop() {
	for _, id := range m.ids {
		m.engines[id].Stop()
	}
}

// Close closes every partition's log.
func (m *Manager) Close() error {
	var err error
	for _, id := range m.ids {
		err = multierr.Append(err, m.engines[id].Log().Close())
	}
	return err
}
