package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/tokenflow/internal/boltlog"
	"github.com/roach88/tokenflow/internal/engine"
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
	"github.com/roach88/tokenflow/internal/partition"
	"github.com/roach88/tokenflow/internal/queryir"
	"github.com/roach88/tokenflow/internal/store"
)

// recordFinder is implemented by the durable logs that answer record
// queries.
type recordFinder interface {
	Find(ctx context.Context, q queryir.Select) ([]ir.Record, error)
}

var (
	_ recordFinder = (*store.Store)(nil)
	_ recordFinder = (*boltlog.Log)(nil)
)

// partitionPath returns the log file of one partition. A single partition
// uses path as is; otherwise the partition id goes before the extension:
// tokenflow.db → tokenflow.p2.db.
func partitionPath(path string, id int32, count int) string {
	if count == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.p%d%s", strings.TrimSuffix(path, ext), id, ext)
}

// openLog opens the record log of one partition with the configured backend.
func openLog(ctx context.Context, opts *RootOptions, id int32) (logstream.Log, error) {
	path := partitionPath(opts.Database, id, opts.Partitions)
	switch opts.Backend {
	case BackendBolt:
		return boltlog.Open(ctx, path)
	default:
		return store.Open(path)
	}
}

// openSession opens every partition log and recovers the engines. The
// caller must Close the returned manager.
func openSession(ctx context.Context, opts *RootOptions) (*partition.Manager, error) {
	m, err := partition.New(opts.Partitions, func(id int32) (logstream.Log, error) {
		return openLog(ctx, opts, id)
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open record log", err)
	}
	if err := m.Recover(ctx); err != nil {
		_ = m.Close()
		return nil, WrapExitError(ExitCommandError, "failed to recover state", err)
	}
	return m, nil
}

// findRecords opens the log of one partition and runs q against it.
func findRecords(ctx context.Context, opts *RootOptions, id int32, q queryir.Select) ([]ir.Record, error) {
	if id < 1 || int(id) > opts.Partitions {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("partition %d is not configured", id))
	}
	recordLog, err := openLog(ctx, opts, id)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open record log", err)
	}
	defer recordLog.Close()

	finder, ok := recordLog.(recordFinder)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("backend %s cannot query records", opts.Backend))
	}
	records, err := finder.Find(ctx, q)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read records", err)
	}
	return records, nil
}

// engineFor returns the engine owning key.
func engineFor(m *partition.Manager, key int64) (*engine.Engine, error) {
	e, ok := m.Engine(ir.PartitionOf(key))
	if !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("key %d belongs to partition %d, which is not configured", key, ir.PartitionOf(key)))
	}
	return e, nil
}
