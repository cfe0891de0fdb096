// Package boltlog is a record log stored in a single bbolt file.
//
// Layout, below the root bucket "tokenflow":
//
//	records    position (8 bytes BE) -> record JSON
//	instances  instance key (8 bytes BE) + position (8 bytes BE) -> empty
//	meta       "last" -> last assigned position (8 bytes BE)
//
// Every Append is one bbolt write transaction, so a batch is either stored
// completely with contiguous positions or not at all.
package boltlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
	"github.com/roach88/tokenflow/internal/queryir"
)

var (
	rootBucketKey      = []byte("tokenflow")
	recordsBucketKey   = []byte("records")
	instancesBucketKey = []byte("instances")
	metaBucketKey      = []byte("meta")
	lastPositionKey    = []byte("last")
)

// DefaultOpenTimeout bounds how long Open waits for the file lock.
const DefaultOpenTimeout = 5 * time.Second

// Log is a logstream.Log backed by bbolt.
type Log struct {
	db *bbolt.DB

	mu     sync.RWMutex
	closed bool
}

var _ logstream.Log = (*Log)(nil)

// Open opens or creates the log file at path.
//
// If the deadline of ctx is sooner than DefaultOpenTimeout it bounds the wait
// for the file lock instead.
func Open(ctx context.Context, path string) (*Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := *bbolt.DefaultOptions
	opts.Timeout = DefaultOpenTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < opts.Timeout {
			if d <= 0 {
				return nil, context.DeadlineExceeded
			}
			opts.Timeout = d
		}
	}

	db, err := bbolt.Open(path, os.FileMode(0o600), &opts)
	if err != nil {
		if err.Error() == "timeout" {
			err = context.DeadlineExceeded
		}
		return nil, fmt.Errorf("open bolt log %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) (err error) {
		defer recoverErr(&err)
		mustCreateBucket(tx, rootBucketKey, recordsBucketKey)
		mustCreateBucket(tx, rootBucketKey, instancesBucketKey)
		mustCreateBucket(tx, rootBucketKey, metaBucketKey)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt log %s: %w", path, err)
	}
	return &Log{db: db}, nil
}

// Append stores records as one batch.
func (l *Log) Append(ctx context.Context, records ...ir.Record) ([]ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, logstream.ErrClosed
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]ir.Record, len(records))
	err := l.db.Update(func(tx *bbolt.Tx) (err error) {
		defer recoverErr(&err)

		items := bucket(tx, rootBucketKey, recordsBucketKey)
		instances := bucket(tx, rootBucketKey, instancesBucketKey)
		meta := bucket(tx, rootBucketKey, metaBucketKey)

		last := unmarshalInt64(meta.Get(lastPositionKey))
		for i, rec := range records {
			rec.Position = last + int64(i) + 1
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record %d of batch: %w", i, err)
			}
			mustPut(items, marshalInt64(rec.Position), data)
			if key := rec.InstanceKey(); key != ir.NoKey {
				mustPut(instances, indexKey(key, rec.Position), nil)
			}
			out[i] = rec
		}
		mustPut(meta, lastPositionKey, marshalInt64(last+int64(len(records))))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append: %w", err)
	}
	return out, nil
}

// ReadFrom returns up to limit records with Position >= position.
func (l *Log) ReadFrom(ctx context.Context, position int64, limit int) ([]ir.Record, error) {
	var out []ir.Record
	err := l.view(ctx, func(tx *bbolt.Tx) error {
		c := bucket(tx, rootBucketKey, recordsBucketKey).Cursor()
		for k, v := c.Seek(marshalInt64(max(position, 0))); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) == limit {
				break
			}
			rec, err := decode(v)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// LastPosition returns the newest position, or 0 for an empty log.
func (l *Log) LastPosition(ctx context.Context) (int64, error) {
	var last int64
	err := l.view(ctx, func(tx *bbolt.Tx) (err error) {
		defer recoverErr(&err)
		last = unmarshalInt64(bucket(tx, rootBucketKey, metaBucketKey).Get(lastPositionKey))
		return nil
	})
	return last, err
}

// ReadByInstance returns the records of one process instance in position
// order.
func (l *Log) ReadByInstance(ctx context.Context, processInstanceKey int64) ([]ir.Record, error) {
	var out []ir.Record
	err := l.view(ctx, func(tx *bbolt.Tx) (err error) {
		defer recoverErr(&err)
		items := bucket(tx, rootBucketKey, recordsBucketKey)
		prefix := marshalInt64(processInstanceKey)
		c := bucket(tx, rootBucketKey, instancesBucketKey).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			rec, err := decode(items.Get(k[8:]))
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Find returns the records matching q. A query on one process instance
// uses the instance index; any other query scans the records bucket in
// position order, or backwards for a descending query.
func (l *Log) Find(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	if eq, ok := q.Filter.(queryir.Equals); ok && eq.Field == queryir.FieldInstanceKey {
		if key, ok := eq.Value.(ir.IRInt); ok && int64(key) > 0 {
			records, err := l.ReadByInstance(ctx, int64(key))
			if err != nil {
				return nil, err
			}
			return queryir.Filter(q, records), nil
		}
	}
	var out []ir.Record
	err := l.view(ctx, func(tx *bbolt.Tx) error {
		c := bucket(tx, rootBucketKey, recordsBucketKey).Cursor()
		first, next := c.First, c.Next
		if q.Descending {
			first, next = c.Last, c.Prev
		}
		for k, v := first(); k != nil; k, v = next() {
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
			rec, err := decode(v)
			if err != nil {
				return err
			}
			if queryir.Match(q.Filter, rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

// Close releases the file lock. Further operations return
// logstream.ErrClosed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func (l *Log) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return logstream.ErrClosed
	}
	return l.db.View(fn)
}

func decode(data []byte) (ir.Record, error) {
	if data == nil {
		return ir.Record{}, fmt.Errorf("index refers to a missing record")
	}
	var rec ir.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return ir.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
