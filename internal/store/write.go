package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/multierr"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
)

// Append inserts records as one batch.
//
// The batch is written in a single transaction: either every record is
// stored with contiguous positions after the current last position, or
// none is. The returned records carry their assigned positions.
func (s *Store) Append(ctx context.Context, records ...ir.Record) ([]ir.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("append: %w", logstream.ErrClosed)
	}
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append: begin: %w", err)
	}

	out, err := appendTx(ctx, tx, records)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("append: %w", err), tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append: commit: %w", err)
	}
	return out, nil
}

func appendTx(ctx context.Context, tx *sql.Tx, records []ir.Record) ([]ir.Record, error) {
	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM records`).Scan(&last); err != nil {
		return nil, fmt.Errorf("last position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
		(position, source_position, record_key, timestamp, partition_id, record_type, value_type, intent,
		 rejection_type, rejection_reason, request_id, instance_key, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	out := make([]ir.Record, len(records))
	for i, rec := range records {
		rec.Position = last + int64(i) + 1
		valueJSON, err := marshalValue(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("record %d of batch: %w", i, err)
		}
		_, err = stmt.ExecContext(ctx,
			rec.Position,
			rec.SourceRecordPosition,
			rec.Key,
			rec.Timestamp,
			rec.PartitionID,
			string(rec.RecordType),
			string(rec.ValueType),
			string(rec.Intent),
			string(rec.RejectionType),
			rec.RejectionReason,
			rec.RequestID,
			rec.InstanceKey(),
			valueJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("insert record at position %d: %w", rec.Position, err)
		}
		out[i] = rec
	}
	return out, nil
}
