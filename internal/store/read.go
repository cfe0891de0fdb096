package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/queryir"
	"github.com/roach88/tokenflow/internal/querysql"
)

const selectColumns = `
	SELECT position, source_position, record_key, timestamp, partition_id, record_type, value_type, intent,
	       rejection_type, rejection_reason, request_id, value
	FROM records
`

// ReadFrom returns up to limit records with position >= position, ordered
// by position. A limit <= 0 means no limit.
func (s *Store) ReadFrom(ctx context.Context, position int64, limit int) ([]ir.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE position >= ?
		ORDER BY position ASC
		LIMIT ?
	`, position, limit)
	if err != nil {
		return nil, fmt.Errorf("read from %d: %w", position, err)
	}
	return scanRecords(rows)
}

// LastPosition returns the newest position, or 0 for an empty store.
func (s *Store) LastPosition(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM records`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last position: %w", err)
	}
	return last, nil
}

// ReadBySource returns the records written while processing the command at
// position source, in append order.
func (s *Store) ReadBySource(ctx context.Context, source int64) ([]ir.Record, error) {
	return s.readWhere(ctx, "source_position = ?", source)
}

// ReadByKey returns every record carrying key.
func (s *Store) ReadByKey(ctx context.Context, key int64) ([]ir.Record, error) {
	return s.readWhere(ctx, "record_key = ?", key)
}

// ReadByInstance returns every record that belongs to a process instance:
// element records, jobs, incidents and variables alike.
func (s *Store) ReadByInstance(ctx context.Context, processInstanceKey int64) ([]ir.Record, error) {
	return s.readWhere(ctx, "instance_key = ?", processInstanceKey)
}

// Find returns the records matching q.
func (s *Store) Find(ctx context.Context, q queryir.Select) ([]ir.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	clause, params, err := querysql.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+clause, params...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return scanRecords(rows)
}

// ReadByRequest returns the records tagged with a client request id.
func (s *Store) ReadByRequest(ctx context.Context, requestID string) ([]ir.Record, error) {
	return s.readWhere(ctx, "request_id = ?", requestID)
}

// CountByType returns the number of stored records per record type.
func (s *Store) CountByType(ctx context.Context) (map[ir.RecordType]int, error) {
	rows, err := s.Query(ctx, `SELECT record_type, COUNT(*) FROM records GROUP BY record_type ORDER BY record_type`)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.RecordType]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[ir.RecordType(typ)] = n
	}
	return counts, rows.Err()
}

func (s *Store) readWhere(ctx context.Context, where string, arg any) ([]ir.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE "+where+" ORDER BY position ASC", arg)
	if err != nil {
		return nil, fmt.Errorf("query records where %s: %w", where, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]ir.Record, error) {
	defer rows.Close()

	var records []ir.Record
	for rows.Next() {
		var (
			rec                                   ir.Record
			recordType, valueType, intent, rejTyp string
			value                                 string
		)
		err := rows.Scan(
			&rec.Position,
			&rec.SourceRecordPosition,
			&rec.Key,
			&rec.Timestamp,
			&rec.PartitionID,
			&recordType,
			&valueType,
			&intent,
			&rejTyp,
			&rec.RejectionReason,
			&rec.RequestID,
			&value,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.RecordType = ir.RecordType(recordType)
		rec.ValueType = ir.ValueType(valueType)
		rec.Intent = ir.Intent(intent)
		rec.RejectionType = ir.RejectionType(rejTyp)

		rec.Value, err = unmarshalValue(rec.ValueType, value)
		if err != nil {
			return nil, fmt.Errorf("record at position %d: %w", rec.Position, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
