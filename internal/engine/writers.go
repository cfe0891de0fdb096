package engine

import (
	"github.com/roach88/tokenflow/internal/ir"
)

// writers collects the records produced while processing one command.
//
// Events are applied to the state the moment they are written so that the
// rest of the processor sees their effect. Follow-up commands are only
// buffered; they are processed after the batch has been appended.
type writers struct {
	e       *Engine
	source  ir.Record
	records []ir.Record
	applied int
}

func newWriters(e *Engine, source ir.Record) *writers {
	return &writers{e: e, source: source}
}

func (w *writers) record(rt ir.RecordType, key int64, intent ir.Intent, value ir.RecordValue) ir.Record {
	return ir.Record{
		Position:             ir.NoPosition,
		SourceRecordPosition: w.source.Position,
		Key:                  key,
		Timestamp:            w.e.clock.Now().UnixMilli(),
		PartitionID:          w.e.partitionID,
		RecordType:           rt,
		ValueType:            value.ValueType(),
		Intent:               intent,
		RequestID:            w.source.RequestID,
		Value:                value,
	}
}

// event writes and applies an event. An applier error means the state and
// the decision disagree; it is returned unchanged and halts the partition.
func (w *writers) event(key int64, intent ir.Intent, value ir.RecordValue) error {
	rec := w.record(ir.RecordEvent, key, intent, value)
	if err := w.e.appliers.Apply(w.e.state, rec); err != nil {
		return err
	}
	w.applied++
	w.records = append(w.records, rec)
	return nil
}

// command buffers a follow-up command.
func (w *writers) command(key int64, intent ir.Intent, value ir.RecordValue) {
	w.records = append(w.records, w.record(ir.RecordCommand, key, intent, value))
}

// reject replaces the output with a rejection of the source command.
func (w *writers) reject(rej *RejectionError) {
	w.records = []ir.Record{{
		Position:             ir.NoPosition,
		SourceRecordPosition: w.source.Position,
		Key:                  w.source.Key,
		Timestamp:            w.e.clock.Now().UnixMilli(),
		PartitionID:          w.e.partitionID,
		RecordType:           ir.RecordCommandRejection,
		ValueType:            w.source.ValueType,
		Intent:               w.source.Intent,
		RejectionType:        rej.Type,
		RejectionReason:      rej.Reason,
		RequestID:            w.source.RequestID,
		Value:                w.source.Value,
	}}
}

func (w *writers) nextKey() int64 {
	return w.e.state.Keys().Next()
}
