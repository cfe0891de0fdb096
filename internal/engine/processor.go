package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
	"github.com/roach88/tokenflow/internal/state"
)

type processorKey struct {
	valueType ir.ValueType
	intent    ir.Intent
}

// processor decides the outcome of one command. It writes through w and
// returns a *RejectionError to refuse the command; any other error halts
// the partition.
type processor func(ctx context.Context, w *writers, cmd ir.Record) error

func (e *Engine) registerProcessors() map[processorKey]processor {
	return map[processorKey]processor{
		{ir.ValueDeployment, ir.IntentCreate}:              e.processDeploymentCreate,
		{ir.ValueProcessInstanceCreation, ir.IntentCreate}: e.processCreateInstance,

		{ir.ValueProcessInstance, ir.IntentActivateElement}:  e.processActivateElement,
		{ir.ValueProcessInstance, ir.IntentCompleteElement}:  e.processCompleteElement,
		{ir.ValueProcessInstance, ir.IntentTerminateElement}: e.processTerminateElement,
		{ir.ValueProcessInstance, ir.IntentCancel}:           e.processCancel,

		{ir.ValueJob, ir.IntentCreate}:        e.processJobCreate,
		{ir.ValueJob, ir.IntentComplete}:      e.processJobComplete,
		{ir.ValueJob, ir.IntentFail}:          e.processJobFail,
		{ir.ValueJob, ir.IntentUpdateRetries}: e.processJobUpdateRetries,

		{ir.ValueIncident, ir.IntentCreate}:  e.processIncidentCreate,
		{ir.ValueIncident, ir.IntentResolve}: e.processIncidentResolve,

		{ir.ValueVariableDocument, ir.IntentUpdate}: e.processVariableDocumentUpdate,
	}
}

// Drain processes every unprocessed command in the log, including the
// follow-up commands processing appends, until the log is caught up.
// It returns the number of commands processed.
func (e *Engine) Drain(ctx context.Context) (int, error) {
	if err := e.ensureRecovered(ctx); err != nil {
		return 0, err
	}

	guard := newStepGuard(e.maxSteps)
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		rec, ok, err := e.reader.Next(ctx)
		if err != nil {
			return processed, fmt.Errorf("read log: %w", err)
		}
		if !ok {
			return processed, nil
		}
		if !rec.IsCommand() || rec.Position <= e.lastProcessed {
			continue
		}
		if err := guard.check(rec.Position); err != nil {
			e.reader.Seek(rec.Position)
			slog.Warn("drain stopped by step limit",
				"partition", e.partitionID,
				"steps", processed,
				"position", rec.Position,
			)
			return processed, err
		}
		if err := e.processCommand(ctx, rec); err != nil {
			return processed, err
		}
		processed++
	}
}

// processCommand runs the processor for cmd and appends its output as one
// batch.
func (e *Engine) processCommand(ctx context.Context, cmd ir.Record) error {
	ctx, span := e.tracer.Start(ctx, "tokenflow.process",
		trace.WithAttributes(
			attribute.String("tokenflow.value_type", string(cmd.ValueType)),
			attribute.String("tokenflow.intent", string(cmd.Intent)),
			attribute.Int64("tokenflow.key", cmd.Key),
			attribute.Int64("tokenflow.position", cmd.Position),
		))
	defer span.End()

	w := newWriters(e, cmd)
	var err error
	if p, ok := e.processors[processorKey{cmd.ValueType, cmd.Intent}]; ok {
		err = p(ctx, w, cmd)
	} else {
		err = reject(ir.RejectionInvalidArgument, "no processor for %s %s", cmd.ValueType, cmd.Intent)
	}

	var rej *RejectionError
	switch {
	case err == nil:
	case errors.As(err, &rej):
		if w.applied > 0 {
			return e.halt(span, cmd, fmt.Errorf("command rejected after %d events were applied: %w", w.applied, err))
		}
		w.reject(rej)
		span.SetAttributes(attribute.String("tokenflow.rejection", string(rej.Type)))
		slog.Debug("command rejected",
			"partition", e.partitionID,
			"position", cmd.Position,
			"value_type", cmd.ValueType,
			"intent", cmd.Intent,
			"rejection", rej.Type,
			"reason", rej.Reason,
		)
	default:
		return e.halt(span, cmd, err)
	}

	if _, err := e.log.Append(ctx, w.records...); err != nil {
		if w.applied > 0 {
			return e.halt(span, cmd, fmt.Errorf("append follow-up records: %w", err))
		}
		// Nothing was applied, so the command can be picked up again.
		e.reader.Seek(cmd.Position)
		span.RecordError(err)
		return fmt.Errorf("append rejection for position %d: %w", cmd.Position, err)
	}
	e.lastProcessed = cmd.Position

	slog.Debug("command processed",
		"partition", e.partitionID,
		"position", cmd.Position,
		"value_type", cmd.ValueType,
		"intent", cmd.Intent,
		"key", cmd.Key,
		"records", len(w.records),
	)
	return nil
}

func (e *Engine) halt(span trace.Span, cmd ir.Record, err error) error {
	fatal := &FatalError{Position: cmd.Position, Err: err}
	e.halted = fatal
	span.RecordError(fatal)
	span.SetStatus(codes.Error, "partition halted")
	slog.Error("partition halted",
		"partition", e.partitionID,
		"position", cmd.Position,
		"value_type", cmd.ValueType,
		"intent", cmd.Intent,
		"error", err,
	)
	return fatal
}

// Halted returns the error that halted the partition, or nil.
func (e *Engine) Halted() error {
	return e.halted
}

// Recover rebuilds the state by applying every record of the log and
// positions the engine after the last processed command. Replaying the
// same log always yields the same state.
func (e *Engine) Recover(ctx context.Context) error {
	e.recovered = false
	e.halted = nil
	e.state = state.New(e.partitionID)

	var lastSource int64
	applied := 0
	r := logstream.NewReader(e.log, 1)
	for {
		rec, ok, err := r.Next(ctx)
		if err != nil {
			return fmt.Errorf("recover: %w", err)
		}
		if !ok {
			break
		}
		if err := e.appliers.Apply(e.state, rec); err != nil {
			e.halted = &FatalError{Position: rec.Position, Err: err}
			slog.Error("replay halted", "partition", e.partitionID, "position", rec.Position, "error", err)
			return e.halted
		}
		if rec.SourceRecordPosition > lastSource {
			lastSource = rec.SourceRecordPosition
		}
		applied++
	}

	e.lastProcessed = lastSource
	e.reader.Seek(lastSource + 1)
	e.recovered = true
	slog.Info("state recovered",
		"partition", e.partitionID,
		"records", applied,
		"last_processed", lastSource,
	)
	return nil
}

func (e *Engine) ensureRecovered(ctx context.Context) error {
	if e.halted != nil {
		return e.halted
	}
	if e.recovered {
		return nil
	}
	return e.Recover(ctx)
}
