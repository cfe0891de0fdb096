package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/tokenflow/internal/appliers"
	"github.com/roach88/tokenflow/internal/expression"
	"github.com/roach88/tokenflow/internal/ir"
	"github.com/roach88/tokenflow/internal/logstream"
	"github.com/roach88/tokenflow/internal/state"
)

// Engine is the single-writer stream processor of one partition.
//
// External commands are appended to the log. The engine reads every
// command it has not processed yet, decides what happens, and appends the
// resulting events, follow-up commands or rejection as one batch whose
// records carry the command's position as their source. Events are applied
// to the state as they are written. Processing continues until no
// unprocessed command is left.
//
// Thread-safety model:
//   - Enqueue(), Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Execute(), Drain(), Recover(): only when Run is not running
type Engine struct {
	log        logstream.Log
	state      *state.State
	appliers   *appliers.Registry
	eval       *expression.Evaluator
	clock      clock.Clock
	tracer     trace.Tracer
	requestIDs RequestIDGenerator
	queue      *requestQueue
	processors map[processorKey]processor

	partitionID int32
	maxSteps    int
	cacheTTL    time.Duration

	reader        *logstream.Reader
	lastProcessed int64
	recovered     bool
	halted        error
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps bounds the number of commands a single drain processes.
// Use WithMaxSteps(0) to disable the guard.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithClock sets the clock used for record timestamps. Timestamps are
// informational; no decision depends on them.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTracer sets the tracer that records a span per processed command.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithPartitionID sets the partition the engine owns. Keys it generates
// encode this id.
func WithPartitionID(id int32) Option {
	return func(e *Engine) {
		e.partitionID = id
	}
}

// WithExpressionCacheTTL sets how long compiled expressions stay cached.
func WithExpressionCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.cacheTTL = ttl
	}
}

// WithRequestIDGenerator sets the generator for external command request
// ids.
func WithRequestIDGenerator(g RequestIDGenerator) Option {
	return func(e *Engine) {
		e.requestIDs = g
	}
}

// New creates an engine over log. Call Recover before processing when the
// log may already hold records.
func New(log logstream.Log, opts ...Option) *Engine {
	e := &Engine{
		log:         log,
		appliers:    appliers.New(),
		clock:       clock.New(),
		tracer:      noop.NewTracerProvider().Tracer("tokenflow/engine"),
		requestIDs:  UUIDv7Generator{},
		queue:       newRequestQueue(),
		partitionID: 1,
		maxSteps:    DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.state = state.New(e.partitionID)
	var evalOpts []expression.Option
	if e.cacheTTL > 0 {
		evalOpts = append(evalOpts, expression.WithCacheTTL(e.cacheTTL))
	}
	e.eval = expression.NewEvaluator(evalOpts...)
	e.processors = e.registerProcessors()
	e.reader = logstream.NewReader(log, 1)
	return e
}

// State returns the read-only view of the partition state.
func (e *Engine) State() state.Reader {
	return e.state
}

// Snapshot captures the partition state for comparison.
func (e *Engine) Snapshot() state.Snapshot {
	return e.state.Snapshot()
}

// PartitionID returns the partition the engine owns.
func (e *Engine) PartitionID() int32 {
	return e.partitionID
}

// Log returns the engine's log.
func (e *Engine) Log() logstream.Log {
	return e.log
}

// LastProcessedPosition returns the position of the last processed
// command.
func (e *Engine) LastProcessedPosition() int64 {
	return e.lastProcessed
}

// Result describes the outcome of one external command: the command as
// appended and every record appended while draining after it.
type Result struct {
	Command ir.Record
	Records []ir.Record
}

// Rejection returns the rejection of the external command, if any.
func (r Result) Rejection() (ir.Record, bool) {
	for _, rec := range r.Records {
		if rec.IsRejection() && rec.SourceRecordPosition == r.Command.Position {
			return rec, true
		}
	}
	return ir.Record{}, false
}

// Write appends an external command to the log without processing it.
func (e *Engine) Write(ctx context.Context, cmd ir.Record) (ir.Record, error) {
	if !cmd.IsCommand() {
		return ir.Record{}, fmt.Errorf("write %s %s: not a command", cmd.ValueType, cmd.Intent)
	}
	cmd.SourceRecordPosition = ir.NoPosition
	cmd.PartitionID = e.partitionID
	cmd.Timestamp = e.clock.Now().UnixMilli()
	if cmd.RequestID == "" {
		cmd.RequestID = e.requestIDs.Generate()
	}
	if cmd.ValueType == "" && cmd.Value != nil {
		cmd.ValueType = cmd.Value.ValueType()
	}
	out, err := e.log.Append(ctx, cmd)
	if err != nil {
		return ir.Record{}, fmt.Errorf("append command: %w", err)
	}
	return out[0], nil
}

// Execute appends an external command and drains the log.
func (e *Engine) Execute(ctx context.Context, cmd ir.Record) (Result, error) {
	if err := e.ensureRecovered(ctx); err != nil {
		return Result{}, err
	}
	written, err := e.Write(ctx, cmd)
	if err != nil {
		return Result{}, err
	}
	_, err = e.Drain(ctx)
	res := Result{Command: written}
	records, readErr := e.log.ReadFrom(ctx, written.Position+1, 0)
	if readErr != nil && err == nil {
		err = fmt.Errorf("read results: %w", readErr)
	}
	res.Records = records
	return res, err
}

// Enqueue submits a command to the Run loop without waiting for it.
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(cmd ir.Record) bool {
	return e.queue.Enqueue(request{command: cmd})
}

// Submit hands a command to the Run loop and waits for its result.
func (e *Engine) Submit(ctx context.Context, cmd ir.Record) (Result, error) {
	reply := make(chan response, 1)
	if !e.queue.Enqueue(request{command: cmd, reply: reply}) {
		return Result{}, fmt.Errorf("engine stopped")
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-reply:
		return r.result, r.err
	}
}

// QueueLen returns the number of commands waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run recovers the state from the log and then processes queued commands
// until the context is cancelled or Stop is called.
//
// Must be called from exactly one goroutine. A failed command is logged
// and reported to its submitter; processing continues with the next one
// unless the partition halted.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "partition", e.partitionID)
	if err := e.ensureRecovered(ctx); err != nil {
		return err
	}
	if _, err := e.Drain(ctx); err != nil {
		slog.Error("drain after recovery failed", "partition", e.partitionID, "error", err)
		if IsFatal(err) {
			return err
		}
	}

	for {
		req, ok := e.queue.TryDequeue()
		if ok {
			res, err := e.Execute(ctx, req.command)
			if err != nil {
				logCommandError(req.command, err)
			}
			if req.reply != nil {
				req.reply <- response{result: res, err: err}
			}
			if IsFatal(err) {
				e.queue.Close()
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "partition", e.partitionID)
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// A closed queue keeps signalling; a stale signal on an open
			// queue just loops.
			if e.queue.Len() == 0 && e.queue.Closed() {
				slog.Info("engine stopping: queue closed", "partition", e.partitionID)
				return nil
			}
		}
	}
}

// Stop closes the queue, which makes Run return once it is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

func logCommandError(cmd ir.Record, err error) {
	slog.Error("command failed",
		"value_type", cmd.ValueType,
		"intent", cmd.Intent,
		"key", cmd.Key,
		"request_id", cmd.RequestID,
		"error", err,
	)
}
