// Package engine implements the token-flow stream processor of one
// partition.
//
// The engine owns a record log and the state projected from it. Clients
// append commands; the engine reads them back in log order and hands each
// one to the processor registered for its (value type, intent). A
// processor either rejects the command or decides its outcome as events
// and follow-up commands.
//
// Processing model:
//
// Single writer:
// One goroutine processes one partition. Run dequeues client commands from
// a FIFO, appends them and drains the log. Everything else reads the state
// through state.Reader.
//
// Batches:
// The records produced for one command are appended in a single batch.
// Every record of the batch carries the command's position as its source
// position, which is what recovery uses to find the last processed
// command.
//
// Events first:
// An event is applied to the state as soon as it is written, so later
// decisions of the same processor see it. Follow-up commands are processed
// only after the batch is in the log.
//
// Rejections:
// A processor may reject only before it writes an event. A failure after
// that point leaves the state ahead of the log and halts the partition
// with a FatalError.
//
// Determinism:
// Keys come from the state's key generator and are observed during
// replay. Outgoing flows are taken in declaration order and variables are
// written in name order. Timestamps are informational only. Replaying a
// log into a fresh engine reproduces the same state.
package engine
