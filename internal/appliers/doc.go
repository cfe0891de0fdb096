// Package appliers turns committed events into state mutations.
//
// The same appliers run when the engine writes an event and when a log is
// replayed, so every applier is a pure function of the state and the
// record. Appliers tolerate being re-run on state they already produced
// where that is cheap to detect (an instance that already exists, a flow
// that already arrived at a join).
//
// An applier that cannot find an entity the event refers to returns a
// MissingEntityError. The state and the log disagree at that point, and
// the caller must stop processing the partition.
package appliers
