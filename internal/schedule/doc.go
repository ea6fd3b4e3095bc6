// Package schedule implements the discrete-event timeline.
//
// A Schedule maps simulation timestamps to ordered buckets of events. Each
// event is a call bound to a parent entity (a unit, or the world) by method
// name, or a Memo that carries a tag and a payload and does nothing when
// executed.
//
// # Ordering
//
// Events run in strictly ascending timestamp order and, within a timestamp,
// in posting order. Events posted at the timestamp currently executing are
// appended to its bucket; drivers re-read Len on every iteration so they run
// in the same pass.
//
// # Serialization
//
// A live event holds its parent and bound Method. PreSerialize swaps those
// for the parent's UID and keeps only the method name, giving the
// (parent_id, method, args, kwargs) record layout exposed by Records.
// PostDeserialize resolves ids against a World and rebinds methods through
// the parent's Dispatcher table. Failures are reported, never dropped.
//
// The schedule is not safe for concurrent use; the simulation loop is its
// only caller.
package schedule
