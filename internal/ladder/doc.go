// Package ladder is the orchestrating service: it owns the pairing queue,
// the match ledger and the stats ledger, and makes every mutation durable
// before reporting success.
//
// ARCHITECTURE:
//
// Single Writer:
// Service serializes every command behind one mutex. A command runs to
// completion, including the store commit, before the next one starts. This
// is what prevents a report from interleaving with a delete or override of
// the same match.
//
// Command Flow:
// 1. Lock, reject if closed
// 2. Snapshot the queue and open a ledger journal
// 3. Apply the mutation in memory
// 4. Check the conservation law
// 5. Commit the changeset and audit events to the store
// 6. On any failure: roll back the journal and restore the queue
//
// The queue is never persisted. A restart loads matches, stats and the
// match-ID counter from the store and starts with an empty queue.
//
// Authorization is not decided here: callers pass a Caller carrying the
// identity and admin flag resolved by the chat boundary.
package ladder
