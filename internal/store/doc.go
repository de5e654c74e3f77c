// Package store provides SQLite-backed durable storage for the ladder.
//
// The store persists three things and nothing else:
//   - Matches: id, players, state and winner
//   - Stats: per-participant wins and losses
//   - Meta: the next match ID (key "next_match_id")
//
// plus an append-only audit trail of match events.
//
// # Critical Patterns
//
// Atomic multi-field commit:
//   - Commit writes matches, stats, the counter and events in ONE transaction
//   - A failed Commit leaves the database exactly as it was
//
// Monotonic counter:
//   - next_match_id is written with every commit and only ever rewound by a
//     changeset that carries Reset
//
// Deterministic reads:
//   - Matches ORDER BY id, stats ORDER BY participant, events ORDER BY seq
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: a commit acknowledged to a chat user survives power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: the ladder has a single writer
package store
