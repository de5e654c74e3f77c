// Package ledger implements the matchmaking core: the pairing queue, the
// match state machine and the win/loss statistics ledger.
//
// ARCHITECTURE:
//
// The package holds state in memory and never touches persistence. Callers
// (see internal/ladder) bracket every mutation with Ledger.Begin, read the
// resulting Changeset, make it durable, and then either Commit or Rollback
// the journal. A rollback restores the exact before-image of every match,
// stats record and the match-ID counter touched since Begin.
//
// CRITICAL PATTERNS:
//
// Compensating updates:
// Every StatsLedger.Apply triggered by a match outcome is reversed exactly
// once by StatsLedger.Reverse when that outcome is overridden or the match
// is deleted. MatchLedger.Delete and MatchLedger.OverrideWinner are the only
// places that issue reversals.
//
// Conservation law:
// Sum of wins == sum of losses == number of Resolved matches. The ledger
// keeps running totals so Ledger.CheckConservation is O(1).
//
// Monotonic match IDs:
// IDs come from a counter that only moves forward, including across
// restarts (the counter is part of every Changeset) and deletes.
package ledger
