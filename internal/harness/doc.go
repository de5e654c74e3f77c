// Package harness runs chat conversation scenarios against a real ladder.
//
// A scenario is a YAML file naming its participants, the messages they send
// and the replies expected. The harness feeds every message through
// chat.Dispatcher into a ladder.Service backed by a fresh in-memory store,
// so a scenario exercises command parsing, the ledger, persistence and
// reply formatting together.
//
// # Scenario Format
//
//	name: report_and_correct
//	description: "What this scenario validates"
//	prefix: "!"            # optional
//	participants:
//	  alice: { id: 1 }
//	  mod:   { id: 9, admin: true }
//	setup:                 # optional, replies not checked
//	  - from: alice
//	    say: "!q"
//	flow:
//	  - from: mod
//	    say: "!q"
//	    expect:
//	      reply: "mod has joined the queue.\nMatch created! alice vs mod. Match ID: 1"
//	  - restart: true
//	  - from: alice
//	    say: "!report 2 w"
//	    expect:
//	      code: NOT_FOUND
//	assertions:
//	  - type: stats
//	    participant: alice
//	    wins: 0
//	    losses: 0
//
// # Assertion Types
//
//   - stats: a participant's exact wins and losses
//   - match: a match's state and winner, or absent: true
//   - queue: the waiting list, longest-waiting first
//   - history: the kinds of a match's audit trail, in order
//   - leaderboard: participant order on the leaderboard
//
// # Deterministic Testing
//
// Event IDs come from testutil.SequenceGenerator ("ev-0001", ...) and the
// database is private to the run, so the same scenario always renders the
// same transcript. Render output is compared against golden files with
// goldie; a restart step reopens the service over the same store to check
// what survives a process restart.
package harness
