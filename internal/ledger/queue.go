package ledger

// JoinResult is the outcome of PairingQueue.Join.
type JoinResult int

const (
	// Joined means the participant was appended to the queue.
	Joined JoinResult = iota + 1
	// AlreadyQueued means the participant was already waiting; nothing changed.
	AlreadyQueued
)

func (r JoinResult) String() string {
	switch r {
	case Joined:
		return "joined"
	case AlreadyQueued:
		return "already_queued"
	default:
		return "unknown"
	}
}

// PairingQueue is an ordered set of waiting participants.
//
// INVARIANTS:
//   - No participant appears twice
//   - FIFO: TryExtractPair always takes the two longest-waiting entries
//
// PairingQueue is not safe for concurrent use. It is owned by the
// orchestrating service, which serializes every command.
type PairingQueue struct {
	waiting []ParticipantID
	members map[ParticipantID]struct{}
}

// NewPairingQueue creates an empty queue.
func NewPairingQueue() *PairingQueue {
	return &PairingQueue{
		waiting: make([]ParticipantID, 0, 16),
		members: make(map[ParticipantID]struct{}),
	}
}

// Join appends p to the tail of the queue unless it is already waiting.
func (q *PairingQueue) Join(p ParticipantID) JoinResult {
	if _, ok := q.members[p]; ok {
		return AlreadyQueued
	}
	q.waiting = append(q.waiting, p)
	q.members[p] = struct{}{}
	return Joined
}

// Leave removes p from the queue. Returns false if p was not waiting.
func (q *PairingQueue) Leave(p ParticipantID) bool {
	if _, ok := q.members[p]; !ok {
		return false
	}
	delete(q.members, p)
	for i, w := range q.waiting {
		if w == p {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	return true
}

// TryExtractPair removes and returns the two earliest-enqueued participants.
// The first-in participant is player 1. Returns false if fewer than two
// participants are waiting.
func (q *PairingQueue) TryExtractPair() ([2]ParticipantID, bool) {
	if len(q.waiting) < 2 {
		return [2]ParticipantID{}, false
	}

	pair := [2]ParticipantID{q.waiting[0], q.waiting[1]}
	delete(q.members, pair[0])
	delete(q.members, pair[1])

	if len(q.waiting) == 2 {
		q.waiting = q.waiting[:0]
	} else {
		q.waiting = q.waiting[2:]
	}

	return pair, true
}

// Contains reports whether p is waiting.
func (q *PairingQueue) Contains(p ParticipantID) bool {
	_, ok := q.members[p]
	return ok
}

// Len returns the number of waiting participants.
func (q *PairingQueue) Len() int {
	return len(q.waiting)
}

// Waiting returns a copy of the queue in FIFO order.
func (q *PairingQueue) Waiting() []ParticipantID {
	out := make([]ParticipantID, len(q.waiting))
	copy(out, q.waiting)
	return out
}

// Restore replaces the queue contents with a snapshot taken by Waiting.
// Used to undo a join whose follow-on match could not be persisted.
func (q *PairingQueue) Restore(snapshot []ParticipantID) {
	q.Clear()
	for _, p := range snapshot {
		q.Join(p)
	}
}

// Clear empties the queue.
func (q *PairingQueue) Clear() {
	q.waiting = q.waiting[:0]
	clear(q.members)
}
