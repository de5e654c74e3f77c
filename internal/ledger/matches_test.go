package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMatch(t *testing.T, l *Ledger, p1, p2 ParticipantID) Match {
	t.Helper()
	m, err := l.Matches.Create(p1, p2)
	require.NoError(t, err)
	return m
}

func TestMatchLedger_CreateAssignsIncreasingIDs(t *testing.T) {
	l := New()

	m1 := createMatch(t, l, 1, 2)
	m2 := createMatch(t, l, 3, 4)

	assert.Equal(t, MatchID(1), m1.ID)
	assert.Equal(t, MatchID(2), m2.ID)
	assert.Equal(t, StateOpen, m1.State)
	assert.Equal(t, [2]ParticipantID{1, 2}, m1.Players)
	assert.Zero(t, m1.Winner)
	assert.Equal(t, MatchID(3), l.Matches.NextID())
}

func TestMatchLedger_CreateRejectsSelfPairing(t *testing.T) {
	l := New()

	_, err := l.Matches.Create(7, 7)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
	assert.Equal(t, FirstMatchID, l.Matches.NextID(), "failed create must not consume an ID")
}

func TestMatchLedger_IDsNeverReusedAfterDelete(t *testing.T) {
	l := New()
	m1 := createMatch(t, l, 1, 2)

	_, err := l.Matches.Delete(m1.ID)
	require.NoError(t, err)

	m2 := createMatch(t, l, 1, 2)
	assert.Greater(t, m2.ID, m1.ID)
}

func TestMatchLedger_ResolveWin(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)

	got, err := l.Matches.Resolve(m.ID, 1, Win)
	require.NoError(t, err)

	assert.Equal(t, StateResolved, got.State)
	assert.Equal(t, ParticipantID(1), got.Winner)
	assert.Equal(t, ParticipantID(2), got.Loser())
	assert.Equal(t, Record{Participant: 1, Wins: 1}, l.Stats.Get(1))
	assert.Equal(t, Record{Participant: 2, Losses: 1}, l.Stats.Get(2))
	assert.Equal(t, 1, l.Matches.ResolvedCount())
}

func TestMatchLedger_ResolveLossMakesOpponentWinner(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)

	got, err := l.Matches.Resolve(m.ID, 2, Loss)
	require.NoError(t, err)

	assert.Equal(t, ParticipantID(1), got.Winner)
	assert.Equal(t, 1, l.Stats.Get(1).Wins)
	assert.Equal(t, 1, l.Stats.Get(2).Losses)
}

func TestMatchLedger_ResolveErrors(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)

	tests := []struct {
		name     string
		id       MatchID
		reporter ParticipantID
		outcome  Outcome
		code     ErrorCode
	}{
		{"unknown match", 99, 1, Win, CodeNotFound},
		{"outsider", m.ID, 3, Win, CodeNotParticipant},
		{"bad outcome", m.ID, 1, Outcome(0), CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Matches.Resolve(tt.id, tt.reporter, tt.outcome)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}

	assert.Equal(t, 0, l.Stats.Len(), "failed reports must not touch stats")
}

func TestMatchLedger_ResolveTwiceIsAlreadyResolved(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)

	_, err := l.Matches.Resolve(m.ID, 1, Win)
	require.NoError(t, err)

	_, err = l.Matches.Resolve(m.ID, 2, Win)
	require.Error(t, err)
	assert.Equal(t, CodeAlreadyResolved, CodeOf(err))

	assert.Equal(t, 1, l.Stats.Get(1).Wins)
	assert.Equal(t, 0, l.Stats.Get(2).Wins)
}

func TestMatchLedger_GetNotFound(t *testing.T) {
	l := New()

	_, err := l.Matches.Get(1)
	assert.True(t, IsNotFound(err))
}

func TestMatchLedger_DeleteResolvedReversesStats(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)
	_, err := l.Matches.Resolve(m.ID, 1, Win)
	require.NoError(t, err)

	deleted, err := l.Matches.Delete(m.ID)
	require.NoError(t, err)
	assert.Equal(t, ParticipantID(1), deleted.Winner)

	assert.Equal(t, Record{Participant: 1}, l.Stats.Get(1))
	assert.Equal(t, Record{Participant: 2}, l.Stats.Get(2))

	_, err = l.Matches.Get(m.ID)
	assert.True(t, IsNotFound(err))
	require.NoError(t, l.CheckConservation())
}

func TestMatchLedger_DeleteOpenLeavesStatsUntouched(t *testing.T) {
	l := New()
	other := createMatch(t, l, 3, 4)
	_, err := l.Matches.Resolve(other.ID, 3, Win)
	require.NoError(t, err)

	m := createMatch(t, l, 1, 2)
	_, err = l.Matches.Delete(m.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, l.Stats.Get(3).Wins)
	assert.Equal(t, 1, l.Stats.Get(4).Losses)
	assert.Equal(t, 2, l.Stats.Len(), "deleting an open match creates no records")
	require.NoError(t, l.CheckConservation())
}

func TestMatchLedger_DeleteNotFound(t *testing.T) {
	l := New()

	_, err := l.Matches.Delete(5)
	assert.True(t, IsNotFound(err))
}

func TestMatchLedger_OverrideRoundTrip(t *testing.T) {
	// Resolve as 1-wins, override to 2-wins.
	corrected := New()
	m := createMatch(t, corrected, 1, 2)
	_, err := corrected.Matches.Resolve(m.ID, 1, Win)
	require.NoError(t, err)
	got, err := corrected.Matches.OverrideWinner(m.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, ParticipantID(2), got.Winner)

	// Resolve as 2-wins directly.
	direct := New()
	m = createMatch(t, direct, 1, 2)
	_, err = direct.Matches.Resolve(m.ID, 2, Win)
	require.NoError(t, err)

	assert.Equal(t, direct.Stats.ListSorted(), corrected.Stats.ListSorted())
	assert.Equal(t, 0, corrected.Stats.Get(1).Wins, "no spurious win for the old winner")
	require.NoError(t, corrected.CheckConservation())
}

func TestMatchLedger_OverrideOpenMatchResolvesIt(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)

	got, err := l.Matches.OverrideWinner(m.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, StateResolved, got.State)
	assert.Equal(t, ParticipantID(2), got.Winner)
	assert.Equal(t, 1, l.Stats.Get(2).Wins)
	assert.Equal(t, 1, l.Stats.Get(1).Losses)
	assert.Equal(t, 1, l.Matches.ResolvedCount())
}

func TestMatchLedger_OverrideSameWinnerIsNoop(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)
	_, err := l.Matches.Resolve(m.ID, 1, Win)
	require.NoError(t, err)

	_, err = l.Matches.OverrideWinner(m.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, Record{Participant: 1, Wins: 1}, l.Stats.Get(1))
	assert.Equal(t, Record{Participant: 2, Losses: 1}, l.Stats.Get(2))
}

func TestMatchLedger_OverrideErrors(t *testing.T) {
	l := New()
	m := createMatch(t, l, 1, 2)

	_, err := l.Matches.OverrideWinner(99, 1)
	assert.Equal(t, CodeNotFound, CodeOf(err))

	_, err = l.Matches.OverrideWinner(m.ID, 3)
	assert.Equal(t, CodeNotParticipant, CodeOf(err))

	got, err := l.Matches.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, got.State)
}

func TestMatchLedger_OpenListsUnresolvedInOrder(t *testing.T) {
	l := New()
	m1 := createMatch(t, l, 1, 2)
	m2 := createMatch(t, l, 3, 4)
	m3 := createMatch(t, l, 5, 6)
	_, err := l.Matches.Resolve(m2.ID, 3, Win)
	require.NoError(t, err)

	open := l.Matches.Open()
	require.Len(t, open, 2)
	assert.Equal(t, m1.ID, open[0].ID)
	assert.Equal(t, m3.ID, open[1].ID)
	assert.Len(t, l.Matches.All(), 3)
}
