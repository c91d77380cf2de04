package moderation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreateReturnsSingleInstance(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	const workers = 32
	states := make([]*ChatState, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = store.GetOrCreate(-100)
		}(i)
	}
	wg.Wait()

	for _, state := range states {
		require.Same(t, states[0], state)
	}
	require.Equal(t, 1, store.Len())
	require.Equal(t, DefaultWarnLimit, states[0].warnLimit)

	require.Equal(t, 0, store.URLLockedCount())
	store.GetOrCreate(-300).setURLLock(true)
	require.Equal(t, 1, store.URLLockedCount())
	require.Equal(t, 2, store.Len())
}

func TestListActiveMutesEvictsLazily(t *testing.T) {
	t.Parallel()

	state := newChatState(1, 3)
	expiry := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	state.recordMute(10, &expiry, "Timed")
	state.recordMute(20, nil, "Forever")

	active := state.listActiveMutes(expiry.Add(-time.Nanosecond))
	require.Len(t, active, 2)

	active = state.listActiveMutes(expiry)
	require.Len(t, active, 1)
	_, ok := active[20]
	require.True(t, ok)

	active = state.listActiveMutes(expiry.Add(time.Hour * 24 * 365 * 10))
	require.Len(t, active, 1)
}

func TestClearMute(t *testing.T) {
	t.Parallel()

	state := newChatState(1, 3)
	require.False(t, state.clearMute(5))
	state.recordMute(5, nil, "")
	require.True(t, state.clearMute(5))
	require.Empty(t, state.mutes)
}

func TestWarningLedger(t *testing.T) {
	t.Parallel()

	state := newChatState(1, 5)
	state.setWarningCount(1, 2)
	state.setWarningCount(2, 1)
	state.setWarningCount(3, 4)
	state.setWarningCount(4, 0)

	require.Equal(t, []WarnedMember{
		{MemberID: 3, Count: 4},
		{MemberID: 1, Count: 2},
		{MemberID: 2, Count: 1},
	}, state.warnedMembers())

	state.setWarningCount(3, 0)
	require.Equal(t, 0, state.warningCount(3))
	require.Equal(t, 2, state.resetWarnings())
	require.Empty(t, state.warnedMembers())
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	state := newChatState(7, 3)
	expiry := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	state.recordMute(1, &expiry, "One")
	state.setWarningCount(2, 2)
	state.setURLLock(true)
	state.warnLimit = 4

	snap := state.snapshot()
	state.recordMute(3, nil, "mutated after snapshot")

	restored := newChatState(7, 3)
	restored.restore(&snap)
	require.True(t, restored.URLLocked())
	require.Equal(t, 4, restored.warnLimit)
	require.Equal(t, map[int64]MuteRecord{1: {Expiry: &expiry, DisplayName: "One"}}, restored.mutes)
	require.Equal(t, 2, restored.warningCount(2))
}

func TestClassifyLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		locked bool
		want   bool
	}{
		{text: "see https://example.com", locked: true, want: true},
		{text: "HTTP://EXAMPLE.COM", locked: true, want: true},
		{text: "visit WWW.example.com", locked: true, want: true},
		{text: "see https://example.com", locked: false, want: false},
		{text: "no links here, just example.com", locked: true, want: false},
		{text: "", locked: true, want: false},
		{text: "ftp://files", locked: true, want: false},
	}
	for _, tc := range tests {
		if got := ClassifyLink(tc.text, tc.locked); got != tc.want {
			t.Fatalf("ClassifyLink(%q, %v) = %v, want %v", tc.text, tc.locked, got, tc.want)
		}
	}
}
