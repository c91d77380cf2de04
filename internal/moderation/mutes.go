package moderation

import (
	"sort"
	"time"
)

// ActiveMute is a ledger entry as reported to callers.
type ActiveMute struct {
	MemberID    int64
	DisplayName string
	Expiry      *time.Time
}

// listActiveMutes evicts every mute that has expired by now and returns what is left.
// A mute expiring at t is gone for any read at t or later.
// Expiry is only observed here; nothing sweeps the ledger in the background.
func (s *ChatState) listActiveMutes(now time.Time) map[int64]MuteRecord {
	for memberID, record := range s.mutes {
		if record.Expiry != nil && !record.Expiry.After(now) {
			delete(s.mutes, memberID)
		}
	}
	return s.mutes
}

func (s *ChatState) recordMute(memberID int64, expiry *time.Time, displayName string) {
	s.mutes[memberID] = MuteRecord{Expiry: expiry, DisplayName: displayName}
}

// clearMute reports whether an entry was removed.
func (s *ChatState) clearMute(memberID int64) bool {
	if _, ok := s.mutes[memberID]; !ok {
		return false
	}
	delete(s.mutes, memberID)
	return true
}

func sortedMutes(mutes map[int64]MuteRecord) []ActiveMute {
	res := make([]ActiveMute, 0, len(mutes))
	for memberID, record := range mutes {
		res = append(res, ActiveMute{
			MemberID:    memberID,
			DisplayName: record.DisplayName,
			Expiry:      record.Expiry,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].MemberID < res[j].MemberID
	})
	return res
}
