package moderation

import "sort"

type WarnedMember struct {
	MemberID int64
	Count    int
}

func (s *ChatState) warningCount(memberID int64) int {
	return s.warnings[memberID]
}

// setWarningCount keeps only positive counts in the ledger.
func (s *ChatState) setWarningCount(memberID int64, count int) {
	if count <= 0 {
		delete(s.warnings, memberID)
		return
	}
	s.warnings[memberID] = count
}

// resetWarnings drops every entry and returns how many members had a positive count.
func (s *ChatState) resetWarnings() int {
	cleared := 0
	for _, count := range s.warnings {
		if count > 0 {
			cleared++
		}
	}
	s.warnings = map[int64]int{}
	return cleared
}

// warnedMembers lists members with a positive count, highest first.
func (s *ChatState) warnedMembers() []WarnedMember {
	res := make([]WarnedMember, 0, len(s.warnings))
	for memberID, count := range s.warnings {
		if count > 0 {
			res = append(res, WarnedMember{MemberID: memberID, Count: count})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].MemberID < res[j].MemberID
	})
	return res
}
