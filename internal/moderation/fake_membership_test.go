package moderation

import (
	"context"
	"sync"
	"time"
)

type fakeMembership struct {
	mu sync.Mutex

	roles        map[int64]Role
	restrictions map[int64]RestrictionStatus
	memberships  map[int64]MembershipStatus
	caps         Capabilities
	admins       []int64

	restrictErr   error
	unrestrictErr map[int64]error
	banErr        error
	roleErr       error

	calls map[string]int
	delay time.Duration
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{
		roles:         map[int64]Role{},
		restrictions:  map[int64]RestrictionStatus{},
		memberships:   map[int64]MembershipStatus{},
		caps:          Capabilities{CanRestrictMembers: true, CanPromoteMembers: true},
		unrestrictErr: map[int64]error{},
		calls:         map[string]int{},
	}
}

func (f *fakeMembership) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeMembership) enter(op string) {
	f.mu.Lock()
	f.calls[op]++
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (f *fakeMembership) GetRole(_ context.Context, _, memberID int64) (Role, error) {
	f.enter("get_role")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleErr != nil {
		return RoleUnknown, f.roleErr
	}
	role, ok := f.roles[memberID]
	if !ok {
		return RoleMember, nil
	}
	return role, nil
}

func (f *fakeMembership) GetRestrictionStatus(_ context.Context, _, memberID int64) (RestrictionStatus, error) {
	f.enter("get_restriction")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restrictions[memberID], nil
}

func (f *fakeMembership) GetMembershipStatus(_ context.Context, _, memberID int64) (MembershipStatus, error) {
	f.enter("get_membership")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberships[memberID], nil
}

func (f *fakeMembership) GetBotCapabilities(context.Context, int64) (Capabilities, error) {
	f.enter("get_caps")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps, nil
}

func (f *fakeMembership) Restrict(_ context.Context, _, memberID int64, until *time.Time) error {
	f.enter("restrict")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restrictErr != nil {
		return f.restrictErr
	}
	f.restrictions[memberID] = RestrictedUntil(until)
	return nil
}

func (f *fakeMembership) Unrestrict(_ context.Context, _, memberID int64) error {
	f.enter("unrestrict")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.unrestrictErr[memberID]; err != nil {
		return err
	}
	f.restrictions[memberID] = Unrestricted()
	return nil
}

func (f *fakeMembership) Ban(_ context.Context, _, memberID int64) error {
	f.enter("ban")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banErr != nil {
		return f.banErr
	}
	f.memberships[memberID] = MembershipKicked
	return nil
}

func (f *fakeMembership) Unban(_ context.Context, _, memberID int64) error {
	f.enter("unban")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberships[memberID] == MembershipKicked {
		f.memberships[memberID] = MembershipLeft
	}
	return nil
}

func (f *fakeMembership) ListAdministrators(context.Context, int64) ([]int64, error) {
	f.enter("list_admins")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.admins...), nil
}

func (f *fakeMembership) SetAdministrator(_ context.Context, _, memberID int64, promote bool) error {
	f.enter("set_admin")
	f.mu.Lock()
	defer f.mu.Unlock()
	if promote {
		f.roles[memberID] = RoleAdministrator
	} else {
		f.roles[memberID] = RoleMember
	}
	return nil
}

type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[int64]Snapshot
	saves int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{snaps: map[int64]Snapshot{}}
}

func (m *memorySnapshots) LoadChatSnapshot(_ context.Context, chatID int64) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[chatID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *memorySnapshots) SaveChatSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ChatID] = snap
	m.saves++
	return nil
}
