package moderation

import (
	"context"
	"time"
)

type Role int

const (
	RoleUnknown Role = iota
	RoleMember
	RoleAdministrator
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdministrator:
		return "administrator"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// IsPrivileged reports whether the role is out of reach for mute, ban and warn.
func (r Role) IsPrivileged() bool {
	return r == RoleAdministrator || r == RoleOwner
}

// RestrictionStatus is the platform's view of a member's ability to speak.
// Until is nil for a permanent restriction.
type RestrictionStatus struct {
	Restricted bool
	Until      *time.Time
}

func Unrestricted() RestrictionStatus {
	return RestrictionStatus{}
}

func RestrictedUntil(until *time.Time) RestrictionStatus {
	return RestrictionStatus{Restricted: true, Until: until}
}

type MembershipStatus int

const (
	MembershipActive MembershipStatus = iota
	MembershipKicked
	MembershipLeft
)

func (s MembershipStatus) String() string {
	switch s {
	case MembershipKicked:
		return "kicked"
	case MembershipLeft:
		return "left"
	default:
		return "active"
	}
}

type Capabilities struct {
	CanRestrictMembers bool
	CanPromoteMembers  bool
}

// MembershipService is the authoritative chat platform. Mutations report failures as
// *PlatformError so the Coordinator can tell an idempotent conflict from a real failure.
type MembershipService interface {
	GetRole(ctx context.Context, chatID, memberID int64) (Role, error)
	GetRestrictionStatus(ctx context.Context, chatID, memberID int64) (RestrictionStatus, error)
	GetMembershipStatus(ctx context.Context, chatID, memberID int64) (MembershipStatus, error)
	GetBotCapabilities(ctx context.Context, chatID int64) (Capabilities, error)
	Restrict(ctx context.Context, chatID, memberID int64, until *time.Time) error
	Unrestrict(ctx context.Context, chatID, memberID int64) error
	Ban(ctx context.Context, chatID, memberID int64) error
	Unban(ctx context.Context, chatID, memberID int64) error
	ListAdministrators(ctx context.Context, chatID int64) ([]int64, error)
	SetAdministrator(ctx context.Context, chatID, memberID int64, promote bool) error
}
