package moderation

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const DefaultWarnLimit = 3

type MuteRecord struct {
	Expiry      *time.Time
	DisplayName string
}

// Permanent reports whether the mute has no expiry.
func (r MuteRecord) Permanent() bool {
	return r.Expiry == nil
}

// ChatState is the moderation state of a single chat. Everything except the URL lock flag
// must be accessed while holding the chat lock.
type ChatState struct {
	ChatID int64

	lock    *semaphore.Weighted
	urlLock atomic.Bool
	loaded  atomic.Bool

	mutes     map[int64]MuteRecord
	warnings  map[int64]int
	warnLimit int
}

func newChatState(chatID int64, warnLimit int) *ChatState {
	if warnLimit < 1 {
		warnLimit = DefaultWarnLimit
	}
	return &ChatState{
		ChatID:    chatID,
		lock:      semaphore.NewWeighted(1),
		mutes:     map[int64]MuteRecord{},
		warnings:  map[int64]int{},
		warnLimit: warnLimit,
	}
}

// acquire blocks until the caller owns the chat or ctx is done.
func (s *ChatState) acquire(ctx context.Context) error {
	return s.lock.Acquire(ctx, 1)
}

func (s *ChatState) release() {
	s.lock.Release(1)
}

// URLLocked is safe to call without holding the chat lock.
func (s *ChatState) URLLocked() bool {
	return s.urlLock.Load()
}

func (s *ChatState) setURLLock(enabled bool) {
	s.urlLock.Store(enabled)
}

func (s *ChatState) snapshot() Snapshot {
	snap := Snapshot{
		ChatID:    s.ChatID,
		URLLock:   s.URLLocked(),
		WarnLimit: s.warnLimit,
		Mutes:     make(map[int64]MuteRecord, len(s.mutes)),
		Warnings:  make(map[int64]int, len(s.warnings)),
	}
	for memberID, record := range s.mutes {
		snap.Mutes[memberID] = record
	}
	for memberID, count := range s.warnings {
		snap.Warnings[memberID] = count
	}
	return snap
}

func (s *ChatState) restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.setURLLock(snap.URLLock)
	if snap.WarnLimit >= 1 {
		s.warnLimit = snap.WarnLimit
	}
	for memberID, record := range snap.Mutes {
		s.mutes[memberID] = record
	}
	for memberID, count := range snap.Warnings {
		if count > 0 && count < s.warnLimit {
			s.warnings[memberID] = count
		}
	}
}

// Snapshot is a detached copy of a chat's state, used by SnapshotStore implementations.
type Snapshot struct {
	ChatID    int64
	URLLock   bool
	WarnLimit int
	Mutes     map[int64]MuteRecord
	Warnings  map[int64]int
}

// SnapshotStore persists chat state between restarts. It is optional: the in-memory state
// stays authoritative for the lifetime of the process.
type SnapshotStore interface {
	LoadChatSnapshot(ctx context.Context, chatID int64) (*Snapshot, error)
	SaveChatSnapshot(ctx context.Context, snapshot Snapshot) error
}
