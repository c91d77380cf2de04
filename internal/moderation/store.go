package moderation

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Store owns every ChatState of the process. States are created on first reference and
// never removed.
type Store struct {
	chats            *xsync.MapOf[int64, *ChatState]
	defaultWarnLimit int
}

func NewStore(defaultWarnLimit int) *Store {
	if defaultWarnLimit < 1 {
		defaultWarnLimit = DefaultWarnLimit
	}
	return &Store{
		chats:            xsync.NewMapOf[int64, *ChatState](),
		defaultWarnLimit: defaultWarnLimit,
	}
}

// GetOrCreate returns the chat's state, registering a default one if the chat is new.
// Concurrent callers for the same unseen chat all receive the same instance.
func (s *Store) GetOrCreate(chatID int64) *ChatState {
	state, _ := s.chats.LoadOrCompute(chatID, func() *ChatState {
		return newChatState(chatID, s.defaultWarnLimit)
	})
	return state
}

func (s *Store) Len() int {
	return s.chats.Size()
}

func (s *Store) Range(f func(chatID int64, state *ChatState) bool) {
	s.chats.Range(f)
}

// URLLockedCount counts the chats whose URL lock is on.
func (s *Store) URLLockedCount() int {
	n := 0
	s.Range(func(_ int64, state *ChatState) bool {
		if state.URLLocked() {
			n++
		}
		return true
	})
	return n
}
