package db

import (
	"database/sql"
	"time"

	"github.com/iamwavecut/ngmod/internal/moderation"
)

type (
	ChatModeration struct {
		ChatID    int64 `db:"chat_id"`
		URLLock   bool  `db:"url_lock"`
		WarnLimit int   `db:"warn_limit"`
	}

	ChatMute struct {
		ChatID      int64         `db:"chat_id"`
		MemberID    int64         `db:"member_id"`
		ExpiresAt   sql.NullInt64 `db:"expires_at"`
		DisplayName string        `db:"display_name"`
	}

	ChatWarning struct {
		ChatID   int64 `db:"chat_id"`
		MemberID int64 `db:"member_id"`
		Count    int   `db:"count"`
	}
)

// NewChatMute stores the expiry as unix nanoseconds; a permanent mute has none.
func NewChatMute(chatID, memberID int64, record moderation.MuteRecord) ChatMute {
	row := ChatMute{ChatID: chatID, MemberID: memberID, DisplayName: record.DisplayName}
	if record.Expiry != nil {
		row.ExpiresAt = sql.NullInt64{Int64: record.Expiry.UnixNano(), Valid: true}
	}
	return row
}

func (m ChatMute) Record() moderation.MuteRecord {
	record := moderation.MuteRecord{DisplayName: m.DisplayName}
	if m.ExpiresAt.Valid {
		expiry := time.Unix(0, m.ExpiresAt.Int64).UTC()
		record.Expiry = &expiry
	}
	return record
}
