package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/iamwavecut/ngmod/internal/db"
	"github.com/iamwavecut/ngmod/internal/moderation"
)

// LoadChatSnapshot returns nil for a chat that was never saved.
func (c *sqliteClient) LoadChatSnapshot(ctx context.Context, chatID int64) (*moderation.Snapshot, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var chat db.ChatModeration
	err := c.db.GetContext(ctx, &chat, `SELECT chat_id, url_lock, warn_limit FROM chat_moderation WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load chat %d", chatID)
	}

	var mutes []db.ChatMute
	if err := c.db.SelectContext(ctx, &mutes, `SELECT chat_id, member_id, expires_at, display_name FROM chat_mutes WHERE chat_id = ?`, chatID); err != nil {
		return nil, errors.Wrapf(err, "load mutes of chat %d", chatID)
	}
	var warnings []db.ChatWarning
	if err := c.db.SelectContext(ctx, &warnings, `SELECT chat_id, member_id, count FROM chat_warnings WHERE chat_id = ?`, chatID); err != nil {
		return nil, errors.Wrapf(err, "load warnings of chat %d", chatID)
	}

	snap := &moderation.Snapshot{
		ChatID:    chat.ChatID,
		URLLock:   chat.URLLock,
		WarnLimit: chat.WarnLimit,
		Mutes:     make(map[int64]moderation.MuteRecord, len(mutes)),
		Warnings:  make(map[int64]int, len(warnings)),
	}
	for _, mute := range mutes {
		snap.Mutes[mute.MemberID] = mute.Record()
	}
	for _, warning := range warnings {
		snap.Warnings[warning.MemberID] = warning.Count
	}
	return snap, nil
}

// SaveChatSnapshot replaces everything stored for the chat in one transaction.
func (c *sqliteClient) SaveChatSnapshot(ctx context.Context, snap moderation.Snapshot) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	chat := db.ChatModeration{ChatID: snap.ChatID, URLLock: snap.URLLock, WarnLimit: snap.WarnLimit}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO chat_moderation (chat_id, url_lock, warn_limit, updated_at)
		VALUES (:chat_id, :url_lock, :warn_limit, CURRENT_TIMESTAMP)
		ON CONFLICT(chat_id) DO UPDATE SET
		url_lock = excluded.url_lock,
		warn_limit = excluded.warn_limit,
		updated_at = excluded.updated_at
	`, chat); err != nil {
		return errors.Wrapf(err, "save chat %d", snap.ChatID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_mutes WHERE chat_id = ?`, snap.ChatID); err != nil {
		return errors.Wrap(err, "clear mutes")
	}
	for memberID, record := range snap.Mutes {
		row := db.NewChatMute(snap.ChatID, memberID, record)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO chat_mutes (chat_id, member_id, expires_at, display_name)
			VALUES (:chat_id, :member_id, :expires_at, :display_name)
		`, row); err != nil {
			return errors.Wrapf(err, "save mute of member %d", memberID)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_warnings WHERE chat_id = ?`, snap.ChatID); err != nil {
		return errors.Wrap(err, "clear warnings")
	}
	for memberID, count := range snap.Warnings {
		if count <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_warnings (chat_id, member_id, count) VALUES (?, ?, ?)`, snap.ChatID, memberID, count); err != nil {
			return errors.Wrapf(err, "save warnings of member %d", memberID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}
