package moderation

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

const LockURL = "url"

// SetLock toggles a chat lock. Only the URL lock exists.
func (c *Coordinator) SetLock(ctx context.Context, chatID int64, kind string, enabled bool) error {
	if strings.ToLower(strings.TrimSpace(kind)) != LockURL {
		return errors.Wrapf(ErrUnknownLockKind, "lock %q", kind)
	}
	err := c.withChat(ctx, chatID, true, func(state *ChatState) error {
		state.setURLLock(enabled)
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.WithField("chat_id", chatID).WithField("enabled", enabled).Info("url lock changed")
	return nil
}

// ClassifyForSpam reports whether the message must be removed. It does not wait for actions
// running in the chat, except once to load persisted state for a chat not seen before.
func (c *Coordinator) ClassifyForSpam(ctx context.Context, chatID int64, text string) bool {
	state := c.store.GetOrCreate(chatID)
	if c.snapshots != nil && !state.loaded.Load() {
		_ = c.withChat(ctx, chatID, false, func(*ChatState) error { return nil })
	}
	return ClassifyLink(text, state.URLLocked())
}

// ListActiveMutes evicts expired mutes and returns the rest ordered by member id.
func (c *Coordinator) ListActiveMutes(ctx context.Context, chatID int64) ([]ActiveMute, error) {
	var res []ActiveMute
	err := c.withChat(ctx, chatID, true, func(state *ChatState) error {
		res = sortedMutes(state.listActiveMutes(c.now()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
