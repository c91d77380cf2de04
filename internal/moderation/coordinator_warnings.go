package moderation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/iamwavecut/ngmod/internal/observability"
)

type WarnResult struct {
	// Count is the count the warning brought the member to, before any escalation reset.
	Count     int
	Limit     int
	Escalated bool
	Mute      *ActionResult

	// AlreadyMuted is set when the member already serves a permanent mute and the warning
	// was not counted.
	AlreadyMuted bool
}

type UnwarnResult struct {
	NewCount int
	Changed  bool
}

// Warn increments the member's warning count. Reaching the chat's limit mutes the member
// permanently and resets the count; if that mute fails the count is left untouched.
// Members the platform reports as permanently restricted are not warned again.
func (c *Coordinator) Warn(ctx context.Context, chatID int64, target Target, reason string) (res *WarnResult, err error) {
	ctx, scope := c.begin(ctx, ActionWarn, chatID, target.ID)
	defer func() {
		if res != nil && res.Escalated {
			scope.entry = scope.entry.WithField("escalated", true)
		}
		scope.end(OutcomeApplied, err)
	}()
	if reason != "" {
		scope.entry = scope.entry.WithField("reason", reason)
	}

	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		if guardErr := c.guardTarget(ctx, chatID, target); guardErr != nil {
			return guardErr
		}

		status, statusErr := c.members.GetRestrictionStatus(ctx, chatID, target.ID)
		if statusErr != nil {
			return errors.WithMessage(classifyPlatformError("get restriction status", statusErr), "check warned member")
		}

		limit := state.warnLimit
		if status.Restricted && status.Until == nil {
			if record, ok := state.mutes[target.ID]; !ok || !record.Permanent() {
				state.recordMute(target.ID, nil, target.DisplayName)
			}
			res = &WarnResult{Limit: limit, AlreadyMuted: true}
			return nil
		}
		if !status.Restricted {
			// lifted outside the bot
			state.clearMute(target.ID)
		}

		count := state.warningCount(target.ID) + 1
		if count < limit {
			state.setWarningCount(target.ID, count)
			res = &WarnResult{Count: count, Limit: limit}
			return nil
		}

		escalation := c.muteTransition(chatID, target, nil)
		escalation.targetChecked = true
		escalation.reconcile = func(context.Context) (bool, error) {
			// the status read above is not a permanent restriction
			return false, nil
		}
		mute, muteErr := c.run(ctx, state, target, escalation)
		if muteErr != nil {
			return errors.WithMessage(muteErr, "escalate warning")
		}
		state.setWarningCount(target.ID, 0)
		observability.RecordEscalation()
		res = &WarnResult{Count: count, Limit: limit, Escalated: true, Mute: mute}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unwarn decrements the member's count. A member with no warnings is left alone.
func (c *Coordinator) Unwarn(ctx context.Context, chatID, memberID int64) (res *UnwarnResult, err error) {
	ctx, scope := c.begin(ctx, ActionUnwarn, chatID, memberID)
	defer func() {
		outcome := OutcomeApplied
		if res != nil && !res.Changed {
			outcome = OutcomeAlreadyInState
		}
		scope.end(outcome, err)
	}()

	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		count := state.warningCount(memberID)
		if count <= 0 {
			res = &UnwarnResult{}
			return nil
		}
		state.setWarningCount(memberID, count-1)
		res = &UnwarnResult{NewCount: count - 1, Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ResetAllWarnings clears the chat's warning ledger and returns how many members had warnings.
func (c *Coordinator) ResetAllWarnings(ctx context.Context, chatID int64) (int, error) {
	var cleared int
	err := c.withChat(ctx, chatID, true, func(state *ChatState) error {
		cleared = state.resetWarnings()
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.logger.WithField("chat_id", chatID).WithField("cleared", cleared).Info("warnings reset")
	return cleared, nil
}

// SetWarnLimit changes the escalation threshold. Existing counts are kept, even those at or
// above the new limit; they escalate on the member's next warning.
func (c *Coordinator) SetWarnLimit(ctx context.Context, chatID int64, limit int) error {
	if limit < 1 {
		return errors.Wrapf(ErrInvalidArgument, "warn limit %d is below 1", limit)
	}
	return c.withChat(ctx, chatID, true, func(state *ChatState) error {
		state.warnLimit = limit
		return nil
	})
}

func (c *Coordinator) WarnLimit(ctx context.Context, chatID int64) (int, error) {
	var limit int
	err := c.withChat(ctx, chatID, false, func(state *ChatState) error {
		limit = state.warnLimit
		return nil
	})
	return limit, err
}

// ListWarnings returns the warned members, highest count first, and the chat's limit.
func (c *Coordinator) ListWarnings(ctx context.Context, chatID int64) ([]WarnedMember, int, error) {
	var (
		members []WarnedMember
		limit   int
	)
	err := c.withChat(ctx, chatID, false, func(state *ChatState) error {
		members = state.warnedMembers()
		limit = state.warnLimit
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return members, limit, nil
}
