package moderation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

func (c *Coordinator) muteTransition(chatID int64, target Target, expiry *time.Time) transition {
	return transition{
		action: ActionMute,
		reconcile: func(ctx context.Context) (bool, error) {
			// Only a permanent request can be satisfied by an existing restriction; a timed one
			// always re-applies so the platform holds the new expiry.
			if expiry != nil {
				return false, nil
			}
			status, err := c.members.GetRestrictionStatus(ctx, chatID, target.ID)
			if err != nil {
				return false, err
			}
			return status.Restricted && status.Until == nil, nil
		},
		mutate: func(ctx context.Context) error {
			return c.members.Restrict(ctx, chatID, target.ID, expiry)
		},
		apply: func(state *ChatState) {
			state.recordMute(target.ID, expiry, target.DisplayName)
		},
	}
}

func (c *Coordinator) unmuteTransition(chatID int64, target Target) transition {
	return transition{
		action: ActionUnmute,
		reconcile: func(ctx context.Context) (bool, error) {
			status, err := c.members.GetRestrictionStatus(ctx, chatID, target.ID)
			if err != nil {
				return false, err
			}
			return !status.Restricted, nil
		},
		mutate: func(ctx context.Context) error {
			return c.members.Unrestrict(ctx, chatID, target.ID)
		},
		apply: func(state *ChatState) {
			state.clearMute(target.ID)
		},
	}
}

// Mute restricts the target until the instant encoded by durationToken, or permanently when
// the token is empty.
func (c *Coordinator) Mute(ctx context.Context, chatID int64, target Target, durationToken string) (res *ActionResult, err error) {
	ctx, scope := c.begin(ctx, ActionMute, chatID, target.ID)
	defer func() { scope.end(outcomeOf(res), err) }()

	var expiry *time.Time
	if durationToken != "" {
		until, parseErr := ParseDuration(durationToken, c.now())
		if parseErr != nil {
			return nil, parseErr
		}
		expiry = &until
	}

	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		res, err = c.run(ctx, state, target, c.muteTransition(chatID, target, expiry))
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Expiry = expiry
	return res, nil
}

func (c *Coordinator) Unmute(ctx context.Context, chatID int64, target Target) (res *ActionResult, err error) {
	ctx, scope := c.begin(ctx, ActionUnmute, chatID, target.ID)
	defer func() { scope.end(outcomeOf(res), err) }()

	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		res, err = c.run(ctx, state, target, c.unmuteTransition(chatID, target))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Ban removes the target from the chat. The mute ledger is left as is.
func (c *Coordinator) Ban(ctx context.Context, chatID int64, target Target) (res *ActionResult, err error) {
	ctx, scope := c.begin(ctx, ActionBan, chatID, target.ID)
	defer func() { scope.end(outcomeOf(res), err) }()

	t := transition{
		action: ActionBan,
		reconcile: func(ctx context.Context) (bool, error) {
			status, err := c.members.GetMembershipStatus(ctx, chatID, target.ID)
			if err != nil {
				return false, err
			}
			return status == MembershipKicked || status == MembershipLeft, nil
		},
		mutate: func(ctx context.Context) error {
			return c.members.Ban(ctx, chatID, target.ID)
		},
	}
	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		res, err = c.run(ctx, state, target, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Unban lifts a ban and drops the target's mute record.
func (c *Coordinator) Unban(ctx context.Context, chatID int64, target Target) (res *ActionResult, err error) {
	ctx, scope := c.begin(ctx, ActionUnban, chatID, target.ID)
	defer func() { scope.end(outcomeOf(res), err) }()

	t := transition{
		action: ActionUnban,
		reconcile: func(ctx context.Context) (bool, error) {
			status, err := c.members.GetMembershipStatus(ctx, chatID, target.ID)
			if err != nil {
				return false, err
			}
			return status != MembershipKicked, nil
		},
		mutate: func(ctx context.Context) error {
			return c.members.Unban(ctx, chatID, target.ID)
		},
		apply: func(state *ChatState) {
			state.clearMute(target.ID)
		},
	}
	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		res, err = c.run(ctx, state, target, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Kick removes the target without leaving a ban behind: a ban immediately followed by an unban.
// A member still banned by an earlier kick whose unban failed only gets the unban.
func (c *Coordinator) Kick(ctx context.Context, chatID int64, target Target) (res *ActionResult, err error) {
	ctx, scope := c.begin(ctx, ActionKick, chatID, target.ID)
	defer func() { scope.end(outcomeOf(res), err) }()

	var banned bool
	t := transition{
		action: ActionKick,
		reconcile: func(ctx context.Context) (bool, error) {
			status, err := c.members.GetMembershipStatus(ctx, chatID, target.ID)
			if err != nil {
				return false, err
			}
			banned = status == MembershipKicked
			return status == MembershipLeft, nil
		},
		mutate: func(ctx context.Context) error {
			if !banned {
				if err := c.members.Ban(ctx, chatID, target.ID); err != nil && !isAlreadyInState(err) {
					return err
				}
			}
			return c.members.Unban(ctx, chatID, target.ID)
		},
	}
	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		res, err = c.run(ctx, state, target, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UnmuteResult reports a bulk unmute. Members that failed keep their ledger entry.
type UnmuteResult struct {
	Unmuted []int64
	Failed  map[int64]error
}

// UnmuteAll runs the unmute protocol for every active mute of the chat, a bounded number of
// members at a time. The ledger is only updated after all platform calls have returned.
func (c *Coordinator) UnmuteAll(ctx context.Context, chatID int64) (res *UnmuteResult, err error) {
	ctx, scope := c.begin(ctx, ActionUnmuteAll, chatID, 0)
	defer func() { scope.end(OutcomeApplied, err) }()

	res = &UnmuteResult{Failed: map[int64]error{}}
	err = c.withChat(ctx, chatID, true, func(state *ChatState) error {
		mutes := sortedMutes(state.listActiveMutes(c.now()))
		if len(mutes) == 0 {
			return nil
		}

		var (
			mu      sync.Mutex
			applied []Target
		)
		g := errgroup.Group{}
		g.SetLimit(c.unmuteAllLimit)
		for _, mute := range mutes {
			target := Target{ID: mute.MemberID, DisplayName: mute.DisplayName}
			g.Go(func() error {
				_, execErr := c.execute(ctx, chatID, target, c.unmuteTransition(chatID, target))
				mu.Lock()
				defer mu.Unlock()
				if execErr != nil {
					res.Failed[target.ID] = execErr
					return nil
				}
				applied = append(applied, target)
				return nil
			})
		}
		_ = g.Wait()

		for _, target := range applied {
			state.clearMute(target.ID)
			res.Unmuted = append(res.Unmuted, target.ID)
		}
		sort.Slice(res.Unmuted, func(i, j int) bool { return res.Unmuted[i] < res.Unmuted[j] })
		return nil
	})
	if err != nil {
		return nil, err
	}
	scope.entry = scope.entry.WithField("unmuted", len(res.Unmuted)).WithField("failed", len(res.Failed))
	return res, nil
}

// Promote grants the target administrator rights.
func (c *Coordinator) Promote(ctx context.Context, chatID int64, target Target) (*ActionResult, error) {
	return c.setAdministrator(ctx, chatID, target, true)
}

// Demote revokes administrator rights. The owner cannot be demoted.
func (c *Coordinator) Demote(ctx context.Context, chatID int64, target Target) (*ActionResult, error) {
	return c.setAdministrator(ctx, chatID, target, false)
}

func (c *Coordinator) setAdministrator(ctx context.Context, chatID int64, target Target, promote bool) (res *ActionResult, err error) {
	action := ActionDemote
	if promote {
		action = ActionPromote
	}
	ctx, scope := c.begin(ctx, action, chatID, target.ID)
	defer func() { scope.end(outcomeOf(res), err) }()

	if target.ID == 0 {
		return nil, errors.WithMessage(ErrTargetNotFound, "empty target")
	}

	err = c.withChat(ctx, chatID, false, func(state *ChatState) error {
		role, roleErr := c.members.GetRole(ctx, chatID, target.ID)
		if roleErr != nil {
			return errors.WithMessage(classifyPlatformError("get role", roleErr), "check target role")
		}
		if role == RoleOwner {
			return errors.Wrap(ErrHierarchyViolation, "target is the chat owner")
		}

		res = &ActionResult{Action: action, ChatID: chatID, Target: target}
		if (role == RoleAdministrator) == promote {
			res.Outcome = OutcomeAlreadyInState
			return nil
		}

		if capErr := c.guardCapability(ctx, chatID, canPromote); capErr != nil {
			return capErr
		}
		if setErr := c.members.SetAdministrator(ctx, chatID, target.ID, promote); setErr != nil {
			setErr = classifyPlatformError(string(action), setErr)
			if isAlreadyInState(setErr) {
				res.Outcome = OutcomeAlreadyInState
				return nil
			}
			return errors.WithMessagef(setErr, "%s member %d", action, target.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Administrators lists the chat's administrators, owner included.
func (c *Coordinator) Administrators(ctx context.Context, chatID int64) ([]int64, error) {
	ids, err := c.members.ListAdministrators(ctx, chatID)
	if err != nil {
		return nil, errors.WithMessage(classifyPlatformError("list administrators", err), "list administrators")
	}
	return ids, nil
}

func outcomeOf(res *ActionResult) Outcome {
	if res == nil {
		return OutcomeApplied
	}
	return res.Outcome
}
