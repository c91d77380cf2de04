package moderation

import (
	"context"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamwavecut/ngmod/internal/observability"
)

const defaultUnmuteAllParallelism = 4

type Action string

const (
	ActionMute      Action = "mute"
	ActionUnmute    Action = "unmute"
	ActionUnmuteAll Action = "unmute_all"
	ActionBan       Action = "ban"
	ActionUnban     Action = "unban"
	ActionKick      Action = "kick"
	ActionWarn      Action = "warn"
	ActionUnwarn    Action = "unwarn"
	ActionPromote   Action = "promote"
	ActionDemote    Action = "demote"
)

type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeAlreadyInState
)

func (o Outcome) String() string {
	if o == OutcomeAlreadyInState {
		return "already_in_state"
	}
	return "applied"
}

// Target identifies the member an action is aimed at. DisplayName is only kept for listings.
type Target struct {
	ID          int64
	DisplayName string
}

type ActionResult struct {
	Action  Action
	ChatID  int64
	Target  Target
	Outcome Outcome
	Expiry  *time.Time
}

// Coordinator applies moderation actions against the platform and keeps the chat ledgers
// consistent with what the platform accepted. Calls for the same chat are serialized for the
// whole duration of the action, platform round-trips included.
type Coordinator struct {
	store          *Store
	members        MembershipService
	snapshots      SnapshotStore
	now            func() time.Time
	logger         *log.Entry
	unmuteAllLimit int
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithSnapshotStore(store SnapshotStore) Option {
	return func(c *Coordinator) {
		c.snapshots = store
	}
}

func WithUnmuteAllParallelism(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.unmuteAllLimit = n
		}
	}
}

func NewCoordinator(store *Store, members MembershipService, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		members:        members,
		now:            time.Now,
		logger:         log.WithField("object", "Coordinator"),
		unmuteAllLimit: defaultUnmuteAllParallelism,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// withChat runs fn while owning the chat. Mutating calls persist the state when fn succeeds.
func (c *Coordinator) withChat(ctx context.Context, chatID int64, mutating bool, fn func(state *ChatState) error) error {
	state := c.store.GetOrCreate(chatID)
	if err := state.acquire(ctx); err != nil {
		return NewPlatformError(PlatformTransient, "acquire chat", err)
	}
	defer state.release()

	c.ensureLoaded(ctx, state)
	if err := fn(state); err != nil {
		return err
	}
	if mutating {
		c.persist(ctx, state)
	}
	return nil
}

// ensureLoaded must be called with the chat lock held.
func (c *Coordinator) ensureLoaded(ctx context.Context, state *ChatState) {
	if state.loaded.Load() {
		return
	}
	state.loaded.Store(true)
	if c.snapshots == nil {
		return
	}
	snap, err := c.snapshots.LoadChatSnapshot(ctx, state.ChatID)
	if err != nil {
		c.logger.WithError(err).WithField("chat_id", state.ChatID).Warn("failed to load chat snapshot")
		return
	}
	state.restore(snap)
}

func (c *Coordinator) persist(ctx context.Context, state *ChatState) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.SaveChatSnapshot(ctx, state.snapshot()); err != nil {
		c.logger.WithError(err).WithField("chat_id", state.ChatID).Error("failed to save chat snapshot")
	}
}

type actionScope struct {
	span   trace.Span
	entry  *log.Entry
	finish func(outcome string)
}

func (c *Coordinator) begin(ctx context.Context, action Action, chatID, memberID int64) (context.Context, *actionScope) {
	actionID := uuid.New()
	ctx, span := observability.Tracer().Start(ctx, "moderation."+string(action), trace.WithAttributes(
		attribute.String("action_id", actionID),
		attribute.Int64("chat_id", chatID),
		attribute.Int64("member_id", memberID),
	))
	return ctx, &actionScope{
		span: span,
		entry: c.logger.WithFields(log.Fields{
			"action":    action,
			"action_id": actionID,
			"chat_id":   chatID,
			"member_id": memberID,
		}),
		finish: observability.StartAction(string(action)),
	}
}

func (s *actionScope) end(outcome Outcome, err error) {
	defer s.span.End()
	if err != nil {
		label := errorLabel(err)
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, label)
		s.finish(label)
		entry := s.entry.WithError(err).WithField("outcome", label)
		if errors.Is(err, ErrTransientPlatform) {
			entry.Warn("moderation action failed")
		} else {
			entry.Info("moderation action refused")
		}
		return
	}
	s.span.SetAttributes(attribute.String("outcome", outcome.String()))
	s.finish(outcome.String())
	s.entry.WithField("outcome", outcome.String()).Info("moderation action completed")
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrHierarchyViolation):
		return "hierarchy_violation"
	case errors.Is(err, ErrInsufficientCapability):
		return "insufficient_capability"
	case errors.Is(err, ErrTargetNotFound):
		return "target_not_found"
	case errors.Is(err, ErrTransientPlatform):
		return "transient"
	case errors.Is(err, ErrInvalidDurationFormat), errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "rejected"
	}
}

// guardTarget refuses actions against administrators and the owner. An unknown role is not
// a privileged one.
func (c *Coordinator) guardTarget(ctx context.Context, chatID int64, target Target) error {
	if target.ID == 0 {
		return errors.WithMessage(ErrTargetNotFound, "empty target")
	}
	role, err := c.members.GetRole(ctx, chatID, target.ID)
	if err != nil {
		return errors.WithMessage(classifyPlatformError("get role", err), "check target role")
	}
	if role.IsPrivileged() {
		return errors.Wrapf(ErrHierarchyViolation, "target %d is %s", target.ID, role)
	}
	return nil
}

func (c *Coordinator) guardCapability(ctx context.Context, chatID int64, has func(Capabilities) bool) error {
	caps, err := c.members.GetBotCapabilities(ctx, chatID)
	if err != nil {
		return errors.WithMessage(classifyPlatformError("get bot capabilities", err), "check bot capabilities")
	}
	if !has(caps) {
		return ErrInsufficientCapability
	}
	return nil
}

func canRestrict(caps Capabilities) bool { return caps.CanRestrictMembers }
func canPromote(caps Capabilities) bool  { return caps.CanPromoteMembers }

// transition describes one destructive action. reconcile reports whether the platform
// already has the requested status.
type transition struct {
	action    Action
	reconcile func(ctx context.Context) (bool, error)
	mutate    func(ctx context.Context) error
	apply     func(state *ChatState)

	// targetChecked is set when the caller already ran guardTarget under the same lock.
	targetChecked bool
}

// execute performs the platform side of a transition and never touches chat state.
func (c *Coordinator) execute(ctx context.Context, chatID int64, target Target, t transition) (Outcome, error) {
	if !t.targetChecked {
		if err := c.guardTarget(ctx, chatID, target); err != nil {
			return OutcomeApplied, err
		}
	}

	already, err := t.reconcile(ctx)
	if err != nil {
		return OutcomeApplied, errors.WithMessagef(classifyPlatformError("read status", err), "reconcile %s", t.action)
	}
	if already {
		return OutcomeAlreadyInState, nil
	}

	if err := c.guardCapability(ctx, chatID, canRestrict); err != nil {
		return OutcomeApplied, err
	}

	if err := t.mutate(ctx); err != nil {
		err = classifyPlatformError(string(t.action), err)
		if isAlreadyInState(err) {
			return OutcomeAlreadyInState, nil
		}
		return OutcomeApplied, errors.WithMessagef(err, "%s member %d", t.action, target.ID)
	}
	return OutcomeApplied, nil
}

// run executes a transition and applies its ledger update. The chat lock must be held.
func (c *Coordinator) run(ctx context.Context, state *ChatState, target Target, t transition) (*ActionResult, error) {
	outcome, err := c.execute(ctx, state.ChatID, target, t)
	if err != nil {
		return nil, err
	}
	if t.apply != nil {
		t.apply(state)
	}
	return &ActionResult{
		Action:  t.action,
		ChatID:  state.ChatID,
		Target:  target,
		Outcome: outcome,
	}, nil
}
