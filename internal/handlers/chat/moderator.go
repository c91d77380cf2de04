package handlers

import (
	"context"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/iamwavecut/ngmod/internal/bot"
	"github.com/iamwavecut/ngmod/internal/i18n"
	"github.com/iamwavecut/ngmod/internal/moderation"
	"github.com/iamwavecut/ngmod/internal/observability"
	"github.com/iamwavecut/ngmod/internal/policy/permissions"
)

const defaultMentionChunk = 5

// ChatOperations is the part of the platform adapter the handler talks to directly.
type ChatOperations interface {
	AdministratorMembers(ctx context.Context, chatID int64) ([]api.ChatMember, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	InvalidateCapabilities(chatID int64)
}

type ModeratorConfig struct {
	// OwnerID may promote and demote in every chat; zero disables the override.
	OwnerID      int64
	MentionChunk int
}

// Moderator turns chat commands and panel clicks into coordinator calls and enforces the URL
// lock on plain messages.
type Moderator struct {
	s      bot.Service
	coord  *moderation.Coordinator
	ops    ChatOperations
	config ModeratorConfig
	router map[string]command
}

type commandAccess int

const (
	accessAnyone commandAccess = iota
	accessModerator
	accessAdministratorManager
)

type command struct {
	access commandAccess
	run    func(ctx context.Context, req *request) error
}

type request struct {
	msg  *api.Message
	chat *api.Chat
	user *api.User
	lang string
}

func NewModerator(s bot.Service, coord *moderation.Coordinator, ops ChatOperations, config ModeratorConfig) *Moderator {
	if config.MentionChunk < 1 {
		config.MentionChunk = defaultMentionChunk
	}
	m := &Moderator{
		s:      s,
		coord:  coord,
		ops:    ops,
		config: config,
	}
	m.router = m.commands()
	m.getLogEntry().Debug("created new moderator")
	return m
}

func (m *Moderator) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if u.MyChatMember != nil {
		// the bot's own rights changed
		m.ops.InvalidateCapabilities(u.MyChatMember.Chat.ID)
		return true, nil
	}

	if u.CallbackQuery != nil {
		if !strings.HasPrefix(u.CallbackQuery.Data, callbackPrefix) {
			return true, nil
		}
		return false, m.handleCallback(ctx, u.CallbackQuery, chat, user)
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || chat == nil || user == nil {
		return true, nil
	}

	if u.Message != nil && msg.IsCommand() {
		handled, err := m.handleCommand(ctx, msg, chat, user)
		return !handled, err
	}

	if chat.IsPrivate() {
		return true, nil
	}
	if m.coord.ClassifyForSpam(ctx, chat.ID, bot.MessageText(msg)) {
		return false, m.rejectLink(ctx, msg, chat, user)
	}
	return true, nil
}

func (m *Moderator) handleCommand(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	cmd, ok := m.router[strings.ToLower(msg.Command())]
	if !ok {
		return false, nil
	}
	req := &request{
		msg:  msg,
		chat: chat,
		user: user,
		lang: m.s.GetLanguage(ctx, chat.ID, user),
	}

	if cmd.access != accessAnyone {
		if chat.IsPrivate() {
			m.reply(req, i18n.Get("🛡️ This command must be used in a group or supergroup chat.", req.lang))
			return true, nil
		}
		allowed, err := m.authorize(ctx, chat.ID, user.ID, cmd.access)
		if err != nil {
			m.replyError(req, err)
			return true, nil
		}
		if !allowed {
			m.reply(req, deniedText(cmd.access, req.lang))
			return true, nil
		}
	}

	if err := cmd.run(ctx, req); err != nil {
		m.replyError(req, err)
	}
	return true, nil
}

func (m *Moderator) authorize(ctx context.Context, chatID, userID int64, access commandAccess) (bool, error) {
	if access == accessAnyone {
		return true, nil
	}
	if access == accessAdministratorManager && m.config.OwnerID != 0 && userID == m.config.OwnerID {
		return true, nil
	}
	member, err := m.chatMember(ctx, chatID, userID)
	if err != nil {
		return false, errors.WithMessage(err, "check issuer")
	}
	if access == accessAdministratorManager {
		return permissions.CanManageAdministrators(member, userID, m.config.OwnerID), nil
	}
	return permissions.IsModerator(member), nil
}

func (m *Moderator) chatMember(ctx context.Context, chatID, userID int64) (*api.ChatMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, moderation.NewPlatformError(moderation.PlatformTransient, "get chat member", err)
	}
	member, err := m.s.GetBot().GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get chat member")
	}
	return &member, nil
}

// describe fills in a display name for targets given by ID. Lookup failures leave it empty.
func (m *Moderator) describe(ctx context.Context, chatID int64, target *moderation.Target) {
	if target.DisplayName != "" {
		return
	}
	member, err := m.chatMember(ctx, chatID, target.ID)
	if err != nil || member.User == nil {
		return
	}
	target.DisplayName = bot.GetFullName(member.User)
}

func (m *Moderator) rejectLink(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) error {
	fields := []zap.Field{
		zap.Int64("chat_id", chat.ID),
		zap.Int64("user_id", user.ID),
		zap.Int("message_id", msg.MessageID),
	}
	if err := m.ops.DeleteMessage(ctx, chat.ID, msg.MessageID); err != nil {
		observability.Logger.Warn("failed to delete locked link", append(fields, zap.Error(err))...)
		return errors.Wrap(err, "delete locked link")
	}
	observability.RecordSpamRejection()
	observability.Logger.Info("link deleted by url lock", fields...)

	notice := api.NewMessage(chat.ID, i18n.Get("🛑 <b>Link deleted!</b> URLs are not allowed here.", m.s.GetLanguage(ctx, chat.ID, user)))
	notice.ParseMode = api.ModeHTML
	notice.MessageThreadID = msg.MessageThreadID
	_ = tool.Err(m.s.GetBot().Send(notice))
	return nil
}

func (m *Moderator) reply(req *request, text string) {
	msg := api.NewMessage(req.chat.ID, text)
	msg.ParseMode = api.ModeHTML
	msg.ReplyParameters.MessageID = req.msg.MessageID
	msg.ReplyParameters.ChatID = req.chat.ID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	msg.MessageThreadID = req.msg.MessageThreadID
	_ = tool.Err(m.s.GetBot().Send(msg))
}

func (m *Moderator) replyError(req *request, err error) {
	text, expected := errorText(err, req.lang)
	if !expected {
		m.getLogEntry().WithError(err).WithFields(log.Fields{
			"chat_id": req.chat.ID,
			"user":    bot.GetUN(req.user),
			"command": req.msg.Command(),
		}).Error("command failed")
	}
	m.reply(req, text)
}

// errorText renders a failure for the chat and reports whether it was an expected outcome.
func errorText(err error, lang string) (string, bool) {
	switch {
	case errors.Is(err, moderation.ErrHierarchyViolation):
		return i18n.Get("🚫 Cannot act on an administrator or the chat owner.", lang), true
	case errors.Is(err, moderation.ErrInsufficientCapability):
		return i18n.Get("❌ I lack the admin rights for this action. Grant me the required permission and try again.", lang), true
	case errors.Is(err, moderation.ErrInvalidDurationFormat):
		return i18n.Get("❌ Invalid duration format. Use: <code>/mute &lt;time&gt;&lt;unit&gt;</code>, e.g. <code>/mute 30m</code>, <code>/mute 1h</code>, <code>/mute 1d</code>.", lang), true
	case errors.Is(err, moderation.ErrTargetNotFound):
		return i18n.Get("Please reply to a user's message or provide their user ID.", lang), true
	case errors.Is(err, moderation.ErrUnknownLockKind):
		return i18n.Get("Unknown lock type. Available: <code>url</code>.", lang), true
	case errors.Is(err, moderation.ErrInvalidArgument):
		return i18n.Get("❌ Invalid value.", lang), true
	case errors.Is(err, moderation.ErrTransientPlatform):
		return i18n.Get("⏳ Telegram did not respond in time. Please try again.", lang), true
	case errors.Is(err, moderation.ErrPlatformRejected):
		return i18n.Get("❌ Telegram rejected the action. Check my admin rights.", lang), true
	default:
		return i18n.Get("❌ Something went wrong. Please try again later.", lang), false
	}
}

func deniedText(access commandAccess, lang string) string {
	if access == accessAdministratorManager {
		return i18n.Get("🛑 <b>Access denied.</b> Only the chat owner or the bot owner can use this command.", lang)
	}
	return i18n.Get("🚫 <b>Permission denied.</b> You must be an administrator to use this command.", lang)
}

// resolveTarget picks the author of the replied message, or else a numeric user ID given as the
// first argument. It returns the remaining arguments.
func resolveTarget(msg *api.Message) (moderation.Target, string, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil && reply.ForumTopicCreated == nil {
		return moderation.Target{ID: reply.From.ID, DisplayName: bot.GetFullName(reply.From)}, args, nil
	}

	first, rest, _ := strings.Cut(args, " ")
	id, err := strconv.ParseInt(first, 10, 64)
	if err != nil || id <= 0 {
		return moderation.Target{}, args, errors.WithMessage(moderation.ErrTargetNotFound, "no reply and no user id")
	}
	return moderation.Target{ID: id}, strings.TrimSpace(rest), nil
}

func mention(target moderation.Target) string {
	name := target.DisplayName
	if name == "" {
		name = strconv.FormatInt(target.ID, 10)
	}
	return `<a href="tg://user?id=` + strconv.FormatInt(target.ID, 10) + `">` + api.EscapeText(api.ModeHTML, name) + `</a>`
}

func (m *Moderator) getLogEntry() *log.Entry {
	return log.WithField("object", "Moderator")
}
