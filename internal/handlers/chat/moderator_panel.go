package handlers

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngmod/internal/i18n"
	"github.com/iamwavecut/ngmod/internal/moderation"
)

func (m *Moderator) panelCommand(ctx context.Context, req *request) error {
	target, _, err := m.target(ctx, req)
	if err != nil {
		m.reply(req, i18n.Get("Please reply to a user's message to open the moderation panel.", req.lang))
		return nil
	}

	keyboard := api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(i18n.Get("🔨 Ban (permanent)", req.lang), encodeCallback(panelBan, target.ID)),
			api.NewInlineKeyboardButtonData(i18n.Get("🔇 Mute (permanent)", req.lang), encodeCallback(panelMute, target.ID)),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(i18n.Get("⚠️ Warn", req.lang), encodeCallback(panelWarn, target.ID)),
			api.NewInlineKeyboardButtonData(i18n.Get("👢 Kick", req.lang), encodeCallback(panelKick, target.ID)),
		),
		api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(i18n.Get("✅ Unban / unmute", req.lang), encodeCallback(panelUnrestrict, target.ID)),
		),
	)

	msg := api.NewMessage(req.chat.ID, tool.ExecTemplate(i18n.Get("Moderation panel for {{ .name }}:", req.lang), map[string]any{
		"name": mention(target),
	}))
	msg.ParseMode = api.ModeHTML
	msg.ReplyParameters.MessageID = req.msg.MessageID
	msg.ReplyParameters.ChatID = req.chat.ID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	msg.MessageThreadID = req.msg.MessageThreadID
	msg.ReplyMarkup = &keyboard
	return tool.Err(m.s.GetBot().Send(msg))
}

// handleCallback runs a panel action. The clicking user is checked again on every click, the
// panel author is irrelevant.
func (m *Moderator) handleCallback(ctx context.Context, cq *api.CallbackQuery, chat *api.Chat, user *api.User) error {
	entry := m.getLogEntry().WithFields(log.Fields{"method": "handleCallback", "data": cq.Data})
	if chat == nil || user == nil || cq.Message == nil {
		return m.answer(cq, "", false)
	}
	lang := m.s.GetLanguage(ctx, chat.ID, user)

	action, memberID, err := decodeCallback(cq.Data)
	if err != nil {
		entry.WithError(err).Debug("invalid callback")
		return m.answer(cq, i18n.Get("❌ Invalid callback data.", lang), true)
	}

	allowed, err := m.authorize(ctx, chat.ID, user.ID, accessModerator)
	if err != nil {
		text, _ := errorText(err, lang)
		return m.answer(cq, text, true)
	}
	if !allowed {
		return m.answer(cq, i18n.Get("🚫 Permission denied. You are not an admin.", lang), true)
	}

	target := moderation.Target{ID: memberID}
	m.describe(ctx, chat.ID, &target)

	text, err := m.runPanelAction(ctx, chat.ID, action, target, lang)
	if err != nil {
		text, expected := errorText(err, lang)
		if !expected {
			entry.WithError(err).Error("panel action failed")
		}
		return m.answer(cq, text, true)
	}

	edit := api.NewEditMessageText(chat.ID, cq.Message.MessageID, text)
	edit.ParseMode = api.ModeHTML
	if err := tool.Err(m.s.GetBot().Send(edit)); err != nil {
		entry.WithError(err).Warn("cant update panel")
	}
	return m.answer(cq, "", false)
}

func (m *Moderator) runPanelAction(ctx context.Context, chatID int64, action panelAction, target moderation.Target, lang string) (string, error) {
	switch action {
	case panelBan:
		res, err := m.coord.Ban(ctx, chatID, target)
		if err != nil {
			return "", err
		}
		return banText(res, lang), nil
	case panelMute:
		res, err := m.coord.Mute(ctx, chatID, target, "")
		if err != nil {
			return "", err
		}
		return muteText(res, lang), nil
	case panelWarn:
		res, err := m.coord.Warn(ctx, chatID, target, "")
		if err != nil {
			return "", err
		}
		return warnText(target, "", res, lang), nil
	case panelKick:
		res, err := m.coord.Kick(ctx, chatID, target)
		if err != nil {
			return "", err
		}
		return kickText(res, lang), nil
	case panelUnrestrict:
		if _, err := m.coord.Unban(ctx, chatID, target); err != nil {
			return "", err
		}
		if _, err := m.coord.Unmute(ctx, chatID, target); err != nil {
			return "", err
		}
		return tool.ExecTemplate(i18n.Get("✅ Unbanned / unmuted {{ .name }}.", lang), map[string]any{"name": mention(target)}), nil
	}
	return "", errors.Errorf("unknown panel action %q", action)
}

func (m *Moderator) answer(cq *api.CallbackQuery, text string, alert bool) error {
	callback := api.NewCallback(cq.ID, text)
	if alert {
		callback = api.NewCallbackWithAlert(cq.ID, text)
	}
	_, err := m.s.GetBot().Request(callback)
	return errors.WithMessage(err, "answer callback")
}
