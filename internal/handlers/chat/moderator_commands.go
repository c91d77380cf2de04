package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"

	"github.com/iamwavecut/ngmod/internal/bot"
	"github.com/iamwavecut/ngmod/internal/i18n"
	"github.com/iamwavecut/ngmod/internal/moderation"
)

const expiryLayout = "2006-01-02 15:04 MST"

func (m *Moderator) commands() map[string]command {
	panel := command{access: accessModerator, run: m.panelCommand}
	return map[string]command{
		"start":        {access: accessAnyone, run: m.startCommand},
		"help":         {access: accessAnyone, run: m.helpCommand},
		"id":           {access: accessAnyone, run: m.idCommand},
		"roll":         {access: accessAnyone, run: m.rollCommand},
		"mute":         {access: accessModerator, run: m.muteCommand},
		"unmute":       {access: accessModerator, run: m.unmuteCommand},
		"ban":          {access: accessModerator, run: m.banCommand},
		"unban":        {access: accessModerator, run: m.unbanCommand},
		"kick":         {access: accessModerator, run: m.kickCommand},
		"warn":         {access: accessModerator, run: m.warnCommand},
		"rwarn":        {access: accessModerator, run: m.unwarnCommand},
		"allwarn":      {access: accessModerator, run: m.listWarningsCommand},
		"rallwarn":     {access: accessModerator, run: m.resetWarningsCommand},
		"setwarnlimit": {access: accessModerator, run: m.setWarnLimitCommand},
		"allmuted":     {access: accessModerator, run: m.listMutedCommand},
		"unmuteall":    {access: accessModerator, run: m.unmuteAllCommand},
		"lock":         {access: accessModerator, run: m.lockCommand(true)},
		"unlock":       {access: accessModerator, run: m.lockCommand(false)},
		"all":          {access: accessModerator, run: m.tagAdminsCommand},
		"modpanel":     panel,
		"mod":          panel,
		"m":            panel,
		"promote":      {access: accessAdministratorManager, run: m.administratorCommand(true)},
		"demote":       {access: accessAdministratorManager, run: m.administratorCommand(false)},
	}
}

func (m *Moderator) startCommand(_ context.Context, req *request) error {
	m.reply(req, i18n.Get("Moderation bot is active! Use /help to see my commands.", req.lang))
	return nil
}

func (m *Moderator) helpCommand(_ context.Context, req *request) error {
	m.reply(req, i18n.Get(`🛡️ <b>Moderation commands</b>

<b>⭐ Quick mod:</b>
<code>/mod</code> or <code>/m</code> - reply to a user to open the moderation panel.

<b>⚠️ Warnings (admins):</b>
<code>/warn [reason]</code> - issue a warning.
<code>/rwarn</code> - remove one warning (reply or ID).
<code>/allwarn</code> - list warned users.
<code>/rallwarn</code> - clear all warnings in the chat.
<code>/setwarnlimit &lt;num&gt;</code> - warnings before a permanent mute (default: 3).

<b>👥 Moderation (admins):</b>
<code>/mute [30m|1h|1d]</code>, <code>/unmute</code>, <code>/ban</code>, <code>/unban</code>, <code>/kick</code>
<code>/allmuted</code>, <code>/unmuteall</code> - manage mutes.
<code>/all [message]</code> - tag all administrators.
<code>/lock url</code>, <code>/unlock url</code> - anti-link lock.
<code>/promote</code>, <code>/demote</code> - chat owner only.

<b>ℹ️ Info:</b>
<code>/id</code>, <code>/roll</code>, <code>/help</code>`, req.lang))
	return nil
}

func (m *Moderator) idCommand(_ context.Context, req *request) error {
	m.reply(req, tool.ExecTemplate(i18n.Get(`👤 Your user ID: <code>{{ .user_id }}</code>
{{- if .chat_id }}
🏠 Chat ID: <code>{{ .chat_id }}</code>
{{- end }}`, req.lang), map[string]any{
		"user_id": req.user.ID,
		"chat_id": chatIDForDisplay(req.chat),
	}))
	return nil
}

func chatIDForDisplay(chat *api.Chat) any {
	if chat.IsPrivate() {
		return nil
	}
	return chat.ID
}

func (m *Moderator) rollCommand(_ context.Context, req *request) error {
	dice := api.NewDice(req.chat.ID)
	dice.MessageThreadID = req.msg.MessageThreadID
	return tool.Err(m.s.GetBot().Send(dice))
}

func (m *Moderator) target(ctx context.Context, req *request) (moderation.Target, string, error) {
	target, rest, err := resolveTarget(req.msg)
	if err != nil {
		return target, rest, err
	}
	m.describe(ctx, req.chat.ID, &target)
	return target, rest, nil
}

func (m *Moderator) muteCommand(ctx context.Context, req *request) error {
	target, rest, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	token, _, _ := strings.Cut(rest, " ")
	res, err := m.coord.Mute(ctx, req.chat.ID, target, token)
	if err != nil {
		return err
	}
	m.reply(req, muteText(res, req.lang))
	return nil
}

func (m *Moderator) unmuteCommand(ctx context.Context, req *request) error {
	target, _, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	res, err := m.coord.Unmute(ctx, req.chat.ID, target)
	if err != nil {
		return err
	}
	m.reply(req, unmuteText(res, req.lang))
	return nil
}

func (m *Moderator) banCommand(ctx context.Context, req *request) error {
	target, _, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	res, err := m.coord.Ban(ctx, req.chat.ID, target)
	if err != nil {
		return err
	}
	m.reply(req, banText(res, req.lang))
	return nil
}

func (m *Moderator) unbanCommand(ctx context.Context, req *request) error {
	target, _, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	res, err := m.coord.Unban(ctx, req.chat.ID, target)
	if err != nil {
		return err
	}
	text := i18n.Get("✅ {{ .name }} has been unbanned.", req.lang)
	if res.Outcome == moderation.OutcomeAlreadyInState {
		text = i18n.Get("✅ {{ .name }} is not banned.", req.lang)
	}
	m.reply(req, tool.ExecTemplate(text, map[string]any{"name": mention(res.Target)}))
	return nil
}

func (m *Moderator) kickCommand(ctx context.Context, req *request) error {
	target, _, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	res, err := m.coord.Kick(ctx, req.chat.ID, target)
	if err != nil {
		return err
	}
	m.reply(req, kickText(res, req.lang))
	return nil
}

func (m *Moderator) warnCommand(ctx context.Context, req *request) error {
	target, reason, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	res, err := m.coord.Warn(ctx, req.chat.ID, target, reason)
	if err != nil {
		return err
	}
	m.reply(req, warnText(target, reason, res, req.lang))
	return nil
}

func (m *Moderator) unwarnCommand(ctx context.Context, req *request) error {
	target, _, err := m.target(ctx, req)
	if err != nil {
		return err
	}
	res, err := m.coord.Unwarn(ctx, req.chat.ID, target.ID)
	if err != nil {
		return err
	}
	text := i18n.Get("✅ Removed one warning from {{ .name }}. Remaining: {{ .count }}.", req.lang)
	if !res.Changed {
		text = i18n.Get("✅ {{ .name }} has no active warnings to remove.", req.lang)
	}
	m.reply(req, tool.ExecTemplate(text, map[string]any{
		"name":  mention(target),
		"count": res.NewCount,
	}))
	return nil
}

func (m *Moderator) listWarningsCommand(ctx context.Context, req *request) error {
	warned, limit, err := m.coord.ListWarnings(ctx, req.chat.ID)
	if err != nil {
		return err
	}
	if len(warned) == 0 {
		m.reply(req, i18n.Get("✅ No users currently have active warnings in this chat.", req.lang))
		return nil
	}
	lines := make([]string, 0, len(warned)+1)
	lines = append(lines, tool.ExecTemplate(i18n.Get("⚠️ <b>Active warnings</b> (limit {{ .limit }}):", req.lang), map[string]any{"limit": limit}))
	for _, member := range warned {
		lines = append(lines, "• "+mention(moderation.Target{ID: member.MemberID})+": "+strconv.Itoa(member.Count)+"/"+strconv.Itoa(limit))
	}
	m.reply(req, strings.Join(lines, "\n"))
	return nil
}

func (m *Moderator) resetWarningsCommand(ctx context.Context, req *request) error {
	cleared, err := m.coord.ResetAllWarnings(ctx, req.chat.ID)
	if err != nil {
		return err
	}
	if cleared == 0 {
		m.reply(req, i18n.Get("✅ No active warnings found to remove.", req.lang))
		return nil
	}
	m.reply(req, tool.ExecTemplate(i18n.Get("✅ Cleared warnings for {{ .count }} user(s).", req.lang), map[string]any{"count": cleared}))
	return nil
}

func (m *Moderator) setWarnLimitCommand(ctx context.Context, req *request) error {
	arg := strings.TrimSpace(req.msg.CommandArguments())
	if arg == "" {
		limit, err := m.coord.WarnLimit(ctx, req.chat.ID)
		if err != nil {
			return err
		}
		m.reply(req, tool.ExecTemplate(i18n.Get("Current warning limit: {{ .limit }}. Usage: <code>/setwarnlimit &lt;num&gt;</code>", req.lang), map[string]any{"limit": limit}))
		return nil
	}
	limit, err := strconv.Atoi(arg)
	if err != nil {
		m.reply(req, i18n.Get("❌ Could not set warning limit. Please use a whole number.", req.lang))
		return nil
	}
	if err := m.coord.SetWarnLimit(ctx, req.chat.ID, limit); err != nil {
		if errors.Is(err, moderation.ErrInvalidArgument) {
			m.reply(req, i18n.Get("The warning limit must be at least 1.", req.lang))
			return nil
		}
		return err
	}
	m.reply(req, tool.ExecTemplate(i18n.Get("✅ Warning limit set to {{ .limit }}.", req.lang), map[string]any{"limit": limit}))
	return nil
}

func (m *Moderator) listMutedCommand(ctx context.Context, req *request) error {
	mutes, err := m.coord.ListActiveMutes(ctx, req.chat.ID)
	if err != nil {
		return err
	}
	if len(mutes) == 0 {
		m.reply(req, i18n.Get("✅ There are currently no muted users in this chat.", req.lang))
		return nil
	}
	lines := make([]string, 0, len(mutes)+1)
	lines = append(lines, i18n.Get("🔇 <b>Muted users:</b>", req.lang))
	for _, mute := range mutes {
		lines = append(lines, "• "+mention(moderation.Target{ID: mute.MemberID, DisplayName: mute.DisplayName})+" - "+expiryText(mute.Expiry, req.lang))
	}
	m.reply(req, strings.Join(lines, "\n"))
	return nil
}

func (m *Moderator) unmuteAllCommand(ctx context.Context, req *request) error {
	res, err := m.coord.UnmuteAll(ctx, req.chat.ID)
	if err != nil {
		return err
	}
	if len(res.Unmuted) == 0 && len(res.Failed) == 0 {
		m.reply(req, i18n.Get("✅ No users are currently tracked as muted.", req.lang))
		return nil
	}
	m.reply(req, tool.ExecTemplate(i18n.Get(`✅ Unmuted {{ .count }} user(s).
{{- if .failed }}
❌ Failed for {{ .failed }} user(s); they stay on the mute list.
{{- end }}`, req.lang), map[string]any{
		"count":  len(res.Unmuted),
		"failed": len(res.Failed),
	}))
	return nil
}

func (m *Moderator) lockCommand(enabled bool) func(ctx context.Context, req *request) error {
	return func(ctx context.Context, req *request) error {
		kind := strings.TrimSpace(req.msg.CommandArguments())
		if kind == "" {
			usage := i18n.Get("Usage: <code>/lock &lt;type&gt;</code>, e.g. <code>/lock url</code>", req.lang)
			if !enabled {
				usage = i18n.Get("Usage: <code>/unlock &lt;type&gt;</code>, e.g. <code>/unlock url</code>", req.lang)
			}
			m.reply(req, usage)
			return nil
		}
		if err := m.coord.SetLock(ctx, req.chat.ID, kind, enabled); err != nil {
			return err
		}
		if enabled {
			m.reply(req, i18n.Get("🔒 <b>URL lock</b> activated! Messages containing links will now be deleted.", req.lang))
		} else {
			m.reply(req, i18n.Get("🔓 <b>URL lock</b> deactivated! Links are now allowed.", req.lang))
		}
		return nil
	}
}

func (m *Moderator) tagAdminsCommand(ctx context.Context, req *request) error {
	members, err := m.ops.AdministratorMembers(ctx, req.chat.ID)
	if err != nil {
		return err
	}
	mentions := make([]string, 0, len(members))
	for _, member := range members {
		if member.User == nil || member.User.IsBot || member.User.ID == m.s.GetSelfID() {
			continue
		}
		mentions = append(mentions, mention(moderation.Target{ID: member.User.ID, DisplayName: bot.GetFullName(member.User)}))
	}
	if len(mentions) == 0 {
		m.reply(req, i18n.Get("There are no administrators to tag in this chat.", req.lang))
		return nil
	}

	header := api.EscapeText(api.ModeHTML, strings.TrimSpace(req.msg.CommandArguments()))
	if header == "" {
		header = i18n.Get("🚨 <b>ATTENTION ADMINS</b>", req.lang)
	}
	m.reply(req, header)
	for _, chunk := range chunkStrings(mentions, m.config.MentionChunk) {
		msg := api.NewMessage(req.chat.ID, strings.Join(chunk, " "))
		msg.ParseMode = api.ModeHTML
		msg.MessageThreadID = req.msg.MessageThreadID
		if err := tool.Err(m.s.GetBot().Send(msg)); err != nil {
			return errors.Wrap(err, "send mentions")
		}
	}
	return nil
}

func chunkStrings(items []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func (m *Moderator) administratorCommand(promote bool) func(ctx context.Context, req *request) error {
	return func(ctx context.Context, req *request) error {
		target, _, err := m.target(ctx, req)
		if err != nil {
			return err
		}
		if !promote && target.ID == m.s.GetSelfID() {
			m.reply(req, i18n.Get("I cannot demote myself. Please demote me manually.", req.lang))
			return nil
		}

		var res *moderation.ActionResult
		if promote {
			res, err = m.coord.Promote(ctx, req.chat.ID, target)
		} else {
			res, err = m.coord.Demote(ctx, req.chat.ID, target)
		}
		if err != nil {
			return err
		}

		var text string
		switch {
		case promote && res.Outcome == moderation.OutcomeAlreadyInState:
			text = i18n.Get("✅ {{ .name }} is already an administrator.", req.lang)
		case promote:
			text = i18n.Get("👑 Promoted {{ .name }} to administrator.", req.lang)
		case res.Outcome == moderation.OutcomeAlreadyInState:
			text = i18n.Get("✅ {{ .name }} is not an administrator.", req.lang)
		default:
			text = i18n.Get("🔻 Demoted {{ .name }} to a regular member.", req.lang)
		}
		m.reply(req, tool.ExecTemplate(text, map[string]any{"name": mention(res.Target)}))
		return nil
	}
}

func muteText(res *moderation.ActionResult, lang string) string {
	var text string
	switch {
	case res.Outcome == moderation.OutcomeAlreadyInState:
		text = i18n.Get("✅ {{ .name }} is already muted.", lang)
	case res.Expiry == nil:
		text = i18n.Get("🔇 {{ .name }} has been muted permanently.", lang)
	default:
		text = i18n.Get("🔇 {{ .name }} has been muted until {{ .until }}.", lang)
	}
	vars := map[string]any{"name": mention(res.Target)}
	if res.Expiry != nil {
		vars["until"] = res.Expiry.UTC().Format(expiryLayout)
	}
	return tool.ExecTemplate(text, vars)
}

func unmuteText(res *moderation.ActionResult, lang string) string {
	text := i18n.Get("🔊 {{ .name }} has been unmuted.", lang)
	if res.Outcome == moderation.OutcomeAlreadyInState {
		text = i18n.Get("✅ {{ .name }} is not muted.", lang)
	}
	return tool.ExecTemplate(text, map[string]any{"name": mention(res.Target)})
}

func banText(res *moderation.ActionResult, lang string) string {
	text := i18n.Get("🔨 {{ .name }} has been banned.", lang)
	if res.Outcome == moderation.OutcomeAlreadyInState {
		text = i18n.Get("✅ {{ .name }} is already banned.", lang)
	}
	return tool.ExecTemplate(text, map[string]any{"name": mention(res.Target)})
}

func kickText(res *moderation.ActionResult, lang string) string {
	text := i18n.Get("👢 {{ .name }} has been kicked.", lang)
	if res.Outcome == moderation.OutcomeAlreadyInState {
		text = i18n.Get("✅ {{ .name }} is not in the chat.", lang)
	}
	return tool.ExecTemplate(text, map[string]any{"name": mention(res.Target)})
}

func warnText(target moderation.Target, reason string, res *moderation.WarnResult, lang string) string {
	var text string
	switch {
	case res.AlreadyMuted:
		text = i18n.Get("✅ {{ .name }} is already permanently muted.", lang)
	case res.Escalated:
		text = i18n.Get("🚨 <b>Final warning!</b> {{ .name }} reached the limit of {{ .limit }} warnings and has been permanently muted.", lang)
	default:
		text = i18n.Get(`⚠️ Warning issued to {{ .name }}.
Count: {{ .count }} of {{ .limit }}
{{- if .reason }}
Reason: {{ .reason }}
{{- end }}`, lang)
	}
	return tool.ExecTemplate(text, map[string]any{
		"name":   mention(target),
		"count":  res.Count,
		"limit":  res.Limit,
		"reason": api.EscapeText(api.ModeHTML, reason),
	})
}

func expiryText(expiry *time.Time, lang string) string {
	if expiry == nil {
		return i18n.Get("permanently", lang)
	}
	return tool.ExecTemplate(i18n.Get("until {{ .until }}", lang), map[string]any{"until": expiry.UTC().Format(expiryLayout)})
}
