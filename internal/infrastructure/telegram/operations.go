package telegram

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngmod/internal/moderation"
)

const capabilityCacheSize = 1024

// BotAPI is the subset of *api.BotAPI the adapter talks to.
type BotAPI interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
	GetChatAdministrators(config api.ChatAdministratorsConfig) ([]api.ChatMember, error)
}

// Operations implements moderation.MembershipService on top of the Bot API.
type Operations struct {
	bot    BotAPI
	selfID int64
	caps   *expirable.LRU[int64, moderation.Capabilities]
	logger *log.Entry
}

var _ moderation.MembershipService = (*Operations)(nil)

// NewOperations creates the adapter. Bot capabilities are cached per chat for capabilityTTL.
func NewOperations(bot BotAPI, selfID int64, capabilityTTL time.Duration) *Operations {
	return &Operations{
		bot:    bot,
		selfID: selfID,
		caps:   expirable.NewLRU[int64, moderation.Capabilities](capabilityCacheSize, nil, capabilityTTL),
		logger: log.WithField("object", "TelegramOperations"),
	}
}

func (o *Operations) chatMember(ctx context.Context, op string, chatID, userID int64) (api.ChatMember, error) {
	if err := ctx.Err(); err != nil {
		return api.ChatMember{}, classifyAPIError(op, err)
	}
	member, err := o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		return api.ChatMember{}, classifyAPIError(op, err)
	}
	return member, nil
}

func (o *Operations) request(ctx context.Context, op string, c api.Chattable) error {
	if err := ctx.Err(); err != nil {
		return classifyAPIError(op, err)
	}
	if _, err := o.bot.Request(c); err != nil {
		return classifyAPIError(op, err)
	}
	return nil
}

func (o *Operations) GetRole(ctx context.Context, chatID, memberID int64) (moderation.Role, error) {
	member, err := o.chatMember(ctx, "get role", chatID, memberID)
	if err != nil {
		return moderation.RoleUnknown, err
	}
	return roleOf(member), nil
}

func (o *Operations) GetRestrictionStatus(ctx context.Context, chatID, memberID int64) (moderation.RestrictionStatus, error) {
	member, err := o.chatMember(ctx, "get restriction status", chatID, memberID)
	if err != nil {
		return moderation.Unrestricted(), err
	}
	return restrictionOf(member), nil
}

func (o *Operations) GetMembershipStatus(ctx context.Context, chatID, memberID int64) (moderation.MembershipStatus, error) {
	member, err := o.chatMember(ctx, "get membership status", chatID, memberID)
	if err != nil {
		return moderation.MembershipActive, err
	}
	return membershipOf(member), nil
}

func (o *Operations) GetBotCapabilities(ctx context.Context, chatID int64) (moderation.Capabilities, error) {
	if caps, ok := o.caps.Get(chatID); ok {
		return caps, nil
	}
	member, err := o.chatMember(ctx, "get bot capabilities", chatID, o.selfID)
	if err != nil {
		return moderation.Capabilities{}, err
	}
	caps := capabilitiesOf(member)
	o.caps.Add(chatID, caps)
	return caps, nil
}

// InvalidateCapabilities drops the cached rights of the bot, e.g. after it was promoted.
func (o *Operations) InvalidateCapabilities(chatID int64) {
	o.caps.Remove(chatID)
}

func (o *Operations) Restrict(ctx context.Context, chatID, memberID int64, until *time.Time) error {
	var untilDate int64
	if until != nil {
		untilDate = until.Unix()
	}
	err := o.request(ctx, "restrict", api.RestrictChatMemberConfig{
		ChatMemberConfig: memberConfig(chatID, memberID),
		UntilDate:        untilDate,
		Permissions:      permissions(false),
	})
	return o.afterMutation(chatID, err)
}

func (o *Operations) Unrestrict(ctx context.Context, chatID, memberID int64) error {
	err := o.request(ctx, "unrestrict", api.RestrictChatMemberConfig{
		ChatMemberConfig: memberConfig(chatID, memberID),
		Permissions:      permissions(true),
	})
	return o.afterMutation(chatID, err)
}

func (o *Operations) Ban(ctx context.Context, chatID, memberID int64) error {
	err := o.request(ctx, "ban", api.BanChatMemberConfig{
		ChatMemberConfig: memberConfig(chatID, memberID),
		RevokeMessages:   true,
	})
	return o.afterMutation(chatID, err)
}

func (o *Operations) Unban(ctx context.Context, chatID, memberID int64) error {
	err := o.request(ctx, "unban", api.UnbanChatMemberConfig{
		ChatMemberConfig: memberConfig(chatID, memberID),
		OnlyIfBanned:     true,
	})
	return o.afterMutation(chatID, err)
}

// AdministratorMembers returns the chat administrators with their user records.
func (o *Operations) AdministratorMembers(ctx context.Context, chatID int64) ([]api.ChatMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyAPIError("list administrators", err)
	}
	members, err := o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, classifyAPIError("list administrators", err)
	}
	return members, nil
}

func (o *Operations) ListAdministrators(ctx context.Context, chatID int64) ([]int64, error) {
	members, err := o.AdministratorMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		if member.User == nil {
			continue
		}
		ids = append(ids, member.User.ID)
	}
	return ids, nil
}

func (o *Operations) SetAdministrator(ctx context.Context, chatID, memberID int64, promote bool) error {
	err := o.request(ctx, "set administrator", api.PromoteChatMemberConfig{
		ChatMemberConfig:   memberConfig(chatID, memberID),
		CanManageChat:      promote,
		CanDeleteMessages:  promote,
		CanRestrictMembers: promote,
		CanInviteUsers:     promote,
		CanPinMessages:     promote,
	})
	return o.afterMutation(chatID, err)
}

// DeleteMessage removes a message; a missing message is not an error.
func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := o.request(ctx, "delete message", api.NewDeleteMessage(chatID, messageID))
	if errors.Is(err, moderation.ErrTargetNotFound) {
		return nil
	}
	return err
}

// afterMutation forgets cached rights when the platform says they are insufficient, so the
// next capability check reads them again.
func (o *Operations) afterMutation(chatID int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, moderation.ErrPlatformRejected) {
		o.caps.Remove(chatID)
		o.logger.WithError(err).WithField("chat_id", chatID).Debug("capability cache invalidated")
	}
	return err
}

func memberConfig(chatID, memberID int64) api.ChatMemberConfig {
	return api.ChatMemberConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
		UserID:     memberID,
	}
}

func permissions(allowed bool) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       allowed,
		CanSendAudios:         allowed,
		CanSendDocuments:      allowed,
		CanSendPhotos:         allowed,
		CanSendVideos:         allowed,
		CanSendVideoNotes:     allowed,
		CanSendVoiceNotes:     allowed,
		CanSendPolls:          allowed,
		CanSendOtherMessages:  allowed,
		CanAddWebPagePreviews: allowed,
		CanInviteUsers:        allowed,
	}
}

func roleOf(member api.ChatMember) moderation.Role {
	switch {
	case member.IsCreator():
		return moderation.RoleOwner
	case member.IsAdministrator():
		return moderation.RoleAdministrator
	case member.Status == "":
		return moderation.RoleUnknown
	default:
		return moderation.RoleMember
	}
}

// restrictionOf treats a member as muted only when they cannot send messages. An UntilDate of
// zero means the restriction never ends.
func restrictionOf(member api.ChatMember) moderation.RestrictionStatus {
	if member.Status != "restricted" || member.CanSendMessages {
		return moderation.Unrestricted()
	}
	if member.UntilDate == 0 {
		return moderation.RestrictedUntil(nil)
	}
	until := time.Unix(member.UntilDate, 0)
	return moderation.RestrictedUntil(&until)
}

func membershipOf(member api.ChatMember) moderation.MembershipStatus {
	switch {
	case member.WasKicked():
		return moderation.MembershipKicked
	case member.HasLeft():
		return moderation.MembershipLeft
	case member.Status == "restricted" && !member.IsMember:
		return moderation.MembershipLeft
	default:
		return moderation.MembershipActive
	}
}

func capabilitiesOf(member api.ChatMember) moderation.Capabilities {
	switch {
	case member.IsCreator():
		return moderation.Capabilities{CanRestrictMembers: true, CanPromoteMembers: true}
	case member.IsAdministrator():
		return moderation.Capabilities{
			CanRestrictMembers: member.CanRestrictMembers,
			CanPromoteMembers:  member.CanPromoteMembers,
		}
	default:
		return moderation.Capabilities{}
	}
}
