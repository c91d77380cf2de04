package permissions

import api "github.com/OvyFlash/telegram-bot-api"

// IsModerator reports whether the member may issue moderation commands in the chat.
func IsModerator(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

// CanManageAdministrators reports whether userID may promote or demote chat members: the chat
// creator, or the configured bot owner. An ownerID of zero disables the owner override.
func CanManageAdministrators(member *api.ChatMember, userID, ownerID int64) bool {
	if ownerID != 0 && userID == ownerID {
		return true
	}
	return member != nil && member.IsCreator()
}
