package bot

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/ngmod/internal/i18n"
)

// API is the part of *api.BotAPI the handlers use.
type API interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
	GetChatAdministrators(config api.ChatAdministratorsConfig) ([]api.ChatMember, error)
}

type Service interface {
	GetBot() API
	GetSelfID() int64
	GetLanguage(ctx context.Context, chatID int64, user *api.User) string
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

type service struct {
	bot             API
	selfID          int64
	defaultLanguage string
}

func NewService(bot API, selfID int64, defaultLanguage string) *service {
	if defaultLanguage == "" {
		defaultLanguage = i18n.DefaultLanguage
	}
	return &service{
		bot:             bot,
		selfID:          selfID,
		defaultLanguage: defaultLanguage,
	}
}

func (s *service) GetBot() API {
	return s.bot
}

func (s *service) GetSelfID() int64 {
	return s.selfID
}

// GetLanguage prefers the user's client language when a translation for it exists.
func (s *service) GetLanguage(_ context.Context, _ int64, user *api.User) string {
	if user != nil && user.LanguageCode != "" {
		lang := strings.ToLower(strings.SplitN(user.LanguageCode, "-", 2)[0])
		if i18n.HasLanguage(lang) {
			return lang
		}
	}
	return s.defaultLanguage
}
