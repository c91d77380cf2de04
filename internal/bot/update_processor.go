package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type UpdateProcessor struct {
	s              Service
	updateHandlers []Handler
	now            func() time.Time
}

var (
	registeredHandlers   = make(map[string]Handler)
	registeredHandlersMu sync.RWMutex
)

func RegisterUpdateHandler(title string, handler Handler) {
	registeredHandlersMu.Lock()
	defer registeredHandlersMu.Unlock()
	registeredHandlers[title] = handler
}

// NewUpdateProcessor chains the registered handlers named in enabled, in that order.
func NewUpdateProcessor(s Service, enabled []string) *UpdateProcessor {
	registeredHandlersMu.RLock()
	defer registeredHandlersMu.RUnlock()

	enabledHandlers := make([]Handler, 0, len(enabled))
	for _, handlerName := range enabled {
		handler, ok := registeredHandlers[strings.TrimSpace(handlerName)]
		if !ok || handler == nil {
			log.Warnf("no registered handler: %s", handlerName)
			continue
		}
		enabledHandlers = append(enabledHandlers, handler)
	}

	return &UpdateProcessor{
		s:              s,
		updateHandlers: enabledHandlers,
		now:            time.Now,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var updateTime time.Time
	switch {
	case u.Message != nil:
		updateTime = time.Unix(int64(u.Message.Date), 0)
	case u.EditedMessage != nil:
		updateTime = time.Unix(int64(u.EditedMessage.Date), 0)
	default:
		updateTime = up.now()
	}
	if age := up.now().Sub(updateTime); age > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         age,
		}).Debug("Skipping outdated update")
		return nil
	}

	chat := u.FromChat()
	if chat == nil && u.ChatMember != nil {
		chat = &u.ChatMember.Chat
	}
	user := u.SentFrom()
	if user == nil && u.ChatMember != nil {
		user = &u.ChatMember.From
	}

	for _, handler := range up.updateHandlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		proceed, err := handler.Handle(ctx, u, chat, user)
		if err != nil {
			return errors.WithMessage(err, "handling error")
		}
		if !proceed {
			log.Trace("not proceeding")
			return nil
		}
	}
	return nil
}

// UpdatesSource is satisfied by *api.BotAPI.
type UpdatesSource interface {
	GetUpdates(config api.UpdateConfig) ([]api.Update, error)
}

// GetUpdatesChans long-polls the Bot API until ctx is done or polling fails.
func GetUpdatesChans(ctx context.Context, bot UpdatesSource, config api.UpdateConfig, buffer int) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, buffer)
	chErr := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			if err := ctx.Err(); err != nil {
				chErr <- err
				return
			}
			updates, err := bot.GetUpdates(config)
			if err != nil {
				chErr <- err
				return
			}

			for _, update := range updates {
				if update.UpdateID < config.Offset {
					continue
				}
				config.Offset = update.UpdateID + 1
				select {
				case ch <- update:
				case <-ctx.Done():
					chErr <- ctx.Err()
					return
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	return userName
}

func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if len(fullName) == 0 {
		fullName = user.UserName
	}
	return fullName
}

// MessageText joins the text and the media caption of a message.
func MessageText(msg *api.Message) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.Text + " " + msg.Caption)
}
