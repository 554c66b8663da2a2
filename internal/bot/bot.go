package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"

	"shorts-sync/internal/i18n"
	"shorts-sync/internal/models"
	"shorts-sync/internal/pipeline"
	"shorts-sync/internal/state"
	"shorts-sync/internal/storage"
)

// RunStarter launches a run in the background.
type RunStarter interface {
	Start(ctx context.Context, brief models.Brief) (string, <-chan pipeline.Outcome)
}

// VoiceCatalog lists the narrator voices a chat can pick from.
type VoiceCatalog interface {
	GetVoices() []models.Voice
	FindVoice(nameOrID string) (models.Voice, bool)
}

// messenger is the part of the Telegram API the handlers talk to.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api       *tgbotapi.BotAPI
	out       messenger
	localizer *goi18n.Localizer
	runs      RunStarter
	ledger    storage.Ledger
	voices    VoiceCatalog
	states    *state.Manager

	baseCtx     context.Context
	activeTasks sync.Map
	userLocks   sync.Map
}

func New(token string, localizer *goi18n.Localizer, runs RunStarter, ledger storage.Ledger, voices VoiceCatalog, states *state.Manager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	api.Debug = false
	log.Info().Str("account", api.Self.UserName).Msg("Telegram bot authorized")

	bot := &Bot{
		api:       api,
		out:       api,
		localizer: localizer,
		runs:      runs,
		ledger:    ledger,
		voices:    voices,
		states:    states,
		baseCtx:   context.Background(),
	}

	if err := bot.setCommands(); err != nil {
		log.Warn().Err(err).Msg("Failed to set bot commands")
	}

	return bot, nil
}

func (b *Bot) setCommands() error {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Start or restart the bot"},
		{Command: "make", Description: "Make a short video about a topic"},
		{Command: "voices", Description: "Choose the narrator voice"},
		{Command: "status", Description: "Show the progress of a run"},
		{Command: "cancel", Description: "Cancel your running job"},
		{Command: "help", Description: "Show the help message"},
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...))
	return err
}

// Start polls for updates until ctx is cancelled. Runs started from chats
// are cancelled with it.
func (b *Bot) Start(ctx context.Context) {
	b.baseCtx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(upd tgbotapi.Update) {
	var userID, chatID int64
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		userID = upd.CallbackQuery.From.ID
		chatID = upd.CallbackQuery.Message.Chat.ID
	case upd.Message != nil && upd.Message.From != nil:
		userID = upd.Message.From.ID
		chatID = upd.Message.Chat.ID
	default:
		return
	}

	mu, _ := b.userLocks.LoadOrStore(userID, &sync.Mutex{})
	userMutex := mu.(*sync.Mutex)
	userMutex.Lock()
	defer userMutex.Unlock()

	if upd.CallbackQuery != nil {
		b.handleCallbackQuery(upd.CallbackQuery)
		return
	}

	chat := b.states.Get(chatID)
	log.Debug().Int64("user_id", userID).Str("state", string(chat.State)).Msg("Received message")
	if upd.Message.IsCommand() {
		b.handleCommand(upd.Message)
		return
	}
	if chat.State == state.StateWaitingForTopic {
		b.startRun(upd.Message.Chat.ID, userID, upd.Message.Text)
	}
}

func (b *Bot) text(messageID string, data map[string]any) string {
	return i18n.Text(b.localizer, messageID, data)
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.deliverMessage(chatID, msg)
}

// deliverMessage sends c and logs when Telegram rejects it.
func (b *Bot) deliverMessage(chatID int64, c tgbotapi.Chattable) bool {
	if _, err := b.out.Send(c); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		return false
	}
	return true
}

func (b *Bot) sendErrorMessage(chatID int64, messageID string) {
	b.send(chatID, b.text(messageID, nil))
}

func (b *Bot) registerBackgroundTask(userID int64) (context.Context, context.CancelFunc, bool) {
	ctx, cancel := context.WithCancel(b.baseCtx)
	if _, busy := b.activeTasks.LoadOrStore(userID, cancel); busy {
		cancel()
		return nil, nil, false
	}
	return ctx, cancel, true
}

func (b *Bot) cancelBackgroundTask(userID int64) bool {
	cancelFunc, ok := b.activeTasks.LoadAndDelete(userID)
	if !ok {
		return false
	}
	if cf, isCancelFunc := cancelFunc.(context.CancelFunc); isCancelFunc {
		cf()
		log.Info().Int64("user_id", userID).Msg("Cancelled background task")
	}
	return true
}

func (b *Bot) clearBackgroundTask(userID int64) {
	b.activeTasks.Delete(userID)
}
