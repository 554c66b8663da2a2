package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
	"shorts-sync/internal/pipeline"
	"shorts-sync/internal/report"
	"shorts-sync/internal/state"
	"shorts-sync/internal/storage"
)

const voicesPerPage = 6

const (
	callbackMake      = "make_video"
	callbackVoices    = "show_voices"
	callbackCancel    = "cancel_process"
	callbackVoice     = "voice_"
	callbackVoicePage = "voice_page_"
)

func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) {
	if _, err := b.out.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Warn().Err(err).Msg("Failed to acknowledge callback query")
	}

	chatID := callback.Message.Chat.ID
	switch {
	case strings.HasPrefix(callback.Data, callbackVoicePage):
		b.handleVoicePage(callback)
	case strings.HasPrefix(callback.Data, callbackVoice):
		b.handleVoiceSelection(chatID, strings.TrimPrefix(callback.Data, callbackVoice))
	case callback.Data == callbackMake:
		b.promptForTopic(chatID)
	case callback.Data == callbackVoices:
		b.sendPaginatedVoices(chatID, 0)
	case callback.Data == callbackCancel:
		b.handleCancel(chatID, callback.From.ID)
	default:
		log.Warn().Str("data", callback.Data).Msg("Received unknown callback data")
	}
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		b.states.Reset(chatID)
		msg := tgbotapi.NewMessage(chatID, b.text("start_message", nil))
		msg.ReplyMarkup = b.startKeyboard()
		b.deliverMessage(chatID, msg)
	case "make":
		topic := strings.TrimSpace(message.CommandArguments())
		if topic == "" {
			b.promptForTopic(chatID)
			return
		}
		b.startRun(chatID, message.From.ID, topic)
	case "voices":
		b.sendPaginatedVoices(chatID, 0)
	case "status":
		b.handleStatus(chatID, strings.TrimSpace(message.CommandArguments()))
	case "cancel":
		b.handleCancel(chatID, message.From.ID)
	case "help":
		b.send(chatID, b.text("help_message", nil))
	default:
		log.Debug().Str("command", message.Command()).Msg("Received an unknown command")
	}
}

func (b *Bot) promptForTopic(chatID int64) {
	b.states.SetState(chatID, state.StateWaitingForTopic)
	msg := tgbotapi.NewMessage(chatID, b.text("ask_topic", nil))
	msg.ReplyMarkup = b.cancelKeyboard()
	b.deliverMessage(chatID, msg)
}

func (b *Bot) handleCancel(chatID, userID int64) {
	b.states.Reset(chatID)
	if b.cancelBackgroundTask(userID) {
		b.send(chatID, b.text("cancel_message", nil))
		return
	}
	b.send(chatID, b.text("nothing_to_cancel", nil))
}

func (b *Bot) startRun(chatID, userID int64, topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		b.promptForTopic(chatID)
		return
	}

	ctx, cancel, ok := b.registerBackgroundTask(userID)
	if !ok {
		b.send(chatID, b.text("run_busy", nil))
		return
	}
	b.states.Reset(chatID)

	brief := models.Brief{Topic: topic, VoiceID: b.states.Get(chatID).VoiceID}
	runID, done := b.runs.Start(ctx, brief)
	b.states.SetRun(chatID, runID)

	msg := tgbotapi.NewMessage(chatID, b.text("run_started", map[string]any{"Topic": topic, "RunID": runID}))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.cancelKeyboard()
	b.deliverMessage(chatID, msg)

	go func() {
		defer cancel()
		defer b.clearBackgroundTask(userID)
		b.deliver(ctx, chatID, runID, <-done)
	}()
}

func (b *Bot) deliver(ctx context.Context, chatID int64, runID string, out pipeline.Outcome) {
	logger := log.With().Str("run_id", runID).Int64("chat_id", chatID).Logger()

	if out.Err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info().Msg("Run cancelled by user")
			b.send(chatID, b.text("run_cancelled", nil))
			return
		}
		logger.Warn().Err(out.Err).Msg("Run failed")
		b.send(chatID, report.Render(b.localizer, runID, report.Failures(out.Err)))
		return
	}

	var narration float64
	for _, a := range out.Result.Audio {
		narration += a.DurationMeasured
	}
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(out.Result.OutputPath))
	video.Caption = b.text("run_completed", map[string]any{
		"Segments": len(out.Result.Segments),
		"Duration": fmt.Sprintf("%.1f", narration),
	})
	video.SupportsStreaming = true
	if !b.deliverMessage(chatID, video) {
		logger.Error().Str("path", out.Result.OutputPath).Msg("Failed to send video")
		b.send(chatID, b.text("video_send_error", map[string]any{"RunID": runID}))
	}
}

func (b *Bot) handleStatus(chatID int64, runID string) {
	if runID == "" {
		runID = b.states.Get(chatID).RunID
	}
	if runID == "" {
		b.send(chatID, b.text("status_usage", nil))
		return
	}

	ctx := b.baseCtx
	run, err := b.ledger.GetRun(ctx, runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		b.send(chatID, b.text("status_not_found", map[string]any{"RunID": runID}))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Could not load run")
		b.sendErrorMessage(chatID, "database_error")
		return
	}
	segments, err := b.ledger.ListSegments(ctx, runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Could not load segments")
		b.sendErrorMessage(chatID, "database_error")
		return
	}
	b.send(chatID, b.formatStatus(run, segments))
}

func (b *Bot) formatStatus(run *models.Run, segments []models.SegmentRecord) string {
	lines := []string{b.text("status_header", map[string]any{"RunID": run.ID, "Status": string(run.Status)})}
	for _, s := range segments {
		if s.FailedStage != "" {
			lines = append(lines, b.text("status_segment_failed", map[string]any{
				"Index":  s.Index,
				"Stage":  b.text("stage_"+string(s.FailedStage), nil),
				"Reason": s.FailureReason,
			}))
			continue
		}
		lines = append(lines, b.text("status_segment", map[string]any{
			"Index":    s.Index,
			"Planned":  fmt.Sprintf("%.1f", s.PlannedEnd-s.PlannedStart),
			"Measured": orDash(s.DurationMeasured),
			"Method":   orDashString(string(s.Method)),
			"Class":    classOrDash(s.ClipClass),
		}))
	}
	return strings.Join(lines, "\n")
}

func orDash(v float64) string {
	if v <= 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func classOrDash(class int) string {
	if class <= 0 {
		return "-"
	}
	return strconv.Itoa(class)
}

func orDashString(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (b *Bot) sendPaginatedVoices(chatID int64, page int) {
	voices := b.voices.GetVoices()
	if len(voices) == 0 {
		log.Error().Msg("No voices loaded from file")
		b.send(chatID, b.text("voice_not_found", nil))
		return
	}

	msg := tgbotapi.NewMessage(chatID, b.text("voice_list_header", nil))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = voiceKeyboard(voices, page, b.text("button_prev_page", nil), b.text("button_next_page", nil))
	b.deliverMessage(chatID, msg)
}

func (b *Bot) handleVoicePage(callback *tgbotapi.CallbackQuery) {
	page, err := strconv.Atoi(strings.TrimPrefix(callback.Data, callbackVoicePage))
	if err != nil {
		log.Warn().Err(err).Str("data", callback.Data).Msg("Invalid page number in callback")
		return
	}
	voices := b.voices.GetVoices()
	if len(voices) == 0 {
		return
	}

	keyboard := voiceKeyboard(voices, page, b.text("button_prev_page", nil), b.text("button_next_page", nil))
	editMsg := tgbotapi.NewEditMessageText(callback.Message.Chat.ID, callback.Message.MessageID, callback.Message.Text)
	editMsg.ReplyMarkup = &keyboard
	b.deliverMessage(callback.Message.Chat.ID, editMsg)
}

func (b *Bot) handleVoiceSelection(chatID int64, voiceID string) {
	voice, ok := b.voices.FindVoice(voiceID)
	if !ok {
		b.send(chatID, b.text("voice_not_found", nil))
		return
	}
	b.states.SetVoice(chatID, voice.VoiceID)
	b.send(chatID, b.text("voice_selected", map[string]any{"VoiceName": voiceLabel(voice)}))
}

func (b *Bot) startKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text("button_make", nil), callbackMake),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text("button_voices", nil), callbackVoices),
		),
	)
}

func (b *Bot) cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.text("button_cancel", nil), callbackCancel),
		),
	)
}

// voiceKeyboard lays one page of voices out two per row, followed by the
// page navigation row when there is more than one page.
func voiceKeyboard(voices []models.Voice, page int, prevText, nextText string) tgbotapi.InlineKeyboardMarkup {
	pages := (len(voices) + voicesPerPage - 1) / voicesPerPage
	if page < 0 {
		page = 0
	}
	if pages > 0 && page >= pages {
		page = pages - 1
	}

	start := page * voicesPerPage
	end := start + voicesPerPage
	if end > len(voices) {
		end = len(voices)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := start; i < end; i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(voiceLabel(voices[i]), callbackVoice+voices[i].VoiceID),
		}
		if i+1 < end {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(voiceLabel(voices[i+1]), callbackVoice+voices[i+1].VoiceID))
		}
		rows = append(rows, row)
	}

	var navRow []tgbotapi.InlineKeyboardButton
	if page > 0 {
		navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData(prevText, fmt.Sprintf("%s%d", callbackVoicePage, page-1)))
	}
	if end < len(voices) {
		navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData(nextText, fmt.Sprintf("%s%d", callbackVoicePage, page+1)))
	}
	if len(navRow) > 0 {
		rows = append(rows, navRow)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func voiceLabel(v models.Voice) string {
	if v.Name == "" {
		return v.VoiceID
	}
	return v.Name
}
