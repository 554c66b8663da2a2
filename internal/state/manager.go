package state

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type ChatState string

const (
	StateIdle            ChatState = "idle"
	StateWaitingForTopic ChatState = "waiting_for_topic"
)

// ChatData is what the bot remembers about a chat between messages.
type ChatData struct {
	State   ChatState
	VoiceID string
	RunID   string
}

type Manager struct {
	chats map[int64]ChatData
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		chats: make(map[int64]ChatData),
	}
}

func (m *Manager) Get(chatID int64) ChatData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.chats[chatID]
	if !ok {
		return ChatData{State: StateIdle}
	}
	return data
}

func (m *Manager) SetState(chatID int64, state ChatState) {
	m.update(chatID, func(d *ChatData) { d.State = state })
	log.Debug().Int64("chat_id", chatID).Str("state", string(state)).Msg("chat state changed")
}

func (m *Manager) SetVoice(chatID int64, voiceID string) {
	m.update(chatID, func(d *ChatData) { d.VoiceID = voiceID })
}

// SetRun records the latest run started from a chat.
func (m *Manager) SetRun(chatID int64, runID string) {
	m.update(chatID, func(d *ChatData) { d.RunID = runID })
}

// Reset returns the chat to idle but keeps its voice choice and last run.
func (m *Manager) Reset(chatID int64) {
	m.update(chatID, func(d *ChatData) { d.State = StateIdle })
}

func (m *Manager) update(chatID int64, fn func(*ChatData)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.chats[chatID]
	if !ok {
		data = ChatData{State: StateIdle}
	}
	fn(&data)
	m.chats[chatID] = data
}
