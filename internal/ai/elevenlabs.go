package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"shorts-sync/internal/apikeys"
	"shorts-sync/internal/models"
	"shorts-sync/internal/proxy"
)

const (
	elevenLabsAPIURL       = "https://api.elevenlabs.io/v1"
	DefaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"
)

// VoiceSettings tune the synthesized narration.
type VoiceSettings struct {
	Stability       float32 `json:"stability"`
	SimilarityBoost float32 `json:"similarity_boost"`
	Style           float32 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var DefaultVoiceSettings = VoiceSettings{Stability: 0.6, SimilarityBoost: 0.75, Style: 0.3, UseSpeakerBoost: true}

type ElevenLabsService struct {
	keyManager   *apikeys.KeyManager
	proxyManager *proxy.Manager
	modelID      string
	baseURL      string
	httpClient   *http.Client
	voices       []models.Voice
	Settings     VoiceSettings
}

// NewElevenLabsService creates the synthesis client. proxyManager may be nil.
// A missing voices file leaves the voice list empty.
func NewElevenLabsService(keyManager *apikeys.KeyManager, proxyManager *proxy.Manager, modelID, voicesFile string) (*ElevenLabsService, error) {
	service := &ElevenLabsService{
		keyManager:   keyManager,
		proxyManager: proxyManager,
		modelID:      modelID,
		baseURL:      elevenLabsAPIURL,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		Settings:     DefaultVoiceSettings,
	}
	if proxyManager != nil {
		service.httpClient = proxyManager.Client(2 * time.Minute)
	}
	if voicesFile != "" {
		if err := service.loadVoicesFromFile(voicesFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load voices from file: %w", err)
			}
			log.Warn().Str("file", voicesFile).Msg("Voices file not found, voice picker will be empty")
		}
	}
	return service, nil
}

func (s *ElevenLabsService) loadVoicesFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	var voicesFile models.VoicesFile
	if err := json.Unmarshal(data, &voicesFile); err != nil {
		return err
	}
	s.voices = voicesFile.Voices
	return nil
}

func (s *ElevenLabsService) GetVoices() []models.Voice {
	return s.voices
}

// FindVoice looks a voice up by name (case-insensitive) or id.
func (s *ElevenLabsService) FindVoice(nameOrID string) (models.Voice, bool) {
	for _, v := range s.voices {
		if v.VoiceID == nameOrID || strings.EqualFold(v.Name, nameOrID) {
			return v, true
		}
	}
	return models.Voice{}, false
}

// Synthesize voices one segment's narration as MP3.
func (s *ElevenLabsService) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = DefaultElevenLabsVoice
	}
	url := fmt.Sprintf("%s/text-to-speech/%s", s.baseURL, voiceID)
	payload, err := json.Marshal(map[string]any{
		"text":           text,
		"model_id":       s.modelID,
		"voice_settings": s.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	attempts := s.keyManager.Len()
	if s.proxyManager != nil {
		attempts += s.proxyManager.Len()
	}

	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("xi-api-key", s.keyManager.Current())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("attempt", i+1).Msg("ElevenLabs request failed")
			if s.proxyManager != nil {
				s.proxyManager.Rotate()
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusUnauthorized {
			log.Warn().Str("status", resp.Status).Int("attempt", i+1).Msg("ElevenLabs quota or auth error, rotating key")
			resp.Body.Close()
			s.keyManager.Rotate()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("ElevenLabs returned non-200 status: %s - %s", resp.Status, string(body))
		}

		audioBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read audio response body: %w", err)
		}
		if len(audioBytes) == 0 {
			return nil, errors.New("ElevenLabs returned an empty audio body")
		}
		return audioBytes, nil
	}

	return nil, errors.New("all ElevenLabs API keys failed or were exhausted")
}
