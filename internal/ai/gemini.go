package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"shorts-sync/internal/apikeys"
	"shorts-sync/internal/models"
	"shorts-sync/internal/segment"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiService writes timestamped scripts with Gemini, rotating keys on quota errors.
type GeminiService struct {
	keyManager *apikeys.KeyManager
	modelName  string
}

func NewGeminiService(keyManager *apikeys.KeyManager, modelName string) *GeminiService {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiService{keyManager: keyManager, modelName: modelName}
}

func (s *GeminiService) GenerateScript(ctx context.Context, brief models.Brief) (*segment.Script, error) {
	system, user := scriptPrompts(brief)

	var lastErr error
	for i := 0; i < s.keyManager.Len(); i++ {
		text, err := s.generate(ctx, s.keyManager.Current(), system, user)
		if err == nil {
			return decodeScript(text)
		}
		lastErr = err
		if ctx.Err() != nil || !isQuotaError(err) {
			return nil, err
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("Gemini key rejected, rotating")
		s.keyManager.Rotate()
	}
	return nil, fmt.Errorf("all Gemini API keys failed: %w", lastErr)
}

func (s *GeminiService) generate(ctx context.Context, apiKey, system, user string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("could not create new genai client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(s.modelName)
	model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.8)

	res, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini content generation failed: %w", err)
	}
	return extractText(res)
}

func extractText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no content")
	}

	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini response did not contain text")
	}
	return b.String(), nil
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "resource_exhausted", "resource has been exhausted", "api key not valid", "permission_denied"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
