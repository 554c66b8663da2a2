package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"

	"shorts-sync/internal/models"
	"shorts-sync/internal/segment"
)

const DefaultOpenAIModel = "gpt-4o"

// OpenAIService writes timestamped scripts through the chat completions API.
type OpenAIService struct {
	client openai.Client
	model  string
}

func NewOpenAIService(apiKey, baseURL, model string) (*OpenAIService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key missing")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIService{client: openai.NewClient(opts...), model: model}, nil
}

func (s *OpenAIService) GenerateScript(ctx context.Context, brief models.Brief) (*segment.Script, error) {
	system, user := scriptPrompts(brief)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       s.model,
		Temperature: openai.Float(0.8),
		MaxTokens:   openai.Int(1500),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai script generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	log.Ctx(ctx).Debug().
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Script generated")
	return decodeScript(resp.Choices[0].Message.Content)
}
